package domain

import "errors"

var (
	ErrInvalidKind     = errors.New("invalid_transaction_type")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidStudent  = errors.New("invalid_student_id")
	ErrInvalidCourse   = errors.New("invalid_course")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrEntryNotFound   = errors.New("ledger_entry_not_found")
	ErrAlreadyInvoiced = errors.New("ledger_entry_already_invoiced")
)

// RefError ties a ledger failure to the session group that caused it.
type RefError struct {
	Ref Ref
	Err error
}

func (e *RefError) Error() string {
	return e.Err.Error() + ": " + e.Ref.String()
}

func (e *RefError) Unwrap() error {
	return e.Err
}
