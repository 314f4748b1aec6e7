package domain

import "errors"

var (
	ErrInvalidInvoiceID      = errors.New("invalid_invoice_id")
	ErrInvalidStudent        = errors.New("invalid_student_id")
	ErrEmptySessionGroups    = errors.New("session_groups_required")
	ErrDuplicateSessionGroup = errors.New("duplicate_session_group")
	ErrEmptyItems            = errors.New("items_required")
	ErrInvalidItem           = errors.New("invalid_item")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidPaymentMethod  = errors.New("invalid_payment_method")
	ErrInvoiceNotFound       = errors.New("invoice_not_found")
	ErrAlreadyConfirmed      = errors.New("invoice_already_confirmed")
	ErrInvoiceReceipted      = errors.New("invoice_receipted")
	ErrDuplicateDocumentID   = errors.New("duplicate_document_id")
)
