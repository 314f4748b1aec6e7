package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository mutates ledger rows. Every method runs on the db it is given, so the
// invoice workflow passes its transaction and the ledger commits or rolls back with it.
type Repository interface {
	// LockForInvoice loads and row-locks the entry behind ref. It returns nil when absent.
	LockForInvoice(ctx context.Context, db *gorm.DB, ref Ref) (*EntryState, error)
	SetInvoiced(ctx context.Context, db *gorm.DB, ref Ref, invoiced bool) (int64, error)
	SetPaid(ctx context.Context, db *gorm.DB, ref Ref, paid bool) (int64, error)
}
