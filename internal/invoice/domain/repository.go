package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	DocumentID  string
	CourseName  string
	ReceiptDone *bool
}

type Repository interface {
	// Insert writes the invoice row and its items.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// FindByIDForUpdate row-locks the invoice until db's transaction ends.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)
	MarkReceiptDone(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentMethod *string, now time.Time) (int64, error)
	// Delete removes the items and then the invoice.
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]Invoice, int64, error)
}
