// Package domain holds receipts, the permanent proof that an invoice was paid.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Receipt is written once per invoice during payment confirmation and never changes.
type Receipt struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID     snowflake.ID `gorm:"not null;uniqueIndex:ux_receipts_invoice_id" json:"invoiceId"`
	Date          time.Time    `gorm:"not null" json:"date"`
	PaymentMethod *string      `gorm:"type:text" json:"paymentMethod"`
	CreatedAt     time.Time    `gorm:"not null" json:"createdAt"`
}

func (Receipt) TableName() string { return "receipts" }

var (
	ErrReceiptExists    = errors.New("receipt_already_exists")
	ErrReceiptNotFound  = errors.New("receipt_not_found")
	ErrInvalidInvoiceID = errors.New("invalid_invoice_id")
)

// RenderedReceipt is a printable receipt and the file name it is served under.
type RenderedReceipt struct {
	Filename string
	Content  []byte
}

type Repository interface {
	// Insert fails with ErrReceiptExists when the invoice already has a receipt.
	Insert(ctx context.Context, db *gorm.DB, receipt *Receipt) error
	FindByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*Receipt, error)
	CountByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int64, error)
}

type Service interface {
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Receipt, error)
	// RenderPDF renders the receipt of a confirmed invoice.
	RenderPDF(ctx context.Context, invoiceID string) (*RenderedReceipt, error)
}
