package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
)

type CreateInvoiceItem struct {
	Description string
	Amount      decimal.Decimal
}

type CreateInvoiceRequest struct {
	StudentID     string
	Date          *time.Time
	PaymentMethod *string
	// TotalAmount falls back to the sum of Items when zero.
	TotalAmount   decimal.Decimal
	StudentName   string
	CourseName    string
	SessionGroups []ledgerdomain.Ref
	Items         []CreateInvoiceItem
}

type ConfirmPaymentRequest struct {
	PaymentMethod *string
	ReceiptDate   *time.Time
}

type ConfirmPaymentResult struct {
	UpdatedSessions int          `json:"updatedSessions"`
	ReceiptID       snowflake.ID `json:"receiptId"`
	Invoice         Invoice      `json:"invoice"`
}

type CancelResult struct {
	UpdatedSessions int `json:"updatedSessions"`
}

type ListInvoiceRequest struct {
	Page        int
	Limit       int
	DocumentID  string
	CourseName  string
	ReceiptDone *bool
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"data"`
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	ConfirmPayment(ctx context.Context, id string, req ConfirmPaymentRequest) (*ConfirmPaymentResult, error)
	Cancel(ctx context.Context, id string) (*CancelResult, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	PeekNextDocumentID(ctx context.Context) (string, error)
}
