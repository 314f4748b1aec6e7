// Package domain contains persistence models for invoicing.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	"gorm.io/datatypes"
)

// PaymentMethod is one of the accepted ways to settle an invoice.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "Credit Card"
	PaymentMethodDebitCard    PaymentMethod = "Debit Card"
	PaymentMethodCash         PaymentMethod = "Cash"
	PaymentMethodBankTransfer PaymentMethod = "Bank Transfer"
)

var paymentMethods = []PaymentMethod{
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodCash,
	PaymentMethodBankTransfer,
}

// PaymentMethods returns the accepted payment methods in display order.
func PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(paymentMethods))
	copy(out, paymentMethods)
	return out
}

// ParsePaymentMethod matches raw case-insensitively and returns the canonical spelling.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	value := strings.TrimSpace(raw)
	for _, method := range paymentMethods {
		if strings.EqualFold(value, string(method)) {
			return method, nil
		}
	}
	return "", ErrInvalidPaymentMethod
}

// Invoice binds one or more ledger entries to a document id and its line items.
// ReceiptDone only ever goes from false to true.
type Invoice struct {
	ID            snowflake.ID                          `gorm:"primaryKey" json:"id"`
	DocumentID    string                                `gorm:"type:text;not null;uniqueIndex:ux_invoices_document_id" json:"documentId"`
	Date          time.Time                             `gorm:"not null" json:"date"`
	PaymentMethod *string                               `gorm:"type:text" json:"paymentMethod"`
	TotalAmount   decimal.Decimal                       `gorm:"type:numeric(14,2);not null;default:0" json:"totalAmount"`
	StudentID     snowflake.ID                          `gorm:"not null;index" json:"studentId"`
	StudentName   string                                `gorm:"type:text;not null;default:''" json:"studentName"`
	CourseName    string                                `gorm:"type:text;not null;default:''" json:"courseName"`
	SessionGroups datatypes.JSONSlice[ledgerdomain.Ref] `gorm:"not null" json:"sessionGroups"`
	ReceiptDone   bool                                  `gorm:"not null;default:false;index" json:"receiptDone"`
	Items         []InvoiceItem                         `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time                             `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time                             `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is a description and amount line owned by one invoice.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoiceId"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"amount"`
	Position    int             `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time       `gorm:"not null" json:"createdAt"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
