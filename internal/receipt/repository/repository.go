package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/internal/receipt/domain"
	"github.com/smallbiznis/schoolbill/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, receipt *domain.Receipt) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO receipts (id, invoice_id, date, payment_method, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		receipt.ID,
		receipt.InvoiceID,
		receipt.Date,
		receipt.PaymentMethod,
		receipt.CreatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrReceiptExists
	}
	return err
}

func (r *repo) FindByInvoiceID(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := conn.WithContext(ctx).Raw(
		`SELECT id, invoice_id, date, payment_method, created_at
		FROM receipts
		WHERE invoice_id = ?`,
		invoiceID,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}

func (r *repo) CountByInvoiceID(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Model(&domain.Receipt{}).
		Where("invoice_id = ?", invoiceID).
		Count(&count).Error
	return count, err
}
