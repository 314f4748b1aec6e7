package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/pkg/db"
	"github.com/smallbiznis/schoolbill/pkg/db/option"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
	"gorm.io/gorm"
)

const invoiceColumns = `id, document_id, date, payment_method, total_amount, student_id, student_name,
		course_name, session_groups, receipt_done, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.DocumentID,
		invoice.Date,
		invoice.PaymentMethod,
		invoice.TotalAmount,
		invoice.StudentID,
		invoice.StudentName,
		invoice.CourseName,
		invoice.SessionGroups,
		invoice.ReceiptDone,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateDocumentID
	}
	if err != nil {
		return err
	}

	if len(invoice.Items) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&invoice.Items).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.find(ctx, conn, id, "")
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.find(ctx, conn, id, db.ForUpdate(conn))
}

func (r *repo) find(ctx context.Context, conn *gorm.DB, id snowflake.ID, lock string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := conn.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = ?`+lock,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}

	items, err := r.ListItems(ctx, conn, invoice.ID)
	if err != nil {
		return nil, err
	}
	invoice.Items = items
	return &invoice, nil
}

func (r *repo) ListItems(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	items := []domain.InvoiceItem{}
	err := conn.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) MarkReceiptDone(ctx context.Context, conn *gorm.DB, id snowflake.ID, paymentMethod *string, now time.Time) (int64, error) {
	result := conn.WithContext(ctx).Exec(
		`UPDATE invoices
		SET receipt_done = ?, payment_method = COALESCE(?, payment_method), updated_at = ?
		WHERE id = ? AND receipt_done = ?`,
		true, paymentMethod, now, id, false,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	tx := conn.WithContext(ctx)
	if err := tx.Exec(`DELETE FROM invoice_items WHERE invoice_id = ?`, id).Error; err != nil {
		return err
	}
	return tx.Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]domain.Invoice, int64, error) {
	page = page.Normalize()

	filters := listFilters(filter)

	var total int64
	countStmt := conn.WithContext(ctx).Model(&domain.Invoice{})
	for _, opt := range filters {
		countStmt = opt.Apply(countStmt)
	}
	if err := countStmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	invoices := []domain.Invoice{}
	if total == 0 {
		return invoices, 0, nil
	}

	stmt := conn.WithContext(ctx).Model(&domain.Invoice{})
	opts := append(filters,
		option.WithSortBy(option.QuerySortBy{Field: "created_at", Desc: true, Allow: map[string]bool{"created_at": true}}),
		option.WithSortBy(option.QuerySortBy{Field: "id", Desc: true, Allow: map[string]bool{"id": true}}),
		option.WithLimit(page.Limit),
		option.WithOffset(page.Offset()),
	)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	stmt = stmt.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
	if err := stmt.Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func listFilters(filter domain.ListFilter) []option.QueryOption {
	var opts []option.QueryOption
	if value := strings.TrimSpace(filter.DocumentID); value != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "document_id",
			Operator: option.ILIKE,
			Value:    value,
		}))
	}
	if value := strings.TrimSpace(filter.CourseName); value != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "course_name",
			Operator: option.ILIKE,
			Value:    value,
		}))
	}
	if filter.ReceiptDone != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "receipt_done",
			Operator: option.EQ,
			Value:    *filter.ReceiptDone,
		}))
	}
	return opts
}
