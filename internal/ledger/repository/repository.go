package repository

import (
	"context"
	"fmt"

	"github.com/smallbiznis/schoolbill/internal/ledger/domain"
	"github.com/smallbiznis/schoolbill/pkg/db"
	"gorm.io/gorm"
)

// entryTable describes where a ledger kind keeps its invoiced flag and paid status.
type entryTable struct {
	table       string
	invoicedCol string
	statusCol   string
	paid        string
	unpaid      string
}

var entryTables = map[domain.Kind]entryTable{
	domain.KindCourse: {
		table:       "sessions",
		invoicedCol: "invoice_done",
		statusCol:   "payment",
		paid:        string(domain.PaymentPaid),
		unpaid:      string(domain.PaymentUnpaid),
	},
	domain.KindCoursePlus: {
		table:       "course_plus",
		invoicedCol: "invoice_generated",
		statusCol:   "status",
		paid:        string(domain.StatusPaid),
		unpaid:      string(domain.StatusUnpaid),
	},
	domain.KindPackage: {
		table:       "packages",
		invoicedCol: "invoice_generated",
		statusCol:   "status",
		paid:        string(domain.StatusPaid),
		unpaid:      string(domain.StatusUnpaid),
	},
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func tableFor(ref domain.Ref) (entryTable, error) {
	t, ok := entryTables[ref.Kind]
	if !ok {
		return entryTable{}, domain.ErrInvalidKind
	}
	return t, nil
}

func (r *repo) LockForInvoice(ctx context.Context, conn *gorm.DB, ref domain.Ref) (*domain.EntryState, error) {
	t, err := tableFor(ref)
	if err != nil {
		return nil, err
	}

	var row struct {
		ID       int64
		Invoiced bool
		Status   string
	}
	query := fmt.Sprintf(
		`SELECT id, %s AS invoiced, %s AS status FROM %s WHERE id = ?`,
		t.invoicedCol, t.statusCol, t.table,
	) + db.ForUpdate(conn)
	if err := conn.WithContext(ctx).Raw(query, int64(ref.ID)).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}

	return &domain.EntryState{
		Ref:      ref,
		Invoiced: row.Invoiced,
		Paid:     row.Status == t.paid,
	}, nil
}

func (r *repo) SetInvoiced(ctx context.Context, conn *gorm.DB, ref domain.Ref, invoiced bool) (int64, error) {
	t, err := tableFor(ref)
	if err != nil {
		return 0, err
	}
	result := conn.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, t.table, t.invoicedCol),
		invoiced, int64(ref.ID),
	)
	return result.RowsAffected, result.Error
}

func (r *repo) SetPaid(ctx context.Context, conn *gorm.DB, ref domain.Ref, paid bool) (int64, error) {
	t, err := tableFor(ref)
	if err != nil {
		return 0, err
	}
	status := t.unpaid
	if paid {
		status = t.paid
	}
	result := conn.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, t.table, t.statusCol),
		status, int64(ref.ID),
	)
	return result.RowsAffected, result.Error
}
