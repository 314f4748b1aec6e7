package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/schoolbill/internal/documentcounter/domain"
	"github.com/smallbiznis/schoolbill/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Increment(ctx context.Context, conn *gorm.DB, date string, now time.Time) (int64, error) {
	if db.Name(conn) == db.DialectMySQL {
		return r.incrementMySQL(ctx, conn, date, now)
	}

	var row struct {
		Counter int64
	}
	err := conn.WithContext(ctx).Raw(
		`INSERT INTO document_counters (date, counter, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (date) DO UPDATE
		SET counter = document_counters.counter + 1, updated_at = excluded.updated_at
		RETURNING counter`,
		date, now, now,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Counter, nil
}

// incrementMySQL has no RETURNING. The upsert takes the row lock, so reading the row back
// in the same transaction sees exactly this increment.
func (r *repo) incrementMySQL(ctx context.Context, conn *gorm.DB, date string, now time.Time) (int64, error) {
	tx := conn.WithContext(ctx)
	if err := tx.Exec(
		`INSERT INTO document_counters (date, counter, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON DUPLICATE KEY UPDATE counter = counter + 1, updated_at = VALUES(updated_at)`,
		date, now, now,
	).Error; err != nil {
		return 0, err
	}
	return r.Current(ctx, conn, date)
}

func (r *repo) Current(ctx context.Context, conn *gorm.DB, date string) (int64, error) {
	var row struct {
		Counter int64
	}
	err := conn.WithContext(ctx).Raw(
		`SELECT counter FROM document_counters WHERE date = ?`,
		date,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Counter, nil
}
