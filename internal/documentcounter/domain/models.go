// Package domain holds the per-day counter behind invoice document ids.
package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// DateLayout is the calendar-date prefix of every document id.
const DateLayout = "20060102"

// DocumentCounter is the last sequence handed out for one billing date.
type DocumentCounter struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Date      string    `gorm:"type:char(8);not null;uniqueIndex:ux_document_counters_date"`
	Counter   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (DocumentCounter) TableName() string { return "document_counters" }

var ErrInvalidTimezone = errors.New("invalid_billing_timezone")

type Repository interface {
	// Increment bumps the counter for date, creating it at 1, and returns the new value.
	// The row stays locked by db until its transaction ends.
	Increment(ctx context.Context, db *gorm.DB, date string, now time.Time) (int64, error)
	Current(ctx context.Context, db *gorm.DB, date string) (int64, error)
}

type Service interface {
	// Next allocates an id inside the caller's transaction. A rollback returns the
	// sequence to the pool.
	Next(ctx context.Context, tx *gorm.DB) (string, error)
	NextDocumentID(ctx context.Context) (string, error)
	// PeekNextDocumentID previews the id Next would return now. It allocates nothing.
	PeekNextDocumentID(ctx context.Context) (string, error)
}
