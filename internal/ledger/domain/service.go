package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateSessionRequest struct {
	StudentID  string
	CourseID   string
	CourseName string
}

type CreateCoursePlusRequest struct {
	StudentID   string
	SessionID   string
	Description string
	Hours       int
	Amount      decimal.Decimal
}

type CreatePackageRequest struct {
	StudentID string
	Name      string
	Sessions  int
	Amount    decimal.Decimal
}

// OpenEntries are a student's ledger rows that no invoice covers yet, oldest first.
type OpenEntries struct {
	StudentID  snowflake.ID  `json:"studentId"`
	Sessions   []*Session    `json:"sessions"`
	CoursePlus []*CoursePlus `json:"coursePlus"`
	Packages   []*Package    `json:"packages"`
}

type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error)
	CreateCoursePlus(ctx context.Context, req CreateCoursePlusRequest) (*CoursePlus, error)
	CreatePackage(ctx context.Context, req CreatePackageRequest) (*Package, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	GetCoursePlus(ctx context.Context, id string) (*CoursePlus, error)
	GetPackage(ctx context.Context, id string) (*Package, error)
	ListOpenEntries(ctx context.Context, studentID string) (*OpenEntries, error)
}
