// Package domain contains the billable enrollment units an invoice can reference.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Kind tags which ledger table a Ref points at.
type Kind string

const (
	KindCourse     Kind = "course"
	KindCoursePlus Kind = "courseplus"
	KindPackage    Kind = "package"
)

// ParseKind accepts the wire names used by the invoice API.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindCourse:
		return KindCourse, nil
	case KindCoursePlus:
		return KindCoursePlus, nil
	case KindPackage:
		return KindPackage, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// Ref identifies one ledger entry. It is the only way an invoice refers to a session,
// a course-plus add-on or a package.
type Ref struct {
	Kind Kind         `json:"kind"`
	ID   snowflake.ID `json:"id"`
}

func NewRef(kind Kind, id snowflake.ID) (Ref, error) {
	ref := Ref{Kind: kind, ID: id}
	if err := ref.Validate(); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

func (r Ref) Validate() error {
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if r.ID <= 0 {
		return ErrInvalidID
	}
	return nil
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

// UnmarshalJSON rejects refs with an unknown kind so stored invoices never carry one.
func (r *Ref) UnmarshalJSON(data []byte) error {
	type alias Ref
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := ParseKind(string(raw.Kind))
	if err != nil {
		return err
	}
	*r = Ref{Kind: kind, ID: raw.ID}
	return nil
}

// PaymentStatus is the payment column of a course session.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "Unpaid"
	PaymentPaid   PaymentStatus = "Paid"
)

// AddOnStatus is the status column of course-plus and package entries.
type AddOnStatus string

const (
	StatusUnpaid AddOnStatus = "unpaid"
	StatusPaid   AddOnStatus = "paid"
)

// Session is a student's enrollment in a course.
type Session struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	StudentID   snowflake.ID  `gorm:"not null;index" json:"studentId"`
	CourseID    snowflake.ID  `gorm:"not null;index" json:"courseId"`
	CourseName  string        `gorm:"type:text;not null" json:"courseName"`
	Payment     PaymentStatus `gorm:"type:text;not null;default:'Unpaid'" json:"payment"`
	InvoiceDone bool          `gorm:"not null;default:false" json:"invoiceDone"`
	CreatedAt   time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updatedAt"`
}

func (Session) TableName() string { return "sessions" }

// CoursePlus is a block of supplemental classes bought on top of a session.
type CoursePlus struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	SessionID        *snowflake.ID   `gorm:"index" json:"sessionId,omitempty"`
	StudentID        snowflake.ID    `gorm:"not null;index" json:"studentId"`
	Description      string          `gorm:"type:text;not null" json:"description"`
	Hours            int             `gorm:"not null;default:0" json:"hours"`
	Amount           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"amount"`
	Status           AddOnStatus     `gorm:"type:text;not null;default:'unpaid'" json:"status"`
	InvoiceGenerated bool            `gorm:"not null;default:false" json:"invoiceGenerated"`
	CreatedAt        time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updatedAt"`
}

func (CoursePlus) TableName() string { return "course_plus" }

// Package is a prepaid bundle of sessions.
type Package struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	StudentID        snowflake.ID    `gorm:"not null;index" json:"studentId"`
	Name             string          `gorm:"type:text;not null" json:"name"`
	Sessions         int             `gorm:"not null;default:0" json:"sessions"`
	Amount           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"amount"`
	Status           AddOnStatus     `gorm:"type:text;not null;default:'unpaid'" json:"status"`
	InvoiceGenerated bool            `gorm:"not null;default:false" json:"invoiceGenerated"`
	CreatedAt        time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updatedAt"`
}

func (Package) TableName() string { return "packages" }

// EntryState is the part of a ledger row the invoice workflow reads.
type EntryState struct {
	Ref      Ref
	Invoiced bool
	Paid     bool
}
