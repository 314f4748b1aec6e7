// Package render turns a paid invoice into a printable receipt.
package render

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptItem struct {
	Description string
	Amount      string
}

type ReceiptData struct {
	SchoolName    string
	SchoolAddress string
	SchoolEmail   string
	SchoolTaxID   string
	Footer        string

	DocumentID    string
	ReceiptID     string
	DatePaid      string
	PaymentMethod string

	StudentName string
	CourseName  string

	Items    []ReceiptItem
	Currency string
	Total    string
}

type Renderer interface {
	Render(ctx context.Context, data ReceiptData) ([]byte, error)
}

type PDFRenderer struct{}

func New() Renderer {
	return &PDFRenderer{}
}

var ErrEmptyReceipt = errors.New("receipt_has_no_document_id")

func (r *PDFRenderer) Render(ctx context.Context, data ReceiptData) ([]byte, error) {
	if data.DocumentID == "" {
		return nil, ErrEmptyReceipt
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(6, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		col.New(6).Add(
			text.New(data.SchoolName, props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(data.SchoolAddress, props.Text{Top: 5, Size: 9, Align: align.Right}),
			text.New(data.SchoolEmail, props.Text{Top: 9, Size: 9, Align: align.Right}),
			text.New(taxLine(data.SchoolTaxID), props.Text{Top: 13, Size: 9, Align: align.Right}),
		),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New("Document no: "+data.DocumentID, props.Text{Top: 0}),
			text.New("Receipt no: "+data.ReceiptID, props.Text{Top: 5}),
			text.New("Date paid: "+data.DatePaid, props.Text{Top: 10}),
			text.New("Payment method: "+orDash(data.PaymentMethod), props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Received from", props.Text{Style: fontstyle.Bold}),
			text.New(data.StudentName, props.Text{Top: 5}),
			text.New(data.CourseName, props.Text{Top: 10}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, data.Total+" "+data.Currency+" paid on "+data.DatePaid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(9, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(9, item.Description, props.Text{Size: 9}),
			text.NewCol(3, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(6),
		text.NewCol(3, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(3, data.Total+" "+data.Currency, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)

	if data.Footer != "" {
		m.AddRow(15,
			text.NewCol(12, data.Footer, props.Text{Size: 9, Top: 5, Align: align.Center}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func taxLine(taxID string) string {
	if taxID == "" {
		return ""
	}
	return "Tax ID: " + taxID
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
