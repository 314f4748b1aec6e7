// Package export renders invoice listings as spreadsheets.
package export

import (
	"io"
	"strings"

	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Invoices"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []any{
	"Document ID",
	"Date",
	"Student",
	"Course",
	"Payment Method",
	"Total Amount",
	"Receipt Done",
	"Session Groups",
}

// WriteXLSX writes one row per invoice under a fixed header row.
func WriteXLSX(w io.Writer, invoices []invoicedomain.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i, inv := range invoices {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := Row(inv)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}

// Row flattens an invoice into the spreadsheet column order.
func Row(inv invoicedomain.Invoice) []any {
	method := ""
	if inv.PaymentMethod != nil {
		method = *inv.PaymentMethod
	}

	groups := make([]string, 0, len(inv.SessionGroups))
	for _, ref := range inv.SessionGroups {
		groups = append(groups, ref.String())
	}

	return []any{
		inv.DocumentID,
		inv.Date.Format("2006-01-02"),
		inv.StudentName,
		inv.CourseName,
		method,
		inv.TotalAmount.InexactFloat64(),
		inv.ReceiptDone,
		strings.Join(groups, ", "),
	}
}
