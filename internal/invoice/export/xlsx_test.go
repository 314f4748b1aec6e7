package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleInvoice(method *string) invoicedomain.Invoice {
	return invoicedomain.Invoice{
		DocumentID:    "202508120001",
		Date:          time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC),
		PaymentMethod: method,
		TotalAmount:   decimal.RequireFromString("1500.50"),
		StudentName:   "Somchai",
		CourseName:    "Piano",
		SessionGroups: []ledgerdomain.Ref{
			{Kind: ledgerdomain.KindCourse, ID: snowflake.ID(11)},
			{Kind: ledgerdomain.KindPackage, ID: snowflake.ID(12)},
		},
	}
}

func TestRow(t *testing.T) {
	cash := "Cash"
	row := Row(sampleInvoice(&cash))

	assert.Equal(t, []any{
		"202508120001",
		"2025-08-12",
		"Somchai",
		"Piano",
		"Cash",
		1500.5,
		false,
		"course:11, package:12",
	}, row)

	assert.Equal(t, "", Row(sampleInvoice(nil))[4])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, []invoicedomain.Invoice{sampleInvoice(nil)}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Document ID", rows[0][0])
	assert.Equal(t, "202508120001", rows[1][0])
	assert.Equal(t, "Somchai", rows[1][2])
}
