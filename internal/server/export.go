package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/internal/invoice/export"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
)

// maxExportRows caps a single spreadsheet export.
const maxExportRows = 5000

// ExportInvoices streams every invoice matching the list filters as an xlsx workbook.
// Paging parameters are ignored.
func (s *Server) ExportInvoices(c *gin.Context) {
	req, ok := bindListInvoicesQuery(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	req.Limit = pagination.MaxLimit

	var invoices []invoicedomain.Invoice
	for page := 1; len(invoices) < maxExportRows; page++ {
		req.Page = page
		resp, err := s.invoiceSvc.List(ctx, req)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		invoices = append(invoices, resp.Invoices...)
		if page >= resp.TotalPages {
			break
		}
	}
	if len(invoices) > maxExportRows {
		invoices = invoices[:maxExportRows]
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, invoices); err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("invoices-%s.xlsx", s.now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
