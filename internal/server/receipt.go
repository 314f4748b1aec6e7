package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetInvoiceReceipt(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	receipt, err := s.receiptSvc.GetByInvoiceID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": receipt})
}

func (s *Server) GetInvoiceReceiptPDF(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	pdf, err := s.receiptSvc.RenderPDF(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", pdf.Filename))
	c.Data(http.StatusOK, "application/pdf", pdf.Content)
}
