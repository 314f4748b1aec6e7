package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	obscontext "github.com/smallbiznis/schoolbill/internal/observability/context"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
)

type sessionGroupRequest struct {
	SessionID       idValue `json:"sessionId"`
	TransactionType string  `json:"transactionType" binding:"required"`
	ActualID        idValue `json:"actualId"`
}

type invoiceItemRequest struct {
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

type createInvoiceRequest struct {
	StudentID     idValue               `json:"studentId" binding:"required"`
	Date          string                `json:"date"`
	PaymentMethod *string               `json:"paymentMethod" binding:"omitempty,payment_method"`
	TotalAmount   decimal.Decimal       `json:"totalAmount"`
	StudentName   string                `json:"studentName"`
	CourseName    string                `json:"courseName"`
	SessionGroups []sessionGroupRequest `json:"sessionGroups" binding:"required,min=1,dive"`
	Items         []invoiceItemRequest  `json:"items" binding:"required,min=1,dive"`
}

type confirmPaymentRequest struct {
	PaymentMethod *string `json:"paymentMethod" binding:"omitempty,payment_method"`
	ReceiptDate   string  `json:"receiptDate"`
}

type listInvoicesQuery struct {
	pagination.Pagination
	DocumentID  string `form:"documentId"`
	CourseName  string `form:"courseName"`
	ReceiptDone string `form:"receiptDone"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	date, err := parseOptionalTime(req.Date)
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD or RFC3339"))
		return
	}

	refs := make([]ledgerdomain.Ref, 0, len(req.SessionGroups))
	for i, group := range req.SessionGroups {
		rawID := group.ActualID.String()
		if rawID == "" {
			rawID = group.SessionID.String()
		}
		ref, err := parseLedgerRef(group.TransactionType, rawID)
		if err != nil {
			field := fmt.Sprintf("sessionGroups[%d].actualId", i)
			code, message := "invalid_id", "invalid ledger entry id"
			if errors.Is(err, ledgerdomain.ErrInvalidKind) {
				field = fmt.Sprintf("sessionGroups[%d].transactionType", i)
				code, message = "invalid_transaction_type", "transactionType must be course, courseplus or package"
			}
			AbortWithError(c, newValidationError(field, code, message))
			return
		}
		refs = append(refs, ref)
	}

	items := make([]invoicedomain.CreateInvoiceItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, invoicedomain.CreateInvoiceItem{
			Description: item.Description,
			Amount:      item.Amount,
		})
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		StudentID:     req.StudentID.String(),
		Date:          date,
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   req.TotalAmount,
		StudentName:   req.StudentName,
		CourseName:    req.CourseName,
		SessionGroups: refs,
		Items:         items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) ListInvoices(c *gin.Context) {
	req, ok := bindListInvoicesQuery(c)
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       resp.Invoices,
		"page":       resp.Page,
		"limit":      resp.Limit,
		"total":      resp.Total,
		"totalPages": resp.TotalPages,
	})
}

func bindListInvoicesQuery(c *gin.Context) (invoicedomain.ListInvoiceRequest, bool) {
	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return invoicedomain.ListInvoiceRequest{}, false
	}

	receiptDone, err := parseOptionalBool(query.ReceiptDone)
	if err != nil {
		AbortWithError(c, newValidationError("receiptDone", "invalid_receipt_done", "receiptDone must be true or false"))
		return invoicedomain.ListInvoiceRequest{}, false
	}

	return invoicedomain.ListInvoiceRequest{
		Page:        query.Page,
		Limit:       query.Limit,
		DocumentID:  query.DocumentID,
		CourseName:  query.CourseName,
		ReceiptDone: receiptDone,
	}, true
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	item, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) PeekNextDocumentID(c *gin.Context) {
	documentID, err := s.invoiceSvc.PeekNextDocumentID(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documentId": documentID})
}

func (s *Server) AllocateDocumentID(c *gin.Context) {
	documentID, err := s.counterSvc.NextDocumentID(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"documentId": documentID})
}

func (s *Server) ConfirmInvoicePayment(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, bindingError(err))
		return
	}

	receiptDate, err := parseOptionalTime(req.ReceiptDate)
	if err != nil {
		AbortWithError(c, newValidationError("receiptDate", "invalid_receipt_date", "receiptDate must be YYYY-MM-DD or RFC3339"))
		return
	}

	result, err := s.invoiceSvc.ConfirmPayment(c.Request.Context(), id, invoicedomain.ConfirmPaymentRequest{
		PaymentMethod: req.PaymentMethod,
		ReceiptDate:   receiptDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Payment confirmed",
		"updatedSessions": result.UpdatedSessions,
		"receiptId":       result.ReceiptID,
		"invoice":         result.Invoice,
	})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	result, err := s.invoiceSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Invoice cancelled",
		"updatedSessions": result.UpdatedSessions,
	})
}

func invoiceIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if parsed, err := snowflake.ParseString(id); err != nil || parsed <= 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return "", false
	}
	c.Request = c.Request.WithContext(obscontext.WithInvoiceID(c.Request.Context(), id))
	return id, true
}
