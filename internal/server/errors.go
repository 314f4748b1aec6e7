package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	receiptdomain "github.com/smallbiznis/schoolbill/internal/receipt/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`

	// SessionGroup names the offending ref as kind:id.
	SessionGroup string `json:"sessionGroup,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")

	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrInvoiceBusy        = errors.New("invoice_busy")
)

type fieldError struct {
	err     error
	field   string
	message string
}

// validationErrors maps domain sentinels to the request field they describe.
var validationErrors = []fieldError{
	{ErrInvalidRequest, "request", "invalid request"},
	{invoicedomain.ErrInvalidInvoiceID, "id", "invalid invoice id"},
	{invoicedomain.ErrInvalidStudent, "studentId", "studentId is required"},
	{invoicedomain.ErrEmptySessionGroups, "sessionGroups", "at least one session group is required"},
	{invoicedomain.ErrDuplicateSessionGroup, "sessionGroups", "session group listed more than once"},
	{invoicedomain.ErrEmptyItems, "items", "at least one item is required"},
	{invoicedomain.ErrInvalidItem, "items", "item description is required"},
	{invoicedomain.ErrInvalidAmount, "amount", "amount must not be negative"},
	{invoicedomain.ErrInvalidPaymentMethod, "paymentMethod", "payment method is not supported"},
	{ledgerdomain.ErrInvalidKind, "transactionType", "unknown transaction type"},
	{ledgerdomain.ErrInvalidID, "id", "invalid id"},
	{ledgerdomain.ErrInvalidStudent, "studentId", "invalid student id"},
	{ledgerdomain.ErrInvalidCourse, "course", "invalid course"},
	{ledgerdomain.ErrInvalidAmount, "amount", "amount must not be negative"},
	{receiptdomain.ErrInvalidInvoiceID, "id", "invalid invoice id"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if fe, ok := matchValidationError(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   fe.field,
					Code:    fe.err.Error(),
					Message: fe.message,
				},
			},
		}
	}

	switch {
	// the precondition is permanent, so these are reported as bad requests
	case errors.Is(err, invoicedomain.ErrAlreadyConfirmed):
		return http.StatusBadRequest, errorPayload{
			Type:    "conflict",
			Message: "invoice payment already confirmed",
		}
	case errors.Is(err, invoicedomain.ErrInvoiceReceipted):
		return http.StatusBadRequest, errorPayload{
			Type:    "conflict",
			Message: "invoice has a receipt and cannot be cancelled",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, ErrInvoiceBusy):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "invoice is being updated by another request",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, ledgerdomain.ErrAlreadyInvoiced),
		errors.Is(err, invoicedomain.ErrDuplicateDocumentID),
		errors.Is(err, receiptdomain.ErrReceiptExists):
		return http.StatusConflict, errorPayload{
			Type:         "conflict",
			Message:      conflictMessage(err),
			SessionGroup: sessionGroupOf(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:         "not_found",
			Message:      notFoundMessage(err),
			SessionGroup: sessionGroupOf(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reports the response type and code an error maps to.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func matchValidationError(err error) (fieldError, bool) {
	for _, fe := range validationErrors {
		if errors.Is(err, fe.err) {
			return fe, true
		}
	}
	return fieldError{}, false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, ledgerdomain.ErrEntryNotFound),
		errors.Is(err, receiptdomain.ErrReceiptNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, invoicedomain.ErrInvoiceNotFound):
		return "invoice not found"
	case errors.Is(err, ledgerdomain.ErrEntryNotFound):
		return "session group not found"
	case errors.Is(err, receiptdomain.ErrReceiptNotFound):
		return "receipt not found"
	default:
		return "not found"
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, ledgerdomain.ErrAlreadyInvoiced):
		return "session group is already on another invoice"
	case errors.Is(err, invoicedomain.ErrDuplicateDocumentID):
		return "document id already in use"
	case errors.Is(err, receiptdomain.ErrReceiptExists):
		return "invoice already has a receipt"
	default:
		return "conflict"
	}
}

func sessionGroupOf(err error) string {
	var refErr *ledgerdomain.RefError
	if errors.As(err, &refErr) {
		return refErr.Ref.String()
	}
	return ""
}
