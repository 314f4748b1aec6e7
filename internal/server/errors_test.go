package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	receiptdomain "github.com/smallbiznis/schoolbill/internal/receipt/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{invoicedomain.ErrAlreadyConfirmed, http.StatusBadRequest, "conflict"},
		{invoicedomain.ErrInvoiceReceipted, http.StatusBadRequest, "conflict"},
		{fmt.Errorf("create: %w", ledgerdomain.ErrAlreadyInvoiced), http.StatusConflict, "conflict"},
		{invoicedomain.ErrDuplicateDocumentID, http.StatusConflict, "conflict"},
		{receiptdomain.ErrReceiptExists, http.StatusConflict, "conflict"},
		{ErrInvoiceBusy, http.StatusConflict, "conflict"},
		{invoicedomain.ErrInvoiceNotFound, http.StatusNotFound, "not_found"},
		{ledgerdomain.ErrEntryNotFound, http.StatusNotFound, "not_found"},
		{receiptdomain.ErrReceiptNotFound, http.StatusNotFound, "not_found"},
		{invoicedomain.ErrInvalidPaymentMethod, http.StatusBadRequest, "validation_error"},
		{ledgerdomain.ErrInvalidKind, http.StatusBadRequest, "validation_error"},
		{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}

func TestLedgerRefErrorsAreReadable(t *testing.T) {
	ref := ledgerdomain.Ref{Kind: ledgerdomain.KindCourse, ID: 2110400030790651904}

	status, payload := mapError(fmt.Errorf("create: %w", &ledgerdomain.RefError{Ref: ref, Err: ledgerdomain.ErrAlreadyInvoiced}))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "session group is already on another invoice", payload.Message)
	assert.Equal(t, "course:2110400030790651904", payload.SessionGroup)

	status, payload = mapError(&ledgerdomain.RefError{Ref: ref, Err: ledgerdomain.ErrEntryNotFound})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session group not found", payload.Message)
	assert.Equal(t, "course:2110400030790651904", payload.SessionGroup)

	_, payload = mapError(ledgerdomain.ErrEntryNotFound)
	assert.Empty(t, payload.SessionGroup)
}

func TestValidationErrorCarriesField(t *testing.T) {
	status, payload := mapError(invoicedomain.ErrEmptySessionGroups)
	assert.Equal(t, http.StatusBadRequest, status)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "sessionGroups", payload.Errors[0].Field)
		assert.Equal(t, "session_groups_required", payload.Errors[0].Code)
	}

	kind, code := classifyErrorForLog(invoicedomain.ErrEmptySessionGroups)
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "session_groups_required", code)
}

func TestParseLedgerRef(t *testing.T) {
	ref, err := parseLedgerRef("CoursePlus", "cp-15")
	assert.NoError(t, err)
	assert.Equal(t, ledgerdomain.KindCoursePlus, ref.Kind)
	assert.EqualValues(t, 15, ref.ID)

	ref, err = parseLedgerRef("package", "pkg-9")
	assert.NoError(t, err)
	assert.EqualValues(t, 9, ref.ID)

	_, err = parseLedgerRef("course", "cp-15")
	assert.ErrorIs(t, err, errInvalidID)

	_, err = parseLedgerRef("voucher", "1")
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidKind)
}

func TestParseOptionalTime(t *testing.T) {
	got, err := parseOptionalTime("2025-08-12")
	assert.NoError(t, err)
	assert.Equal(t, 12, got.Day())

	got, err = parseOptionalTime("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseOptionalTime("12/08/2025")
	assert.Error(t, err)
}
