package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/schoolbill/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsRequestScopedFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithInvoiceID(ctx, "1001")
	WithContext(ctx, base).Info("invoice audit")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "1001", fields["invoice_id"])
	assert.Equal(t, "", fields["trace_id"])
}

func TestWithContextOmitsMissingInvoice(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	WithContext(context.Background(), zap.New(core)).Info("http_request")

	_, ok := logs.All()[0].ContextMap()["invoice_id"]
	assert.False(t, ok)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestServiceFieldsDefaultName(t *testing.T) {
	fields := serviceFields(Config{Environment: "test"})
	assert.Equal(t, "schoolbill", fields[0].String)
	assert.Equal(t, "test", fields[1].String)
}
