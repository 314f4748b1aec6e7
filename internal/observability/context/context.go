// Package context carries request-scoped identifiers for logs and traces.
package context

import "context"

type (
	requestIDKey struct{}
	invoiceIDKey struct{}
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey{})
}

// WithInvoiceID tags ctx with the invoice a request operates on.
func WithInvoiceID(ctx context.Context, invoiceID string) context.Context {
	return withString(ctx, invoiceIDKey{}, invoiceID)
}

func InvoiceIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, invoiceIDKey{})
}

func withString(ctx context.Context, key any, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
