package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesTruncates(t *testing.T) {
	long := strings.Repeat("a", maxAttributeLength+10)
	attrs := SafeAttributes(attribute.String("http.route", long), attribute.Int("http.status_code", 200))

	assert.Len(t, attrs, 2)
	assert.Len(t, attrs[0].Value.AsString(), maxAttributeLength)
	assert.Equal(t, int64(200), attrs[1].Value.AsInt64())
}

func TestSafeErrorKeepsFirstLine(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New("boom\ndetail: secret")), "boom")
}
