package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	again, err := NewHTTPMetrics(reg)
	require.NoError(t, err)
	assert.NotNil(t, again)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/invoices/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1, testutil.CollectAndCount(m.requests))
}
