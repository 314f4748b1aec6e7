package server

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/schoolbill/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	rateLimitReasonClientRate  = "client-rate"
	rateLimitReasonInvoiceLock = "invoice-lock"

	invoiceUnlockTimeout = 2 * time.Second
)

// WriteRateLimit throttles mutating requests per client ip. It is a no-op without a limiter.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.limiter.AllowClient(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("write rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			s.denyWrite(c, rateLimitReasonClientRate, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// InvoiceLock lets one confirm or cancel run per invoice at a time.
func (s *Server) InvoiceLock() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		id := strings.TrimSpace(c.Param("id"))
		lease, ok, err := s.limiter.LockInvoice(ctx, id)
		if err != nil {
			logger.FromContext(ctx).Warn("invoice lock failed", zap.Error(err), zap.String("invoice_id", id))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !ok {
			s.denyWrite(c, rateLimitReasonInvoiceLock, ErrInvoiceBusy)
			return
		}
		defer func() {
			// the lease must go even when the client has hung up
			unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invoiceUnlockTimeout)
			defer cancel()
			if err := s.limiter.UnlockInvoice(unlockCtx, lease); err != nil {
				logger.FromContext(ctx).Warn("invoice unlock failed", zap.Error(err), zap.String("invoice_id", id))
			}
		}()

		c.Next()
	}
}

func (s *Server) denyWrite(c *gin.Context, reason string, err error) {
	ctx := c.Request.Context()
	endpoint := normalizeRateLimitEndpoint(c)
	logger.FromContext(ctx).Warn("write rejected",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, reason)

	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, err)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
