package middleware

import (
	"fmt"
	"strconv"
	"time"

	"qr-payment-ledger/internal/core/ports"
	"qr-payment-ledger/pkg/apperror"
	"qr-payment-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the default limits per endpoint group.
// Issuing mines a block, and validation rehashes the whole chain, so both
// are held well below the read groups.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"issue":   {Limit: 60, Window: time.Minute},
		"redeem":  {Limit: 120, Window: time.Minute},
		"inspect": {Limit: 240, Window: time.Minute},
		"chain":   {Limit: 120, Window: time.Minute},
		"audit":   {Limit: 6, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// A failing store lets the request through.
func RateLimiter(store ports.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := max(result.ResetAt-time.Now().Unix(), 1)
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys limits by token subject, falling back to client IP.
func extractIdentifier(c *gin.Context) string {
	if sub := c.GetString(CtxSubject); sub != "" {
		return sub
	}
	return c.ClientIP()
}
