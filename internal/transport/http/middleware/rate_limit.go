package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
)

const (
	rateLimitProblemType  = "https://kether.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// RateChecker is the fixed-window limiter consulted per request.
type RateChecker interface {
	Check(ctx context.Context, key string, class domain.ActionClass) (domain.RateLimitDecision, error)
}

// KeyFunc extracts the identifier a limit is scoped to.
type KeyFunc func(*gin.Context) (string, bool)

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// ClientIPKey scopes a limit to the client IP.
func ClientIPKey() KeyFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// IdentityOrIPKey scopes a limit to the session identity, falling back to the client IP.
func IdentityOrIPKey() KeyFunc {
	return func(c *gin.Context) (string, bool) {
		if session, ok := CurrentSession(c); ok {
			return "identity:" + session.IdentityID, true
		}
		ip := c.ClientIP()
		return "ip:" + ip, ip != ""
	}
}

// RateLimit enforces class's budget for the key. Store failures are decided by the limiter's
// failure policy; an error that reaches here is answered with 503.
func RateLimit(limiter RateChecker, class domain.ActionClass, key KeyFunc, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		id, ok := key(c)
		if !ok {
			c.Next()
			return
		}

		decision, err := limiter.Check(c.Request.Context(), id, class)
		if err != nil {
			log.Warn("rate limit check failed", zap.String("class", string(class)), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				newErrorResponse(c, domain.ErrorCode(err), "rate limiter unavailable"))
			return
		}

		applyRateLimitHeaders(c, decision, time.Now())
		if !decision.Allowed {
			respondRateLimited(c, decision)
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}

func applyRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision, now time.Time) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(decision.ResetIn).Unix(), 10))

	if !decision.Allowed {
		headers.Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.ResetIn)))
	}
}

func respondRateLimited(c *gin.Context, decision domain.RateLimitDecision) {
	retry := retryAfterSeconds(decision.ResetIn)

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", retry),
		Instance:   instance,
		RetryAfter: retry,
		TraceID:    GetTraceID(c),
	})
}
