package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abelbrown/rabbitbrain/internal/analysis"
	"github.com/abelbrown/rabbitbrain/internal/logging"
	"github.com/abelbrown/rabbitbrain/internal/ratelimit"
)

// Context keys set by the middleware chain.
const (
	requestIDKey = "request_id"
	callerKey    = "caller"
)

// UserHeader carries the caller identity. Authentication happens upstream
// of this service.
const UserHeader = "X-User-ID"

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CallerMiddleware resolves the caller key used for rate limiting and
// history: the user header when present, else the client IP.
func CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(callerKey, callerID(c))
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	if v, ok := c.Get(callerKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if id := c.GetHeader(UserHeader); id != "" {
		return id
	}
	return c.ClientIP()
}

// LoggingMiddleware provides structured request logging
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logging.Info("HTTP request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"latency", time.Since(start),
			"caller", c.GetString(callerKey),
			"request_id", c.GetString(requestIDKey))
	}
}

// RecoveryMiddleware turns handler panics into INTERNAL_ERROR responses.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logging.Error("Request handler panic",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path)
				abortWithError(c, analysis.Errorf(analysis.CodeInternalError, "Unexpected error"))
			}
		}()

		c.Next()
	}
}

// RateLimitMiddleware rejects callers that exhausted their bucket.
func RateLimitMiddleware(l *ratelimit.Limiter, onLimited func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := callerID(c)
		if l.Allow(key) {
			c.Next()
			return
		}
		if onLimited != nil {
			onLimited()
		}
		wait := l.RetryAfter(key)
		c.Header("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(wait.Seconds())))))
		logging.Warn("rate limited", "caller", key, "retry_after", wait)
		abortWithError(c, analysis.Errorf(analysis.CodeRateLimit, "Rate limit exceeded"))
	}
}

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error string        `json:"error"`
	Code  analysis.Code `json:"code"`
}

func abortWithError(c *gin.Context, err error) {
	code := analysis.CodeOf(err)
	msg := "Unexpected error"
	var ae *analysis.Error
	if errors.As(err, &ae) && ae.Message != "" {
		msg = ae.Message
	}
	status := analysis.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logging.Error("request failed", "code", code, "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Code: code})
}
