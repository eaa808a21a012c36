package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/takimoto3/appleapi-offer"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
)

// requestID tags every request with a fresh UUID, echoed in X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger replaces gin's default logger with slog.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "HTTP request",
			slog.String("requestID", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("proto", c.Request.Proto),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("clientIP", c.ClientIP()),
		)
	}
}

// recovery turns panics into a 500 error envelope.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("Panic recovered",
			slog.String("requestID", c.GetString(requestIDKey)),
			slog.Any("panic", recovered),
		)
		internalError(c, "Internal server error")
	})
}

// maxBody limits how much of the request body handlers may read.
func maxBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// rateLimit rejects requests over lim's per-IP rate.
func rateLimit(lim *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpErr := tollbooth.LimitByRequest(lim, c.Writer, c.Request); httpErr != nil {
			c.AbortWithStatusJSON(httpErr.StatusCode, offer.ErrorResponse{
				Error:   offer.ErrorTooManyRequests,
				Code:    httpErr.StatusCode,
				Message: "Too many requests, try again later",
			})
			return
		}
		c.Next()
	}
}
