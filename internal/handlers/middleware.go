package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	requestIDHeader = "X-Request-ID"
	operatorHeader  = "X-Operator-Name"
	operatorKey     = "operator"
)

// RequestLogger tags each request with an id and logs it once it finished.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

// Timeout bounds the context every engine operation runs under.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OperatorAuth guards mutating requests with a bearer token checked against a
// bcrypt hash. An empty hash disables the check.
func OperatorAuth(tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(operatorKey, strings.TrimSpace(c.GetHeader(operatorHeader)))
		if tokenHash == "" || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		token := c.GetHeader("Authorization")
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}
		if token == "" || bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid operator token", "code": "unauthorized"})
			return
		}
		c.Next()
	}
}

func operatorName(c *gin.Context) string {
	return c.GetString(operatorKey)
}
