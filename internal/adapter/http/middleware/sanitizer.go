package middleware

import (
	"mime"
	"net/http"

	"qr-payment-ledger/pkg/apperror"
	"qr-payment-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// Request bodies on the ledger API are small JSON objects: a payment intent
// or a code of a few hundred characters.
const DefaultMaxBodyBytes = 16 << 10

// MaxBodySize returns middleware that limits the request body size.
// Reads past the limit fail, and handlers that bind the body answer 413.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// RequireJSON rejects write requests whose body is not application/json.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}
		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}
		mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mt != "application/json" {
			response.Error(c, apperror.New("LEDGER_001", "Content-Type must be application/json", http.StatusUnsupportedMediaType))
			c.Abort()
			return
		}
		c.Next()
	}
}
