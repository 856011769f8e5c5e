package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AdminSecretHeader carries the shared admin secret on admin endpoints.
const AdminSecretHeader = "X-Admin-Secret"

// RequireAdmin validates the shared admin secret against its bcrypt hash.
// An empty configured hash disables every admin endpoint.
func RequireAdmin(secretHash string, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretHash == "" {
			logger.Warn().Msg("admin endpoint hit but no admin secret configured")
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin access disabled"})
			c.Abort()
			return
		}

		secret := c.GetHeader(AdminSecretHeader)
		if secret == "" {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing admin secret"})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(secret)); err != nil {
			logger.Debug().Msg("admin secret mismatch")
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "invalid admin secret"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequestLogger tags each request with an id and logs it on completion.
func RequestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		logger.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
