package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"poultryflow/auth"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// TokenVerifier validates a bearer token and returns the subject's identity.
type TokenVerifier interface {
	VerifyToken(token string) (string, auth.Role, error)
}

// Authenticate extracts and verifies the Authorization bearer token and
// stores the caller's id and role on the request context.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		userID, role, err := verifier.VerifyToken(token)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, string(role))
		c.Next()
	}
}

// RequireStaff rejects callers whose role is not manager or ceo.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorRole(c).Staff() {
			abortError(c, http.StatusForbidden, "FORBIDDEN", "staff role required")
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role differs from the required one.
func RequireRole(required auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorRole(c) != required {
			abortError(c, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			return
		}
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func actorRole(c *gin.Context) auth.Role {
	return auth.Role(c.GetString(ctxRole))
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
