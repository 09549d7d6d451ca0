package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ContextVoterID  = "voter_id"
	ContextUsername = "username"
)

// AuthMiddleware requires a Bearer token. An expired token answers with the
// session_expired notice so the client can prompt for a new sign-in.
func AuthMiddleware(jwtManager JWTManagerInterface, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "authorization header is required",
			})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug("auth middleware: invalid authorization header format",
				zap.String("path", c.Request.URL.Path),
				zap.Int("parts", len(parts)),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			logger.Debug("auth middleware: token validation failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			if errors.Is(err, ErrExpiredToken) {
				notice := domain.MessageFor(domain.KindSessionExpired)
				c.JSON(http.StatusUnauthorized, gin.H{
					"status":  "error",
					"kind":    notice.Kind,
					"message": notice.Text,
				})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{
					"status":  "error",
					"message": err.Error(),
				})
			}
			c.Abort()
			return
		}

		c.Set(ContextVoterID, claims.VoterID)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}
