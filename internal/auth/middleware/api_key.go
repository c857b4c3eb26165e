package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/template-registry/internal/auth"
	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	"github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
)

// KeyResolver maps a plaintext API key to its project.
type KeyResolver interface {
	ResolveAPIKey(ctx context.Context, key string) (*domain.Project, error)
}

// APIKeyMiddleware authenticates the caller by X-API-Key (or a Bearer
// token) and stores the resolved project on the context.
func APIKeyMiddleware(resolver KeyResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := extractKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "missing API key",
			})
			return
		}

		project, err := resolver.ResolveAPIKey(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidAPIKey) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "Unauthorized",
					"message": "invalid API key",
				})
				return
			}
			logging.Op(c.Request.Context(), "authenticate").WithError(err).Error("api key lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "InternalError",
				"message": "internal server error",
			})
			return
		}

		auth.SetProject(c, *project)
		c.Next()
	}
}

func extractKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
		return key
	}
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return strings.TrimSpace(bearerToken[7:])
	}
	return ""
}
