package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
	"github.com/noah-isme/sma-adp-scheduler/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// ContextViewerKey is the gin context key storing the authenticated viewer.
const ContextViewerKey = "currentViewer"

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token. The viewer is also attached to the
// request context so collaborator calls made on its behalf carry the same identity.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		token := strings.TrimSpace(parts[1])
		claims, err := validator.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		viewer := models.ViewerFromClaims(claims, token)
		c.Set(ContextUserKey, claims)
		c.Set(ContextViewerKey, viewer)
		c.Request = c.Request.WithContext(scheduler.ContextWithViewer(c.Request.Context(), viewer))
		c.Next()
	}
}

// CurrentViewer returns the viewer attached by JWT.
func CurrentViewer(c *gin.Context) (models.Viewer, bool) {
	value, ok := c.Get(ContextViewerKey)
	if !ok {
		return models.Viewer{}, false
	}
	viewer, ok := value.(models.Viewer)
	return viewer, ok
}
