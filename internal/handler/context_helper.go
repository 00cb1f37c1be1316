package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-scheduler/internal/middleware"
	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
)

func viewerFromContext(c *gin.Context) (models.Viewer, error) {
	viewer, ok := middleware.CurrentViewer(c)
	if !ok || viewer.ID == "" {
		return models.Viewer{}, appErrors.ErrUnauthorized
	}
	return viewer, nil
}

// splitList parses a comma separated query value, dropping blanks.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
