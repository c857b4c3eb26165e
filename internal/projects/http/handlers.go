package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/template-registry/internal/auth"
	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	"github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
)

func (h *Handler) current(c *gin.Context) {
	p, ok := auth.CurrentProject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "missing project context"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// issueKey returns a new plaintext key. It is shown once and never stored.
func (h *Handler) issueKey(c *gin.Context) {
	p, ok := auth.CurrentProject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "missing project context"})
		return
	}

	key, err := h.svc.IssueKey(c.Request.Context(), p.ID)
	if err != nil {
		logging.Op(c.Request.Context(), "issue_key").WithError(err).Error("failed to issue api key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "InternalError", "message": "failed to issue api key"})
		return
	}

	prefix, _ := domain.KeyPrefix(key)
	c.JSON(http.StatusCreated, gin.H{"api_key": key, "key_prefix": prefix})
}

func (h *Handler) revokeKey(c *gin.Context) {
	p, ok := auth.CurrentProject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "missing project context"})
		return
	}

	prefix := strings.TrimSpace(c.Param("prefix"))
	err := h.svc.RevokeKey(c.Request.Context(), p.ID, prefix)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, domain.ErrInvalidAPIKey):
		c.JSON(http.StatusNotFound, gin.H{"error": "KeyNotFound", "message": "no active key with that prefix"})
	default:
		logging.Op(c.Request.Context(), "revoke_key").WithError(err).Error("failed to revoke api key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "InternalError", "message": "failed to revoke api key"})
	}
}
