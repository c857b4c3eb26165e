package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

// respondError writes the error envelope {"error", "message", "details"}
// for err. Unknown errors are logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var (
		verr     *domain.ValidationError
		conflict *domain.AliasConflictError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "ValidationError",
			"message": verr.Error(),
			"details": gin.H{"field": verr.Field, "message": verr.Message},
		})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "AliasConflict",
			"message": conflict.Error(),
			"details": gin.H{"alias": conflict.Alias, "project_id": conflict.ProjectID},
		})
	case errors.Is(err, domain.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "TemplateNotFound",
			"message": "template not found in project",
		})
	case errors.Is(err, domain.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "ValidationError",
			"message": err.Error(),
			"details": gin.H{"field": "status"},
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "InvalidTransition",
			"message": err.Error(),
		})
	default:
		logging.Op(c.Request.Context(), "http").WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "InternalError",
			"message": "internal server error",
		})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "BadRequest",
		"message": message,
	})
}

// dispatchWarning splits a BackendDispatchError off err. The template was
// stored in that case and the request still succeeds.
func dispatchWarning(err error) (string, error) {
	var derr *domain.BackendDispatchError
	if errors.As(err, &derr) {
		return "template stored but the build could not be started: " + derr.Err.Error(), nil
	}
	return "", err
}
