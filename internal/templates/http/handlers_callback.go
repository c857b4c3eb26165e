package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

// CallbackSecretHeader authenticates build backend callbacks.
const CallbackSecretHeader = "X-Build-Callback-Secret"

// BuildCallbackBody is posted by the build backend when a build changes state.
type BuildCallbackBody struct {
	TemplateID string `json:"template_id" binding:"required"`
	ProjectID  string `json:"project_id" binding:"required"`
	Status     string `json:"status" binding:"required"`
	Error      string `json:"error,omitempty"`
}

// BuildCallback applies a status report from the build backend. When no
// secret is configured the callback is accepted unauthenticated; config
// validation refuses that in production.
func (h *Handler) BuildCallback(c *gin.Context) {
	if h.callbackSecret != "" {
		secret := c.GetHeader(CallbackSecretHeader)
		if subtle.ConstantTimeCompare([]byte(secret), []byte(h.callbackSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "invalid callback secret",
			})
			return
		}
	}

	var body BuildCallbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	log := logging.Op(c.Request.Context(), "BuildCallback").WithFields(logrus.Fields{
		"template_id": body.TemplateID,
		"project_id":  body.ProjectID,
		"status":      body.Status,
	})

	tpl, err := h.svc.ApplyBuildStatus(c.Request.Context(), body.ProjectID, body.TemplateID, domain.BuildStatus(body.Status), body.Error)
	if err != nil {
		log.WithError(err).Warn("build callback rejected")
		respondError(c, err)
		return
	}

	log.Info("build callback applied")
	c.JSON(http.StatusOK, gin.H{
		"message":     "callback processed",
		"template_id": tpl.ID,
		"status":      tpl.BuildStatus,
	})
}
