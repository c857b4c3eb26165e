package http

import "github.com/gin-gonic/gin"

// Register registers the template routes. The group must be behind the API
// key middleware.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/templates/build", h.RequestBuild)
	rg.POST("/templates", h.CreateTemplate)
	rg.GET("/templates", h.ListTemplates)
	rg.GET("/templates/alias/:alias", h.GetByAlias)
	rg.GET("/templates/:id", h.GetTemplate)
	rg.GET("/templates/:id/status", h.GetStatus)
	rg.GET("/templates/:id/events", h.StreamTemplateEvents)
	rg.PATCH("/templates/:id", h.UpdateTemplate)
	rg.DELETE("/templates/:id", h.DeleteTemplate)
}

// RegisterCallbackRoutes registers routes called by the build backend, not
// end users.
func (h *Handler) RegisterCallbackRoutes(rg *gin.RouterGroup) {
	rg.POST("/builds/callback", h.BuildCallback)
}
