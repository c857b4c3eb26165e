package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group. The group must
// be behind the API key middleware.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/project", h.current)
	rg.POST("/project/keys", h.issueKey)
	rg.DELETE("/project/keys/:prefix", h.revokeKey)
}
