package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/template-registry/internal/auth"
	projectdomain "github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

func currentProject(c *gin.Context) (projectdomain.Project, bool) {
	p, ok := auth.CurrentProject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "missing project context",
		})
	}
	return p, ok
}

// RequestBuild creates a template and starts its build. With force_rebuild
// an existing template under the same alias is replaced.
func (h *Handler) RequestBuild(c *gin.Context) {
	project, ok := currentProject(c)
	if !ok {
		return
	}

	var req buildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	tpl, err := h.svc.RequestBuild(c.Request.Context(), project, domain.BuildRequest{
		CreateTemplateRequest: domain.CreateTemplateRequest{
			Alias:     req.Alias,
			Config:    req.Config,
			BuildFile: req.BuildFile,
		},
		ForceRebuild: req.ForceRebuild,
	})
	warning, err := dispatchWarning(err)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := BuildResponse{
		TemplateID: tpl.ID,
		Alias:      tpl.Alias,
		Status:     tpl.BuildStatus,
		Message:    "Template build started successfully",
		Warning:    warning,
	}
	if warning != "" {
		resp.Message = "Template stored but build failed to start"
	}
	c.JSON(http.StatusAccepted, resp)
}

// CreateTemplate registers a template without replacing existing ones.
func (h *Handler) CreateTemplate(c *gin.Context) {
	project, ok := currentProject(c)
	if !ok {
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	tpl, err := h.svc.CreateTemplate(c.Request.Context(), project, domain.CreateTemplateRequest{
		Alias:     req.Alias,
		Config:    req.Config,
		BuildFile: req.BuildFile,
	})
	warning, err := dispatchWarning(err)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"template": tpl}
	if warning != "" {
		body["warning"] = warning
	}
	c.JSON(http.StatusCreated, body)
}

// ListTemplates handles GET /templates?page=&page_size=
func (h *Handler) ListTemplates(c *gin.Context) {
	project, ok := currentProject(c)
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		badRequest(c, "page must be an integer")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "0"))
	if err != nil {
		badRequest(c, "page_size must be an integer")
		return
	}

	result, err := h.svc.ListTemplates(c.Request.Context(), project, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	project, ok := currentProject(c)
	if !ok {
		return
	}

	tpl, err := h.svc.GetTemplate(c.Request.Context(), project, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tpl})
}

func (h *Handler) GetByAlias(c *gin.Context) {
	project, ok := currentProject(c)
	if !ok {
		return
	}

	tpl, err := h.svc.GetByAlias(c.Request.Context(), project, c.Param("alias"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tpl})
}

// GetStatus returns the build status of a template.
func (h *Handler) GetStatus(c *gin.Context) {
	project, ok := currentProject(c)
	if !ok {
		return
	}

	tpl, err := h.svc.GetTemplate(c.Request.Context(), project, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		TemplateID: tpl.ID,
		Alias:      tpl.Alias,
		Status:     tpl.BuildStatus,
		BuildError: tpl.BuildError,
		CreatedAt:  tpl.CreatedAt,
		UpdatedAt:  tpl.UpdatedAt,
	})
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	project, ok := currentProject(c)
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	tpl, err := h.svc.UpdateTemplate(c.Request.Context(), project, c.Param("id"), domain.UpdateTemplateRequest{
		Alias:  req.Alias,
		Config: req.Config,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tpl})
}

// DeleteTemplate responds 204 on success and 404 when nothing matched.
func (h *Handler) DeleteTemplate(c *gin.Context) {
	project, ok := currentProject(c)
	if !ok {
		return
	}

	deleted, err := h.svc.DeleteTemplate(c.Request.Context(), project, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		respondError(c, domain.ErrTemplateNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
