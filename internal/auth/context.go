package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
)

const (
	CtxProject = "project"
)

// SetProject stores the authenticated project on the Gin context.
func SetProject(c *gin.Context, p domain.Project) {
	c.Set(CtxProject, p)
}

// CurrentProject returns the project set by APIKeyMiddleware.
func CurrentProject(c *gin.Context) (domain.Project, bool) {
	v, ok := c.Get(CtxProject)
	if !ok {
		return domain.Project{}, false
	}
	p, ok := v.(domain.Project)
	return p, ok && p.ID != ""
}
