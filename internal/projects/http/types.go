package http

import "github.com/GoSim-25-26J-441/template-registry/internal/projects/service"

// Handler bundles the dependencies for project HTTP endpoints.
type Handler struct {
	svc *service.ProjectService
}

func New(svc *service.ProjectService) *Handler {
	return &Handler{svc: svc}
}
