package handlers

import (
	"net/http"

	"github.com/beedevservices/portal/internal/httpx"
	"github.com/beedevservices/portal/internal/services"
)

type ProjectHandler struct {
	projects *services.ProjectService
}

func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// FromProposal kicks off delivery for a signed proposal.
func (h *ProjectHandler) FromProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		ManagerID *uint `json:"manager_id"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	project, err := h.projects.FromProposal(r.Context(), id, in.ManagerID)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

// View returns a project.
func (h *ProjectHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	project, err := h.projects.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}
