package handlers

import (
	"net/http"

	"github.com/beedevservices/portal/internal/httpx"
	"github.com/beedevservices/portal/internal/services"
)

type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Items lists the active catalog presets in display order.
func (h *CatalogHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ActiveCatalogItems(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}
