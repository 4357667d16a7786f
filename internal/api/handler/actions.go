package handler

import (
	"net/http"

	"github.com/heatwise/heatwise/internal/api/models"
	"github.com/heatwise/heatwise/internal/api/response"
	"github.com/heatwise/heatwise/internal/mitigation"
)

// ActionsHandler serves the mitigation action catalog.
type ActionsHandler struct{}

// NewActionsHandler creates a new ActionsHandler.
func NewActionsHandler() *ActionsHandler {
	return &ActionsHandler{}
}

// ListActions handles GET /v1/actions, ordered by heat drop then CO2 saved.
func (h *ActionsHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.ActionList{
		Items: toActionModels(mitigation.Catalog()),
	})
}
