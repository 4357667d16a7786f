package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/api/models"
	"github.com/heatwise/heatwise/internal/api/response"
	"github.com/heatwise/heatwise/internal/featureflags"
)

// FeatureFlagsHandler handles the admin feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, logger: logger}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.FeatureFlagList{
		Items: toFlagModels(h.service.ListFlags(r.Context())),
	})
}

// UpdateFeatureFlags handles PUT /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) UpdateFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if detail, fields, ok := decodeBody(w, r, &req); !ok {
		response.BadRequest(w, r, detail, fields)
		return
	}

	flags, err := h.service.Update(r.Context(), req)
	if err != nil {
		if errors.Is(err, featureflags.ErrUnknownFlag) || errors.Is(err, featureflags.ErrInvalidFlagValue) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		h.logger.Error().Err(err).Msg("updating feature flags")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	response.JSON(w, r, http.StatusOK, models.FeatureFlagList{Items: toFlagModels(flags)})
}

// FeatureFlagHistory handles GET /v1/admin/feature-flags/history.
func (h *FeatureFlagsHandler) FeatureFlagHistory(w http.ResponseWriter, r *http.Request) {
	changes := h.service.History()
	items := make([]models.FeatureFlagChange, 0, len(changes))
	for _, c := range changes {
		items = append(items, models.FeatureFlagChange{
			Key:    c.Key,
			Value:  c.Value,
			Reason: c.Reason,
			At:     models.Timestamp(c.At),
		})
	}
	response.JSON(w, r, http.StatusOK, models.FeatureFlagHistory{Items: items})
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
