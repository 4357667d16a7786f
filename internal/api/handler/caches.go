package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/api/response"
)

// CachesHandler handles the admin cache endpoints.
type CachesHandler struct {
	weather WeatherCache
	logger  zerolog.Logger
}

// NewCachesHandler creates a new CachesHandler.
func NewCachesHandler(weather WeatherCache, logger zerolog.Logger) *CachesHandler {
	return &CachesHandler{weather: weather, logger: logger}
}

// InvalidateWeather handles POST /v1/admin/caches/weather/invalidate. The
// next lookup in every cell goes to the provider.
func (h *CachesHandler) InvalidateWeather(w http.ResponseWriter, r *http.Request) {
	h.weather.InvalidateCache()
	h.logger.Info().Msg("weather cache invalidated")
	response.NoContent(w, r)
}
