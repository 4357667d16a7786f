package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/api/models"
)

// Recovery turns a handler panic into a logged 500 problem. A panic with
// http.ErrAbortHandler is passed on so the server drops the connection.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				err, ok := v.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", v)
				}
				if errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				id := GetRequestID(r.Context())
				log.Error().
					Err(err).
					Str("request_id", id).
					Str("method", r.Method).
					Str("route", routePattern(r)).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				p := models.NewInternalError(id, "an unexpected error occurred")
				p.Instance = r.URL.Path
				p.Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
