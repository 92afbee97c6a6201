package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"mission-quiz-service/internal/domain"
)

// FragmentLister reports the puzzle fragments a player has collected.
type FragmentLister interface {
	Fragments(ctx context.Context, playerID string) ([]string, error)
}

// PresetSource lists the rule presets missions can reference.
type PresetSource func() map[string]domain.MissionRules

// NewRouter mounts the health, preset, fragment and websocket routes.
// fragments may be nil when no result store is configured.
func NewRouter(ws *WSHandler, presets PresetSource, fragments FragmentLister, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)
		r.Get("/presets", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(presets())
		})
		if fragments != nil {
			r.Get("/players/{playerID}/fragments", func(w http.ResponseWriter, r *http.Request) {
				out, err := fragments.Fragments(r.Context(), chi.URLParam(r, "playerID"))
				if err != nil {
					log.Error().Err(err).Msg("list fragments")
					http.Error(w, `{"error":"fragments_unavailable"}`, http.StatusInternalServerError)
					return
				}
				if out == nil {
					out = []string{}
				}
				_ = json.NewEncoder(w).Encode(map[string][]string{"fragments": out})
			})
		}
	})

	// Long-lived; kept outside the timeout group.
	r.Get("/ws", ws.ServeWS)
	return r
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		})
	}
}
