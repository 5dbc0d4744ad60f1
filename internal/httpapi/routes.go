package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Routes builds the router with the API's handlers mounted. When ws is
// non-nil the realtime relay endpoint is served from the same process.
func (a *API) Routes(ws http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(a.log))

	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", a.CreateGame)
		r.Route("/{gameID}", func(r chi.Router) {
			r.Get("/", a.GetGame)
			r.Patch("/", a.UpdateGame)
			r.Post("/players", a.CreatePlayer)
			r.Get("/players", a.ListPlayers)
			r.Delete("/players/{playerID}", a.DeletePlayer)
		})
	})

	r.Get("/healthz", Healthz)
	if ws != nil {
		r.Get("/ws", ws)
	}
	return r
}

// requestLogger emits one line per completed request. Handler failures carry
// their own error logs, so this stays at info.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)))
		})
	}
}
