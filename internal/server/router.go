package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/csvflow/csvflow/internal/auth"
	"github.com/csvflow/csvflow/internal/enrich"
	"github.com/csvflow/csvflow/internal/importsvc"
	"github.com/csvflow/csvflow/internal/server/handler"
)

// NewRouter creates and configures the HTTP router with middleware and API
// routes. The key-scoped endpoints are deliberately outside the auth
// middleware: the importer key is their only credential.
func NewRouter(svc *importsvc.Service, suggester enrich.Suggester, verifier auth.Verifier, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	importHandler := handler.NewImportHandler(svc, suggester, logger)

	r.Route("/api/v1/imports", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier))
			r.Post("/", importHandler.Create)
			r.Get("/", importHandler.List)
			r.Get("/{jobID}", importHandler.Get)
		})

		r.Route("/key", func(r chi.Router) {
			r.Post("/process", importHandler.ProcessByKey)
			r.Post("/suggest-fixes", importHandler.SuggestFixes)
		})
	})

	return r
}
