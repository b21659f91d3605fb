package ui

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the dashboard router.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.Home)
	r.Post("/ask", h.AskSubmit)
	r.Get("/turns/{turnID}", h.TurnDetail)
	r.Get("/schema", h.SchemaPage)

	return r
}

func pathTurnID(r *http.Request) string {
	return chi.URLParam(r, "turnID")
}
