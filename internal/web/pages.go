package web

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/facility-etl/internal/web/templates"
)

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render failed", "path", r.URL.Path, "error", err)
	}
}

func serviceCards(services []ServiceInfo) []templates.ServiceCard {
	cards := make([]templates.ServiceCard, len(services))
	for i, s := range services {
		cards[i] = templates.ServiceCard{
			Service:   string(s.Service),
			Label:     s.Label,
			Countries: s.Countries,
			LastRun:   s.LastRun,
		}
	}
	return cards
}
