package http

import (
	"bytes"
	"net/http"

	"routeiq/internal/logging"
	"routeiq/internal/web"
)

// LandingHandler serves the dashboard's root page.
type LandingHandler struct {
	TPL *web.Renderer
}

func (h *LandingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.TPL.Render(&buf, "landing", nil); err != nil {
		logging.From(r.Context()).Error("could not render", "page", "landing", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, buf.Bytes())
}

// StatusHandler renders the current simulation state server-side.
type StatusHandler struct {
	Sim Simulation
	TPL *web.Renderer
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := web.NewStatusData(h.Sim.Snapshot())
	var buf bytes.Buffer
	if err := h.TPL.Render(&buf, "status", data); err != nil {
		logging.From(r.Context()).Error("could not render", "page", "status", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, buf.Bytes())
}

func writeHTML(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}
