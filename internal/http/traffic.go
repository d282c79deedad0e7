package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"routeiq/internal/grid"
	"routeiq/internal/http/middleware"
	"routeiq/internal/logging"
	"routeiq/internal/metrics"
	"routeiq/internal/sim"
	"routeiq/internal/store"
)

// Simulation is the part of the engine the API drives.
type Simulation interface {
	Spawn(n int) ([]string, error)
	Despawn(ids ...string) int
	SetIncident(ctx context.Context, pt grid.Point, cleared bool) (bool, error)
	Snapshot() sim.Snapshot
}

const maxSpawn = 1000

type TrafficHandler struct {
	Sim     Simulation
	Store   store.EventStore
	Metrics *metrics.Metrics
	Limiter *middleware.RateLimiter
}

func (h *TrafficHandler) Routes(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/traffic/vehicle", h.Limiter.Limit(http.HandlerFunc(h.Vehicle)))
	mux.Handle("POST /api/v1/traffic/incident", h.Limiter.Limit(http.HandlerFunc(h.Incident)))
	mux.HandleFunc("GET /api/v1/traffic/incidents", h.Incidents)
	mux.HandleFunc("GET /api/v1/traffic/events/{id}", h.Event)
	mux.HandleFunc("GET /api/v1/traffic/state", h.State)
}

type vehicleReq struct {
	Action string   `json:"action"` // "spawn" (default) | "despawn"
	Count  int      `json:"count"`
	IDs    []string `json:"ids"`
}

type vehicleResp struct {
	Message string   `json:"message"`
	EventID string   `json:"event_id"`
	IDs     []string `json:"ids,omitempty"`
	Removed int      `json:"removed"`
}

func (h *TrafficHandler) Vehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleReq
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := vehicleResp{Message: "vehicle event accepted"}
	switch req.Action {
	case "", "spawn":
		req.Action = "spawn"
		if req.Count == 0 {
			req.Count = 1
		}
		if req.Count < 0 || req.Count > maxSpawn {
			writeError(w, http.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(maxSpawn))
			return
		}
		ids, err := h.Sim.Spawn(req.Count)
		if errors.Is(err, sim.ErrVehicleCapacity) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			logging.From(r.Context()).Error("sim.spawn", "err", err)
			writeError(w, http.StatusInternalServerError, "could not spawn vehicles")
			return
		}
		resp.IDs = ids
	case "despawn":
		if len(req.IDs) == 0 {
			writeError(w, http.StatusBadRequest, "ids required for despawn")
			return
		}
		resp.Removed = h.Sim.Despawn(req.IDs...)
	default:
		writeError(w, http.StatusBadRequest, "action must be spawn or despawn")
		return
	}

	payload, _ := json.Marshal(req)
	ev, err := h.Store.Append(r.Context(), store.Event{Kind: store.KindVehicle, Payload: payload})
	if err != nil {
		logging.From(r.Context()).Error("store.append", "kind", store.KindVehicle, "err", err)
		writeError(w, http.StatusInternalServerError, "could not record event")
		return
	}
	h.Metrics.Event(string(store.KindVehicle))
	resp.EventID = ev.ID
	writeJSON(w, http.StatusAccepted, resp)
}

type incidentReq struct {
	X           *int   `json:"x"`
	Y           *int   `json:"y"`
	Cleared     bool   `json:"cleared"`
	Description string `json:"description"`
}

type incidentResp struct {
	Message string `json:"message"`
	EventID string `json:"event_id"`
	Changed bool   `json:"changed"`
}

func (h *TrafficHandler) Incident(w http.ResponseWriter, r *http.Request) {
	var req incidentReq
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, http.StatusBadRequest, "x and y are required")
		return
	}
	pt := grid.Point{X: *req.X, Y: *req.Y}
	changed, err := h.Sim.SetIncident(r.Context(), pt, req.Cleared)
	if err != nil {
		if errors.Is(err, sim.ErrOutOfBounds) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.From(r.Context()).Error("sim.incident", "err", err)
		writeError(w, http.StatusInternalServerError, "could not apply incident")
		return
	}

	payload, _ := json.Marshal(store.IncidentPayload{Cleared: req.Cleared, Description: req.Description})
	ev, err := h.Store.Append(r.Context(), store.Event{Kind: store.KindIncident, X: pt.X, Y: pt.Y, Payload: payload})
	if err != nil {
		logging.From(r.Context()).Error("store.append", "kind", store.KindIncident, "err", err)
		writeError(w, http.StatusInternalServerError, "could not record event")
		return
	}
	h.Metrics.Event(string(store.KindIncident))
	writeJSON(w, http.StatusAccepted, incidentResp{Message: "incident accepted", EventID: ev.ID, Changed: changed})
}

func (h *TrafficHandler) Incidents(w http.ResponseWriter, r *http.Request) {
	limit := atoiDefault(r.URL.Query().Get("limit"), store.DefaultLimit)
	evs, err := h.Store.List(r.Context(), store.KindIncident, limit)
	if err != nil {
		logging.From(r.Context()).Error("store.list", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list incidents")
		return
	}
	if evs == nil {
		evs = []store.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": evs})
}

func (h *TrafficHandler) Event(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		logging.From(r.Context()).Error("store.get", "err", err)
		writeError(w, http.StatusInternalServerError, "could not load event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *TrafficHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sim.Snapshot())
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
