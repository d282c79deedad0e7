package http

import (
	"context"
	"errors"
	"net/http"

	"routeiq/internal/logging"
	"routeiq/internal/routing"
)

type RouteFinder interface {
	Optimal(ctx context.Context, req routing.Request) (routing.Result, error)
}

type RouteHandler struct {
	Routes RouteFinder
}

func (h *RouteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req routing.Request
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.Routes.Optimal(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, routing.ErrOutOfBounds):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, routing.ErrNoPath):
		writeError(w, http.StatusNotFound, "no route")
	default:
		logging.From(r.Context()).Error("routes.optimal", "err", err)
		writeError(w, http.StatusInternalServerError, "route lookup failed")
	}
}
