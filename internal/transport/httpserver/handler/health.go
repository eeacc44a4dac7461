package handler

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.health(ctx); err != nil {
		h.log.InternalError("health: store unreachable", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Store: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "ok"})
}
