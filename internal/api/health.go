package api

import (
	"context"
	"net/http"
	"time"
)

// healthResponse reports process and database liveness.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HandleHealth handles GET /healthz. The database check uses a short
// deadline so a wedged store cannot hang the probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if err := h.repo.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, resp)
}
