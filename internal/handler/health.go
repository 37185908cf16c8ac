package handler

import (
	"net/http"

	"wawtransit/internal/service"
)

// HealthHandler serves liveness and readiness probes. Liveness is
// unconditional; readiness requires the schedule cache to open and
// contain stops.
type HealthHandler struct {
	service *service.Service
}

func NewHealthHandler(svc *service.Service) *HealthHandler {
	return &HealthHandler{service: svc}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type readyResponse struct {
	Ready         bool   `json:"ready"`
	Stops         int    `json:"stops"`
	ScheduleStart string `json:"schedule_start,omitempty"`
	ScheduleEnd   string `json:"schedule_end,omitempty"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready, stops := h.service.Ready()
	resp := readyResponse{Ready: ready, Stops: stops}

	if ready {
		if start, end, ok, err := h.service.FeedValidity(); err == nil && ok {
			resp.ScheduleStart = start
			resp.ScheduleEnd = end
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
