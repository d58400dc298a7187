package health

import (
	"context"
	"net/http"
	"time"

	"github.com/sdv1812/sprintlet/internal/infrastructure/json"
	"github.com/sdv1812/sprintlet/internal/infrastructure/store"
)

type Handler struct {
	store   store.Store
	started time.Time
}

func NewHandler(s store.Store) *Handler {
	return &Handler{
		store:   s,
		started: time.Now(),
	}
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	data := healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	json.Write(w, code, data)
}
