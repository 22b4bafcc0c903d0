package health

import (
	"context"
	"net/http"
	"time"

	"github.com/neverbe/pos-api/internal/common"
)

// Checker probes the dependencies readiness reports on.
type Checker interface {
	PingRedis(ctx context.Context) error
	PingUpstream(ctx context.Context) error
}

// Handler serves liveness and readiness probes.
type Handler struct {
	Checker Checker
	Timeout time.Duration
}

// Live reports process liveness.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether Redis and the merchant backend are reachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	checks := map[string]string{"redis": "ok", "upstream": "ok"}
	status := http.StatusOK
	if err := h.Checker.PingRedis(ctx); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.Checker.PingUpstream(ctx); err != nil {
		checks["upstream"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, map[string]any{"status": statusWord(status), "checks": checks})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
