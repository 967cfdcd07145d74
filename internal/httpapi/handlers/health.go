package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/httpkit"
)

// Health reports liveness; with ?deep=true it also probes each registered
// dependency and returns 503 when any probe fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") != "true" || len(h.checks) == 0 {
		httpkit.WriteJSON(w, 200, map[string]any{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			healthy = false
			continue
		}
		deps[name] = "ok"
	}

	status := "ok"
	code := 200
	if !healthy {
		status = "degraded"
		code = 503
	}
	httpkit.WriteJSON(w, code, map[string]any{"status": status, "dependencies": deps})
}
