package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/datalytics/console/internal/batch"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Health returns a health check handler that verifies session store connectivity.
func Health(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		if err := db.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

// BatchInfo reports the batch tokens the guard and the forms use today.
func (c *Console) BatchInfo(w http.ResponseWriter, r *http.Request) {
	now := c.now()
	data := envelope{
		"guard":   batch.Current(now, c.opts.GuardCutover),
		"default": batch.Current(now, c.opts.DefaultCutover),
		"date":    now.Format(time.DateOnly),
	}
	if err := c.writeJSON(w, http.StatusOK, data, nil); err != nil {
		c.serverErrorResponse(w, r, err)
	}
}
