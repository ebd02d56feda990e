package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/ovlasenko/webshop-backend/api/responses"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness plus the state of the database and redis.
func Health(dbP, redisP Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		checks["db"] = checkDependency(ctx, dbP)
		checks["redis"] = checkDependency(ctx, redisP)
		for _, state := range checks {
			if state != "ok" {
				healthy = false
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": statusLabel(healthy),
			"checks": checks,
		})
	}
}

func checkDependency(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "unreachable"
	}
	return "ok"
}

func statusLabel(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "degraded"
}
