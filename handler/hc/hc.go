package hc

import (
	"context"
	"net/http"
	"time"

	"github.com/pandodao/beanpay/handler/render"
)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

func Handler(version string, checks map[string]Check) http.Handler {
	t := time.Now()
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}

			results[name] = "ok"
		}

		render.JSON(w, status, map[string]any{
			"version": version,
			"uptime":  time.Since(t).String(),
			"checks":  results,
		})
	}

	return http.HandlerFunc(fn)
}
