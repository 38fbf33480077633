package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/vanshika/debtbook/internal/graph"
)

const healthProbeTimeout = 2 * time.Second

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// GraphHealthService verifies graph connectivity as part of health checks.
type GraphHealthService struct {
	Client graph.Client
}

// Probe implements the HealthService interface.
func (s GraphHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.VerifyConnectivity(ctx)
}

// Checks probes every named dependency and reports all failures.
type Checks map[string]HealthService

// Probe implements the HealthService interface.
func (c Checks) Probe(ctx context.Context) error {
	var errs []error
	for _, name := range c.names() {
		if err := c[name].Probe(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// results probes each dependency and returns "ok" or the failure text per name.
func (c Checks) results(ctx context.Context) (map[string]string, bool) {
	out := make(map[string]string, len(c))
	healthy := true
	for _, name := range c.names() {
		if err := c[name].Probe(ctx); err != nil {
			out[name] = err.Error()
			healthy = false
			continue
		}
		out[name] = "ok"
	}
	return out, healthy
}

func (c Checks) names() []string {
	names := make([]string, 0, len(c))
	for name, check := range c {
		if check != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// healthHandler serves /healthz: 200 when every probe passes, 503 with the failures otherwise.
func healthHandler(logger *slog.Logger, hs HealthService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		switch svc := hs.(type) {
		case nil:
		case Checks:
			var healthy bool
			resp.Checks, healthy = svc.results(ctx)
			if !healthy {
				resp.Status = "degraded"
			}
		default:
			if err := svc.Probe(ctx); err != nil {
				resp.Status = "degraded"
				resp.Error = err.Error()
			}
		}

		if resp.Status != "ok" {
			logger.Warn("health probe failed", "checks", resp.Checks, "error", resp.Error)
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		respondJSON(w, http.StatusOK, resp)
	})
}
