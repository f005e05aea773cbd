package controllers

import (
	"context"
	"net/http"

	"github.com/codeservir/chatserve-backend/api/responses"
	"github.com/codeservir/chatserve-backend/pkg/config"
	pkgerrors "github.com/codeservir/chatserve-backend/pkg/errors"
	"github.com/codeservir/chatserve-backend/pkg/logger"
)

// ReadinessProbe checks one backing dependency.
type ReadinessProbe func(ctx context.Context) error

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ChatServe-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every probe passes.
func HealthReady(cfg *config.Config, logg *logger.Logger, probes map[string]ReadinessProbe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ChatServe-Env", cfg.App.Env)
		for name, probe := range probes {
			if probe == nil {
				continue
			}
			if err := probe(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
