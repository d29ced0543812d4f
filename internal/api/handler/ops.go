package handler

import (
	"net/http"

	"github.com/climaroute/navigator/internal/api/models"
	"github.com/climaroute/navigator/internal/api/response"
)

// BreakerStateFunc reports the circuit breaker state of an upstream client.
type BreakerStateFunc func() string

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	breakers  map[string]BreakerStateFunc
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, breakers map[string]BreakerStateFunc) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		breakers:  breakers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check with upstream
// breaker states for quick diagnosis.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status:    "ok",
		Version:   h.version,
		BuildTime: h.buildTime,
	}
	if len(h.breakers) > 0 {
		health.Breakers = make(map[string]string, len(h.breakers))
		for name, state := range h.breakers {
			health.Breakers[name] = state()
		}
	}
	response.JSON(w, r, http.StatusOK, health)
}
