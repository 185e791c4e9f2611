package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthCheck probes one dependency.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function into a named HealthCheck.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.CheckName }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// HealthStatus is the probe response payload.
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy" or "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one dependency's probe outcome.
type CheckResult struct {
	Status  string `json:"status"` // "pass" or "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	logger *zap.Logger
	mu     sync.RWMutex
	checks []HealthCheck
}

// NewHealthHandler creates the handler.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{logger: logger}
}

// RegisterCheck adds a dependency probe to the readiness endpoint.
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// HandleHealth is the liveness probe: the process is up.
// GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// HandleReady is the readiness probe: every registered dependency must
// answer within the deadline.
// GET /ready
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	healthy := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		result := CheckResult{
			Status:  "pass",
			Latency: time.Since(start).String(),
		}
		if err != nil {
			healthy = false
			result.Status = "fail"
			result.Message = err.Error()
			h.logger.Warn("readiness check failed",
				zap.String("check", check.Name()),
				zap.Error(err))
		}
		status.Checks[check.Name()] = result
	}

	code := http.StatusOK
	if !healthy {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}
