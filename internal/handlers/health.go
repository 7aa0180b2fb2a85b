package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// BuildInfo describes the running binary for health payloads.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// ReadyCheck probes a single downstream dependency.
type ReadyCheck func(ctx context.Context) error

// HealthHandlers serves the /healthz and /readyz endpoints.
type HealthHandlers struct {
	build  BuildInfo
	clock  func() time.Time
	checks map[string]ReadyCheck
}

// HealthOption customises HealthHandlers construction.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers constructs health endpoints with the supplied options.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock:  time.Now,
		checks: map[string]ReadyCheck{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// WithHealthBuildInfo attaches version metadata to health payloads.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock overrides the time source.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthReadyCheck registers a named readiness probe.
func WithHealthReadyCheck(name string, check ReadyCheck) HealthOption {
	return func(h *HealthHandlers) {
		if name != "" && check != nil {
			h.checks[name] = check
		}
	}
}

// Healthz reports liveness with build metadata; it never probes dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status": "ok",
	}
	if h.build.Version != "" {
		payload["version"] = h.build.Version
	}
	if h.build.CommitSHA != "" {
		payload["commitSha"] = h.build.CommitSHA
	}
	if h.build.Environment != "" {
		payload["environment"] = h.build.Environment
	}
	if !h.build.StartedAt.IsZero() {
		payload["uptime"] = h.clock().Sub(h.build.StartedAt).String()
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz runs every registered probe and reports 503 when any fails.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]map[string]string, len(names))
	details := make([]string, 0)
	for _, name := range names {
		entry := map[string]string{"status": "ok"}
		if err := h.checks[name](ctx); err != nil {
			status = http.StatusServiceUnavailable
			entry["status"] = "unavailable"
			details = append(details, name+": "+err.Error())
		}
		checks[name] = entry
	}

	payload := map[string]any{
		"status":  "ok",
		"checks":  checks,
		"details": details,
	}
	if status != http.StatusOK {
		payload["status"] = "unavailable"
	}
	writeJSONResponse(w, status, payload)
}
