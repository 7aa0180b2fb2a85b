package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestRouterHealthEndpoints(t *testing.T) {
	start := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	now := start.Add(45 * time.Second)
	health := NewHealthHandlers(
		WithHealthBuildInfo(BuildInfo{Version: "1.2.0", Environment: "test", StartedAt: start}),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(WithHealthHandlers(health))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "1.2.0" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["uptime"] != "45s" {
		t.Fatalf("uptime = %v, want 45s", body["uptime"])
	}
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["error"] != "route_not_found" {
		t.Fatalf("error code = %v", body["error"])
	}
}

func TestRouterUnconfiguredGroupAnswers501(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rr.Code)
	}
}

func TestRouterMountsRegistrars(t *testing.T) {
	router := NewRouter(WithOrderRoutes(func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			writeJSONResponse(w, http.StatusOK, map[string]string{"ok": "true"})
		})
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestReadyzReportsFailedChecks(t *testing.T) {
	health := NewHealthHandlers(
		WithHealthReadyCheck("postgres", func(ctx context.Context) error { return nil }),
		WithHealthReadyCheck("pubsub", func(ctx context.Context) error { return errors.New("publish failed") }),
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	health.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	var body struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status string `json:"status"`
		} `json:"checks"`
		Details []string `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.Status != "unavailable" {
		t.Fatalf("status = %s, want unavailable", body.Status)
	}
	if body.Checks["postgres"].Status != "ok" || body.Checks["pubsub"].Status != "unavailable" {
		t.Fatalf("unexpected checks %v", body.Checks)
	}
	if len(body.Details) != 1 {
		t.Fatalf("details = %v, want one entry", body.Details)
	}
}
