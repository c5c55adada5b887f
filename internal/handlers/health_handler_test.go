package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubAI struct{ configured bool }

func (s stubAI) ProviderName() string { return "gemini" }
func (s stubAI) Configured() bool     { return s.configured }

type stubTemplates map[string][]string

func (s stubTemplates) GetTemplates() map[string][]string { return s }

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func readyz(t *testing.T, h *HealthHandler) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadyzHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var resp ReadinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, resp
}

func TestHealthzHandler(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil, nil, "local")
	rec := httptest.NewRecorder()
	h.HealthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyzAllChecksPass(t *testing.T) {
	templates := stubTemplates{"question": {"calm", "intense", "standard"}}
	h := NewHealthHandler(stubAI{configured: true}, templates, stubPinger{}, stubPinger{}, "local")

	code, resp := readyz(t, h)
	if code != http.StatusOK || resp.Status != "ready" {
		t.Fatalf("expected ready, got %d %+v", code, resp)
	}
	if resp.Mode != "local" || resp.Checks["store"].Status != "ok" {
		t.Fatalf("unexpected checks: %+v", resp)
	}
}

func TestReadyzUnconfiguredProviderIsDegradedOnly(t *testing.T) {
	templates := stubTemplates{"question": {"standard"}}
	h := NewHealthHandler(stubAI{configured: false}, templates, stubPinger{}, stubPinger{}, "remote")

	code, resp := readyz(t, h)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Checks["provider"].Status != "degraded" {
		t.Fatalf("expected degraded provider, got %+v", resp.Checks["provider"])
	}
}

func TestReadyzFailures(t *testing.T) {
	h := NewHealthHandler(stubAI{configured: true}, stubTemplates{}, stubPinger{err: errors.New("db down")}, stubPinger{}, "remote")

	code, resp := readyz(t, h)
	if code != http.StatusServiceUnavailable || resp.Status != "not_ready" {
		t.Fatalf("expected not_ready, got %d %+v", code, resp)
	}
	if resp.Checks["prompt_manager"].Status != "failed" || resp.Checks["store"].Message != "db down" {
		t.Fatalf("unexpected checks: %+v", resp.Checks)
	}
}
