package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/danchettos12/EntrevistIA/internal/auth"
	"github.com/danchettos12/EntrevistIA/internal/coach"
	"github.com/danchettos12/EntrevistIA/internal/config"
	"github.com/danchettos12/EntrevistIA/internal/flow"
	"github.com/danchettos12/EntrevistIA/internal/handlers"
	"github.com/danchettos12/EntrevistIA/internal/llm"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/danchettos12/EntrevistIA/internal/prompts"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Provider:        "gemini",
		AllowedOrigins:  []string{"http://localhost:5173"},
		LocalStorePath:  filepath.Join(t.TempDir(), "entrevistia.db"),
		JWTSecret:       "test-secret",
		ConfirmationTTL: time.Hour,
		CleanupSchedule: "0 * * * *",
		ClientTTL:       time.Hour,
	}
}

func unsetAIKey(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
}

func TestNewAIProviderToleratesMissingKey(t *testing.T) {
	unsetAIKey(t)

	provider, err := newAIProvider("gemini", zap.NewNop())
	if err != nil {
		t.Fatalf("missing key must not be fatal, got %v", err)
	}
	if _, ok := provider.(*llm.Unconfigured); !ok {
		t.Fatalf("expected unconfigured provider, got %T", provider)
	}
}

func TestLocalBackendServesRoutes(t *testing.T) {
	cfg := testConfig(t)
	be, err := newLocalBackend(cfg, identity{notifier: auth.NewLocalNotifier()}, zap.NewNop())
	if err != nil {
		t.Fatalf("newLocalBackend: %v", err)
	}
	t.Cleanup(func() { _ = be.close() })

	if be.cleanup != nil {
		t.Fatalf("local mode should not schedule registration cleanup")
	}
	if be.gateway.Mode() != config.ModeLocal || be.sessions.Backend() != "local" {
		t.Fatalf("unexpected backend: %s / %s", be.gateway.Mode(), be.sessions.Backend())
	}
	if err := be.sessions.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	pm, err := prompts.NewPromptManager()
	if err != nil {
		t.Fatalf("prompt manager: %v", err)
	}
	aiGateway := coach.NewGateway(&llm.Unconfigured{Name: "gemini"}, pm, zap.NewNop())

	registry := flow.NewRegistry(flow.Deps{Auth: be.gateway, Store: be.sessions, AI: aiGateway, Logger: zap.NewNop(), Tick: time.Hour}, time.Hour)
	t.Cleanup(registry.Close)

	router := chi.NewRouter()
	registerRoutes(router,
		handlers.NewAppHandler(registry, cfg.AllowedOrigins, zap.NewNop()),
		handlers.NewAuthHandler(be.gateway, zap.NewNop()),
		handlers.NewHealthHandler(aiGateway, pm, be.sessions, be.gateway, config.ModeLocal))

	// an unconfigured provider only degrades readiness
	for path, want := range map[string]int{
		"/healthz":              http.StatusOK,
		"/readyz":               http.StatusOK,
		"/api/v1/auth/confirm":  http.StatusBadRequest,
		"/api/v1/app/unknown":   http.StatusNotFound,
		"/api/v1/app/unknown/x": http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("GET %s: expected %d, got %d", path, want, rec.Code)
		}
	}
}

func call(t *testing.T, srv *httptest.Server, method, path string, body, out any) int {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestNewAppStartsWithoutAIKey(t *testing.T) {
	unsetAIKey(t)

	application, err := newApp(testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("newApp must start without an AI key, got %v", err)
	}
	t.Cleanup(application.Close)

	srv := httptest.NewServer(application.router)
	defer srv.Close()

	var ready handlers.ReadinessResponse
	if code := call(t, srv, http.MethodGet, "/readyz", nil, &ready); code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d (%+v)", code, ready)
	}
	if ready.Checks["provider"].Status != "degraded" {
		t.Fatalf("expected degraded provider, got %+v", ready.Checks["provider"])
	}

	var snap flow.Snapshot
	if code := call(t, srv, http.MethodPost, "/api/v1/app", nil, &snap); code != http.StatusCreated {
		t.Fatalf("create client: %d", code)
	}
	client := "/api/v1/app/" + snap.ClientID
	call(t, srv, http.MethodPost, client+"/auth/open", map[string]string{"mode": "register"}, &snap)
	var reg handlers.RegisterResponse
	if code := call(t, srv, http.MethodPost, client+"/auth/register",
		map[string]string{"name": "Ana", "email": "ana@example.com", "password": "hunter22"}, &reg); code != http.StatusCreated {
		t.Fatalf("register: %d %+v", code, reg)
	}

	cfg := models.SessionConfig{Role: "Product Manager", QuestionCount: 1, TimeLimit: 60, Pressure: 50, Focus: 50}
	if code := call(t, srv, http.MethodPost, client+"/interview", cfg, &snap); code != http.StatusCreated {
		t.Fatalf("start interview: %d", code)
	}
	if snap.Interview == nil || snap.Interview.Question != coach.FallbackQuestion {
		t.Fatalf("expected the fallback question, got %+v", snap.Interview)
	}

	call(t, srv, http.MethodPut, client+"/interview/response", map[string]string{"text": "Lideré el lanzamiento"}, &snap)
	var errResp models.ErrorResponse
	if code := call(t, srv, http.MethodPost, client+"/interview/submit", nil, &errResp); code != http.StatusServiceUnavailable || errResp.Code != "ai_not_configured" {
		t.Fatalf("submit: expected 503 ai_not_configured, got %d %+v", code, errResp)
	}
}

func TestNewAppSharesLogoutsThroughRedis(t *testing.T) {
	unsetAIKey(t)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := testConfig(t)
	cfg.RedisAddr = mr.Addr()
	application, err := newApp(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(application.Close)

	ctx := context.Background()
	gateway := application.backend.gateway
	if res := gateway.Register(ctx, "Ana", "ana@example.com", "hunter22"); res.Status != auth.StatusSuccess {
		t.Fatalf("register: %+v", res)
	}
	session, err := gateway.Login(ctx, "ana@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := gateway.Logout(ctx, session.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// a second instance with the same secret and redis rejects the token too
	other := identity{notifier: auth.NewLocalNotifier(), revocations: auth.NewRedisRevocations(application.rdb)}
	if _, err := other.tokens(cfg.JWTSecret).Verify(ctx, session.Token); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("expected revoked token on the second instance, got %v", err)
	}
}
