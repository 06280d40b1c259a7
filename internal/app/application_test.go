package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/covenant-network/option-layer/internal/app/config"
	"github.com/covenant-network/option-layer/pkg/logger"
)

func testConfig() config.Config {
	return config.Config{
		ListenAddr:      ":0",
		StoreBackend:    config.BackendMemory,
		GenesisHeight:   100,
		BlockInterval:   time.Second,
		SweepSchedule:   "@every 1m",
		RateLimitPerSec: 100,
		RateLimitBurst:  100,
	}
}

func TestApplication_StartAndShutdown(t *testing.T) {
	ctx := context.Background()
	log := logger.NewDefault("test")

	a, err := New(ctx, testConfig(), log)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}

	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestApplication_AuthWiring(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.AuthSecret = "test-secret"
	cfg.AdminUser = "alice"
	cfg.AdminPassword = "hunter2"

	a, err := New(ctx, cfg, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Shutdown(ctx)

	// unauthenticated access is rejected once auth is configured
	req := httptest.NewRequest(http.MethodGet, "/options", nil)
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	body := `{"username":"alice","password":"hunter2"}`
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/options", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestApplication_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.StoreBackend = "tape"

	if _, err := New(context.Background(), cfg, logger.NewDefault("test")); err == nil {
		t.Fatal("expected an error for an unknown store backend")
	}
}
