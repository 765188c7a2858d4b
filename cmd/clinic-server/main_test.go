package main

import (
	"bytes"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinic/internal/config"
	"github.com/clinicrx/clinic/internal/domain/subscription"
	"github.com/clinicrx/clinic/internal/platform/auth"
	"github.com/clinicrx/clinic/internal/platform/db"
)

func TestResolveKey_FromConfig(t *testing.T) {
	key, random, err := resolveKey("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if random {
		t.Error("expected random=false when a key is configured")
	}
	if string(key) != "0123456789abcdef0123456789abcdef" {
		t.Errorf("unexpected key %q", key)
	}
}

func TestResolveKey_RandomGeneration(t *testing.T) {
	key, random, err := resolveKey("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !random || len(key) != 32 {
		t.Errorf("expected a random 32-byte key, got random=%t len=%d", random, len(key))
	}
	key2, _, err := resolveKey("")
	if err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if bytes.Equal(key, key2) {
		t.Error("two random keys should not be identical")
	}
}

func TestNewLogger_Level(t *testing.T) {
	if got := newLogger("production", "debug").GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("expected debug, got %s", got)
	}
	if got := newLogger("production", "loud").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info for an unknown level, got %s", got)
	}
	if got := newLogger("production", "").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info by default, got %s", got)
	}
}

func TestNewTrialTenant(t *testing.T) {
	now := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	tenant := newTrialTenant("Cabinet Atlas", 14, now)
	if tenant.SubscriptionStatus != subscription.StatusTrial {
		t.Errorf("expected trial, got %s", tenant.SubscriptionStatus)
	}
	if tenant.TrialEndsAt == nil || !tenant.TrialEndsAt.Equal(now.AddDate(0, 0, 14)) {
		t.Errorf("unexpected trial end %v", tenant.TrialEndsAt)
	}
}

func TestSubscriptionUpdate(t *testing.T) {
	now := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)

	u := subscriptionUpdate(subscription.StatusTrial, 7, now)
	if u.TrialEndsAt == nil || !u.TrialEndsAt.Equal(now.AddDate(0, 0, 7)) {
		t.Errorf("unexpected trial end %v", u.TrialEndsAt)
	}
	if u := subscriptionUpdate(subscription.StatusActive, 7, now); u.TrialEndsAt != nil {
		t.Errorf("expected no trial end for active, got %v", u.TrialEndsAt)
	}
	if u := subscriptionUpdate(subscription.StatusTrial, 0, now); u.TrialEndsAt != nil {
		t.Errorf("expected no trial end without days, got %v", u.TrialEndsAt)
	}
}

func serveWithAuth(mw echo.MiddlewareFunc, path string, header http.Header) int {
	e := echo.New()
	e.Use(mw)
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/v1/me", func(c echo.Context) error {
		if auth.UserIDFromContext(c.Request().Context()) == "" {
			return c.NoContent(http.StatusTeapot)
		}
		return c.NoContent(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestAuthMiddleware_Modes(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	dev := &config.Config{Env: "development", AuthIssuer: "clinic-server"}
	standalone := &config.Config{Env: "production", AuthIssuer: "clinic-server", JWTSigningKey: string(key)}

	devHeader := http.Header{auth.DevPrincipalHeader: []string{"6f1c2d3e-0000-4000-8000-000000000001"}}

	if code := serveWithAuth(authMiddleware(dev, key, nil), "/api/v1/me", devHeader); code != http.StatusOK {
		t.Errorf("development: expected 200 with a dev principal, got %d", code)
	}
	if code := serveWithAuth(authMiddleware(standalone, key, nil), "/api/v1/me", devHeader); code != http.StatusUnauthorized {
		t.Errorf("standalone: expected 401 for a dev principal, got %d", code)
	}
	if code := serveWithAuth(authMiddleware(standalone, key, nil), "/health", nil); code != http.StatusOK {
		t.Errorf("standalone: expected public health check, got %d", code)
	}
}

func TestMigrationSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_local.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := fs.Stat(migrationSource(dir, ""), "001_local.sql"); err != nil {
		t.Errorf("flag dir not used: %v", err)
	}
	if _, err := fs.Stat(migrationSource("", dir), "001_local.sql"); err != nil {
		t.Errorf("config dir not used: %v", err)
	}
	if _, err := fs.Stat(migrationSource("", ""), "001_core.sql"); err != nil {
		t.Errorf("embedded migrations not used: %v", err)
	}
}

func TestStatusLabel(t *testing.T) {
	at := time.Now()
	cases := map[string]db.MigrationStatus{
		"pending":  {},
		"applied":  {Applied: true, AppliedAt: &at},
		"modified": {Applied: true, AppliedAt: &at, Modified: true},
	}
	for want, s := range cases {
		if got := statusLabel(s); got != want {
			t.Errorf("statusLabel(%+v) = %s, want %s", s, got, want)
		}
	}
}
