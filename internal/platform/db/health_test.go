package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func up(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func TestRunChecks(t *testing.T) {
	cases := []struct {
		name   string
		checks []Check
		status string
	}{
		{"all up", []Check{{"database", up}, {"cache", up}}, "healthy"},
		{"cache down", []Check{{"database", up}, {"cache", failing("connection refused")}}, "degraded"},
		{"database down", []Check{{"database", failing("no route")}, {"cache", failing("connection refused")}}, "unhealthy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := runChecks(context.Background(), tc.checks)
			if h.Status != tc.status {
				t.Errorf("status = %s, want %s", h.Status, tc.status)
			}
			if len(h.Checks) != len(tc.checks) {
				t.Errorf("checks = %v", h.Checks)
			}
		})
	}
}

func TestRunChecks_ReportsErrors(t *testing.T) {
	h := runChecks(context.Background(), []Check{{"database", up}, {"cache", failing("connection refused")}})
	if h.Checks["database"] != "ok" || h.Checks["cache"] != "connection refused" {
		t.Errorf("checks = %v", h.Checks)
	}
}

func TestRunChecks_RunsConcurrentlyUnderDeadline(t *testing.T) {
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(time.Minute):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	h := runChecks(ctx, []Check{{"database", slow}, {"cache", slow}})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("checks took %s", elapsed)
	}
	if h.Status != "unhealthy" {
		t.Errorf("status = %s", h.Status)
	}
}
