package db

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

// Check is one readiness check. The database itself is the first check.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type PoolStats struct {
	Total    int32  `json:"total"`
	Idle     int32  `json:"idle"`
	Acquired int32  `json:"acquired"`
	Max      int32  `json:"max"`
	Waited   int64  `json:"waited"`
	WaitTime string `json:"wait_time"`
}

type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Pool   *PoolStats        `json:"pool,omitempty"`
}

func poolStats(pool *pgxpool.Pool) *PoolStats {
	s := pool.Stat()
	return &PoolStats{
		Total:    s.TotalConns(),
		Idle:     s.IdleConns(),
		Acquired: s.AcquiredConns(),
		Max:      s.MaxConns(),
		Waited:   s.EmptyAcquireCount(),
		WaitTime: s.AcquireDuration().String(),
	}
}

// HealthHandler checks the database and every extra check concurrently.
// A failing database is "unhealthy", any other failure "degraded"; both
// answer 503.
func HealthHandler(pool *pgxpool.Pool, extra ...Check) echo.HandlerFunc {
	checks := append([]Check{{Name: "database", Ping: pool.Ping}}, extra...)
	return func(c echo.Context) error {
		h := runChecks(c.Request().Context(), checks)
		h.Pool = poolStats(pool)
		if h.Status != "healthy" {
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}

func runChecks(ctx context.Context, checks []Check) *Health {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	results := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, chk := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = chk.Ping(ctx)
		}()
	}
	wg.Wait()

	h := &Health{Status: "healthy", Checks: make(map[string]string, len(checks))}
	for i, chk := range checks {
		if results[i] == nil {
			h.Checks[chk.Name] = "ok"
			continue
		}
		h.Checks[chk.Name] = results[i].Error()
		switch {
		case i == 0:
			h.Status = "unhealthy"
		case h.Status == "healthy":
			h.Status = "degraded"
		}
	}
	return h
}
