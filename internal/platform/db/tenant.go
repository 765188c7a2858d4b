package db

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

// tenantSetting is the session variable read by the row-level security
// policies in migrations/002_row_security.sql.
const tenantSetting = "app.tenant_id"

// TenantMiddleware pins a pooled connection to the request and scopes it to
// the tenant resolved upstream (echo key "tenant_id"). Requests from a
// principal without a tenant pass through without a connection; the domain
// services refuse clinic-scoped work for them.
func TenantMiddleware(pool *pgxpool.Pool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, _ := c.Get("tenant_id").(string)
			if tenantID == "" {
				return next(c)
			}

			err := WithTenantConn(c.Request().Context(), pool, tenantID, func(ctx context.Context) error {
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			})
			var se *scopeError
			if errors.As(err, &se) {
				return echo.NewHTTPError(se.status, se.msg)
			}
			return err
		}
	}
}

// scopeError is a failure to produce the scoped connection, as opposed to
// an error returned by the work run on it.
type scopeError struct {
	status int
	msg    string
	err    error
}

func (e *scopeError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *scopeError) Unwrap() error { return e.err }

// WithTenantConn runs fn with a pooled connection on which app.tenant_id is
// set. The setting is cleared before the connection returns to the pool.
func WithTenantConn(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(ctx context.Context) error) error {
	if _, err := uuid.Parse(tenantID); err != nil {
		return &scopeError{http.StatusBadRequest, "invalid tenant identifier", err}
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return &scopeError{http.StatusServiceUnavailable, "database unavailable", err}
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "SELECT set_config($1, '', false)", tenantSetting)
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "SELECT set_config($1, $2, false)", tenantSetting, tenantID); err != nil {
		return &scopeError{http.StatusInternalServerError, "tenant resolution failed", err}
	}

	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return fn(ctx)
}

// ConnFromContext returns the tenant-scoped connection, or nil outside one.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}
