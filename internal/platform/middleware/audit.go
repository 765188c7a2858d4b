package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Echo keys a handler may set to enrich the audit event of its route.
const (
	AuditEntityIDKey   = "audit_entity_id"
	AuditEntityNameKey = "audit_entity_name"
	AuditDataKey       = "audit_data"
)

// AuditEvent is one significant action. OldData and NewData are opaque
// snapshots. TenantID and UserID are only set when the request carries no
// resolved identity yet, as during sign-in.
type AuditEvent struct {
	Action     string
	EntityType string
	EntityID   string
	EntityName string
	OldData    interface{}
	NewData    interface{}
	TenantID   string
	UserID     string
}

// AuditRecorder receives route audit events. Implementations must not block.
type AuditRecorder interface {
	RecordEvent(ctx context.Context, ev AuditEvent)
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, ev AuditEvent)

func (f AuditRecorderFunc) RecordEvent(ctx context.Context, ev AuditEvent) {
	f(ctx, ev)
}

// Audit records action on entityType after the route succeeds. The entity id
// defaults to the :id path parameter.
func Audit(logger zerolog.Logger, recorder AuditRecorder, action, entityType string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil || c.Response().Status >= http.StatusBadRequest {
				return err
			}

			ev := AuditEvent{
				Action:     action,
				EntityType: entityType,
				EntityID:   c.Param("id"),
			}
			if id, ok := c.Get(AuditEntityIDKey).(string); ok && id != "" {
				ev.EntityID = id
			}
			if name, ok := c.Get(AuditEntityNameKey).(string); ok {
				ev.EntityName = name
			}
			ev.NewData = c.Get(AuditDataKey)

			rid, _ := c.Get("request_id").(string)
			logger.Debug().
				Str("request_id", rid).
				Str("action", ev.Action).
				Str("entity_type", ev.EntityType).
				Str("entity_id", ev.EntityID).
				Msg("audit event")

			if recorder != nil {
				recorder.RecordEvent(c.Request().Context(), ev)
			}
			return nil
		}
	}
}
