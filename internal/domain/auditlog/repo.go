package auditlog

import (
	"context"

	"github.com/google/uuid"
)

// Repository writes audit entries through the log_audit_event routine and
// reads them back per tenant, newest first.
type Repository interface {
	Record(ctx context.Context, rec Record) (uuid.UUID, error)
	List(ctx context.Context, tenantID uuid.UUID, f Filter, limit, offset int) ([]*Entry, int, error)
}
