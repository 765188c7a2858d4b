package auditlog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions and entity types accepted by the audit_logs table.
var (
	Actions     = []string{"create", "update", "delete", "login", "logout", "export", "print"}
	EntityTypes = []string{"patient", "prescription", "template", "user", "settings"}
)

func ValidAction(a string) bool     { return contains(Actions, a) }
func ValidEntityType(e string) bool { return contains(EntityTypes, e) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Entry is a stored audit log row. A nil UserID marks a system action.
type Entry struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	UserID          *uuid.UUID      `json:"user_id,omitempty"`
	UserName        *string         `json:"user_name,omitempty"`
	Action          string          `json:"action"`
	ActionLabel     string          `json:"action_label,omitempty"`
	EntityType      string          `json:"entity_type"`
	EntityTypeLabel string          `json:"entity_type_label,omitempty"`
	EntityID        *uuid.UUID      `json:"entity_id,omitempty"`
	EntityName      *string         `json:"entity_name,omitempty"`
	OldData         json.RawMessage `json:"old_data,omitempty"`
	NewData         json.RawMessage `json:"new_data,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Record is an entry waiting to be written. The user name is looked up by
// the store at write time.
type Record struct {
	TenantID   uuid.UUID
	UserID     *uuid.UUID
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	EntityName *string
	OldData    json.RawMessage
	NewData    json.RawMessage
}

// Filter narrows a listing. Q matches user_name or entity_name.
type Filter struct {
	Action     string
	EntityType string
	Q          string
}
