package subscription

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Subscription statuses.
const (
	StatusTrial     = "trial"
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusSuspended = "suspended"
)

// Message codes, translated under the "subscription." text keys.
const (
	MessageTrialDaysRemaining = "trial_days_remaining"
	MessageTrialExpired       = "trial_expired"
	MessageExpired            = "subscription_expired"
	MessageSuspended          = "subscription_suspended"
)

// WarningDays is the horizon below which a running trial shows a warning.
const WarningDays = 7

func ValidStatus(s string) bool {
	switch s {
	case StatusTrial, StatusActive, StatusExpired, StatusSuspended:
		return true
	}
	return false
}

// State is the raw subscription data of a tenant.
type State struct {
	TenantID    uuid.UUID  `json:"tenant_id"`
	Status      string     `json:"subscription_status"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
}

// Gate is the decision derived from a State at a point in time.
type Gate struct {
	Status                string     `json:"status"`
	TrialEndsAt           *time.Time `json:"trial_ends_at,omitempty"`
	IsActive              bool       `json:"is_active"`
	CanCreatePrescription bool       `json:"can_create_prescription"`
	DaysRemaining         *int       `json:"days_remaining"`
	CanUpgrade            bool       `json:"can_upgrade"`
	MessageCode           string     `json:"message_code,omitempty"`
	Message               string     `json:"message,omitempty"`
}

// Evaluate derives the gate for status and trialEndsAt at now. It is a pure
// function; Message is left for the caller to localize. A missing status
// counts as a trial; any other unknown value is treated as expired.
func Evaluate(status string, trialEndsAt *time.Time, now time.Time) Gate {
	if status == "" {
		status = StatusTrial
	}
	g := Gate{Status: status, TrialEndsAt: trialEndsAt}
	if trialEndsAt != nil {
		d := DaysRemaining(*trialEndsAt, now)
		g.DaysRemaining = &d
	}

	switch status {
	case StatusActive:
		g.IsActive = true
	case StatusTrial:
		g.IsActive = trialEndsAt != nil && now.Before(*trialEndsAt)
		switch {
		case !g.IsActive:
			g.MessageCode = MessageTrialExpired
			g.CanUpgrade = true
		case *g.DaysRemaining <= WarningDays:
			g.MessageCode = MessageTrialDaysRemaining
			g.CanUpgrade = true
		}
	case StatusExpired:
		g.MessageCode = MessageExpired
		g.CanUpgrade = true
	case StatusSuspended:
		g.MessageCode = MessageSuspended
	default:
		g.MessageCode = MessageExpired
	}
	g.CanCreatePrescription = g.IsActive
	return g
}

// DaysRemaining is ceil((end - now) / 24h). It is zero or negative once the
// end has passed.
func DaysRemaining(end, now time.Time) int {
	return int(math.Ceil(end.Sub(now).Hours() / 24))
}

// Update is a status change requested by an administrator.
type Update struct {
	Status      string     `json:"subscription_status"`
	TrialEndsAt *time.Time `json:"trial_ends_at"`
}
