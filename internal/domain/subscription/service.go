package subscription

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/middleware"
)

// Service evaluates and administers tenant subscriptions.
type Service struct {
	repo    Repository
	catalog *i18n.Catalog
	audit   middleware.AuditRecorder
	now     func() time.Time
}

func NewService(repo Repository, catalog *i18n.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog, now: time.Now}
}

func (s *Service) SetAuditRecorder(r middleware.AuditRecorder) {
	s.audit = r
}

// ForTenant evaluates the gate of tenantID now, with the message in lang.
func (s *Service) ForTenant(ctx context.Context, tenantID uuid.UUID, lang string) (*Gate, error) {
	st, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	g := Evaluate(st.Status, st.TrialEndsAt, s.now())
	s.localize(&g, lang)
	return &g, nil
}

// Current evaluates the gate of the caller's tenant.
func (s *Service) Current(ctx context.Context, lang string) (*Gate, error) {
	tenantID, _, err := identity.Scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.ForTenant(ctx, tenantID, lang)
}

// language picks the message language for r.
func (s *Service) language(r *http.Request) string {
	if s.catalog == nil {
		return ""
	}
	return s.catalog.FromRequest(r)
}

func (s *Service) localize(g *Gate, lang string) {
	if g.MessageCode == "" || s.catalog == nil {
		return
	}
	key := "subscription." + g.MessageCode
	if g.MessageCode == MessageTrialDaysRemaining {
		g.Message = s.catalog.Text(key, lang, *g.DaysRemaining)
		return
	}
	g.Message = s.catalog.Text(key, lang)
}

// SetStatus moves tenantID to a new status. A trial without an end date is
// rejected since it could never become active.
func (s *Service) SetStatus(ctx context.Context, tenantID uuid.UUID, u Update) (*Gate, error) {
	if !ValidStatus(u.Status) {
		return nil, apperr.Validation("subscription_status must be one of trial, active, expired, suspended")
	}
	if u.Status == StatusTrial && u.TrialEndsAt == nil {
		return nil, apperr.Validation("trial_ends_at is required for a trial")
	}

	old, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	next := &State{TenantID: tenantID, Status: u.Status, TrialEndsAt: u.TrialEndsAt}
	if err := s.repo.Update(ctx, next); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}

	if s.audit != nil {
		s.audit.RecordEvent(ctx, middleware.AuditEvent{
			Action:     "update",
			EntityType: "settings",
			EntityID:   tenantID.String(),
			EntityName: "subscription",
			OldData:    old,
			NewData:    next,
			TenantID:   tenantID.String(),
		})
	}

	g := Evaluate(next.Status, next.TrialEndsAt, s.now())
	return &g, nil
}
