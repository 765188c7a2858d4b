package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/domain/subscription"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/query"
	"github.com/clinicrx/clinic/internal/platform/reporting"
)

// Gates reports the subscription state of the calling clinic.
type Gates interface {
	Current(ctx context.Context, lang string) (*subscription.Gate, error)
}

// Notification types.
const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeUrgent  = "urgent"
)

// TrialWarningDays is how close to its end a trial starts being announced.
const TrialWarningDays = 7

type Notification struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type statsParams struct {
	TenantID uuid.UUID
	Day      string
	Lang     string
}

// Service serves dashboard data. Statistics are cached per clinic until the
// day changes, maxAge elapses or Invalidate is called for the clinic.
type Service struct {
	src     reporting.Source
	gates   Gates
	catalog *i18n.Catalog
	stats   *query.Set[uuid.UUID, statsParams, *Statistics]
	loc     *time.Location
	now     func() time.Time
}

func NewService(src reporting.Source, gates Gates, catalog *i18n.Catalog, maxAge time.Duration) *Service {
	s := &Service{src: src, gates: gates, catalog: catalog, loc: time.Local, now: time.Now}
	s.stats = query.NewSet[uuid.UUID](s.load, maxAge)
	return s
}

// SetLocation sets the time zone calendar boundaries are computed in.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// Invalidate drops the cached statistics of a clinic. It matches the change
// hooks of the patient and prescription services.
func (s *Service) Invalidate(tenantID uuid.UUID) {
	s.stats.Invalidate(tenantID)
}

func (s *Service) load(ctx context.Context, p statsParams) (*Statistics, error) {
	rx, err := s.src.Prescriptions(ctx, p.TenantID, nil)
	if err != nil {
		return nil, fmt.Errorf("load prescriptions: %w", err)
	}
	patients, err := s.src.Patients(ctx, p.TenantID, nil)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	label := func(m time.Month) string { return s.catalog.MonthShort(m, p.Lang) }
	return Compute(rx, patients, s.now().In(s.loc), label), nil
}

func (s *Service) compute(ctx context.Context, tenantID uuid.UUID, lang string) (*Statistics, error) {
	p := statsParams{
		TenantID: tenantID,
		Day:      s.now().In(s.loc).Format("2006-01-02"),
		Lang:     s.catalog.Normalize(lang),
	}
	return s.stats.Get(ctx, tenantID, p)
}

func (s *Service) Statistics(ctx context.Context, lang string) (*Statistics, error) {
	tenantID, _, err := identity.Scope(ctx)
	if err != nil {
		return nil, err
	}
	if err := identity.Require(ctx, identity.CanViewStatistics); err != nil {
		return nil, err
	}
	return s.compute(ctx, tenantID, lang)
}

// Notifications lists the alerts for the calling clinic, most pressing first.
func (s *Service) Notifications(ctx context.Context, lang string) ([]Notification, error) {
	tenantID, _, err := identity.Scope(ctx)
	if err != nil {
		return nil, err
	}
	lang = s.catalog.Normalize(lang)

	gate, err := s.gates.Current(ctx, lang)
	if err != nil {
		return nil, err
	}
	stats, err := s.compute(ctx, tenantID, lang)
	if err != nil {
		return nil, err
	}
	return s.notifications(gate, stats, lang), nil
}

func (s *Service) notifications(gate *subscription.Gate, stats *Statistics, lang string) []Notification {
	out := []Notification{}
	add := func(id, typ, key string, args ...interface{}) {
		out = append(out, Notification{
			ID:      id,
			Type:    typ,
			Title:   s.catalog.Text(key, lang),
			Message: s.catalog.Text(key+"_message", lang, args...),
		})
	}

	if gate != nil {
		switch gate.Status {
		case subscription.StatusTrial:
			if d := gate.DaysRemaining; d != nil && *d > 0 && *d <= TrialWarningDays {
				add("trial-ending", TypeWarning, "notify.trial_ending", *d)
			}
		case subscription.StatusExpired, subscription.StatusSuspended:
			add("subscription-expired", TypeUrgent, "notify.subscription_expired")
		}
	}
	if stats.PatientsToday > 0 {
		add("new-patients-today", TypeInfo, "notify.new_patients", stats.PatientsToday)
	}
	if stats.PrescriptionsToday > 0 {
		add("prescriptions-today", TypeSuccess, "notify.prescriptions_today", stats.PrescriptionsToday)
	}
	if stats.TotalPatients == 0 && stats.TotalPrescriptions == 0 {
		add("welcome", TypeInfo, "notify.welcome")
	}
	return out
}
