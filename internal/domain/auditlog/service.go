package auditlog

import (
	"context"
	"strings"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/i18n"
)

// Service browses the audit log of the caller's clinic.
type Service struct {
	repo    Repository
	catalog *i18n.Catalog
}

func NewService(repo Repository, catalog *i18n.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// List returns entries newest first with localized action and entity labels.
func (s *Service) List(ctx context.Context, f Filter, lang string, limit, offset int) ([]*Entry, int, error) {
	if err := identity.Require(ctx, identity.CanManageClinic); err != nil {
		return nil, 0, err
	}
	tenantID, _, err := identity.Scope(ctx)
	if err != nil {
		return nil, 0, err
	}

	f.Q = strings.TrimSpace(f.Q)
	if f.Action != "" && !ValidAction(f.Action) {
		return nil, 0, apperr.Validation("action must be one of " + strings.Join(Actions, ", "))
	}
	if f.EntityType != "" && !ValidEntityType(f.EntityType) {
		return nil, 0, apperr.Validation("entity_type must be one of " + strings.Join(EntityTypes, ", "))
	}

	items, total, err := s.repo.List(ctx, tenantID, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if s.catalog != nil {
		for _, e := range items {
			e.ActionLabel = s.catalog.Label(i18n.CategoryAction, e.Action, lang)
			e.EntityTypeLabel = s.catalog.Label(i18n.CategoryEntity, e.EntityType, lang)
		}
	}
	return items, total, nil
}
