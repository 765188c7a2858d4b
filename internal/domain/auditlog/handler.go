package auditlog

import (
	"github.com/labstack/echo/v4"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/pkg/pagination"
)

type Handler struct {
	svc     *Service
	catalog *i18n.Catalog
}

func NewHandler(svc *Service, catalog *i18n.Catalog) *Handler {
	return &Handler{svc: svc, catalog: catalog}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/audit-logs", h.List, identity.RequireCapability(identity.CanManageClinic))
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Action:     c.QueryParam("action"),
		EntityType: c.QueryParam("entity_type"),
		Q:          c.QueryParam("q"),
	}
	lang := h.catalog.FromRequest(c.Request())

	items, total, err := h.svc.List(c.Request().Context(), f, lang, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return pagination.Respond(c, items, total, pg)
}
