package prescription

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/middleware"
	"github.com/clinicrx/clinic/internal/platform/notification"
	"github.com/clinicrx/clinic/internal/platform/render"
	"github.com/clinicrx/clinic/pkg/pagination"
)

type Handler struct {
	svc     *Service
	catalog *i18n.Catalog
	issue   []echo.MiddlewareFunc
}

// NewHandler returns the prescription routes. issue guards prescription
// creation, typically the subscription gate.
func NewHandler(svc *Service, catalog *i18n.Catalog, issue ...echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, catalog: catalog, issue: issue}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	write := identity.RequireCapability(identity.CanCreatePrescription)

	g := api.Group("/prescriptions")
	g.GET("", h.List)
	g.POST("", h.Create, append([]echo.MiddlewareFunc{write}, h.issue...)...)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update, write)
	g.DELETE("/:id", h.Delete, write)
	g.GET("/:id/print", h.Print)
	g.GET("/:id/pdf", h.PDF)
	g.POST("/:id/email", h.Email)

	api.GET("/patients/:id/prescriptions", h.ListForPatient)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpError(err error) error {
	var reqErr *notification.RequestError
	switch {
	case errors.As(err, &reqErr):
		return echo.NewHTTPError(reqErr.Status, reqErr.Message)
	case errors.Is(err, render.ErrRasterizerUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, render.ErrRasterize):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return apperr.HTTP(err)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Q: c.QueryParam("q")}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return pagination.Respond(c, items, total, pg)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ForPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return pagination.Respond(c, items, total, pg)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Print(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	html, err := h.svc.Print(c.Request().Context(), id, h.catalog.FromRequest(c.Request()))
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set("Content-Security-Policy", middleware.DocumentCSP)
	return c.HTML(http.StatusOK, html)
}

func (h *Handler) PDF(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	data, p, err := h.svc.PDF(c.Request().Context(), id, h.catalog.FromRequest(c.Request()))
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+PDFFileName(p)+`"`)
	return c.Blob(http.StatusOK, "application/pdf", data)
}

func (h *Handler) Email(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Language == "" {
		req.Language = h.catalog.FromRequest(c.Request())
	}

	ctx := c.Request().Context()
	if token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "); ok {
		ctx = notification.WithBearerToken(ctx, token)
	}
	res, err := h.svc.Email(ctx, id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
