package reporting

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/auth"
	"github.com/clinicrx/clinic/internal/platform/metrics"
	"github.com/clinicrx/clinic/internal/platform/middleware"
)

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	source   Source
	logger   zerolog.Logger
	recorder middleware.AuditRecorder
	metrics  *metrics.Collector
	loc      *time.Location
	now      func() time.Time
}

// NewHandler creates a reporting handler. Exports are audited through
// recorder.
func NewHandler(source Source, logger zerolog.Logger, recorder middleware.AuditRecorder, m *metrics.Collector) *Handler {
	return &Handler{
		source:   source,
		logger:   logger,
		recorder: recorder,
		metrics:  m,
		loc:      time.Local,
		now:      time.Now,
	}
}

// RegisterRoutes registers the reporting API routes. Reports are available
// to principals who may view statistics.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole("clinic_admin", "doctor"))
	g.GET("", h.ListReports)
	for _, def := range Definitions {
		g.GET("/"+string(def.ID)+"/export", h.Export(def.ID),
			middleware.Audit(h.logger, h.recorder, "export", def.EntityType))
	}
}

// ListReports returns the available report definitions.
func (h *Handler) ListReports(c echo.Context) error {
	return c.JSON(http.StatusOK, Definitions)
}

// Export streams report as a downloadable file.
func (h *Handler) Export(report Report) echo.HandlerFunc {
	return func(c echo.Context) error {
		tid, _ := c.Get("tenant_id").(string)
		tenantID, err := uuid.Parse(tid)
		if err != nil {
			return apperr.HTTP(apperr.ErrNoTenant)
		}

		format, err := ParseFormat(c.QueryParam("format"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		rng, err := ParseRange(c.QueryParam("range"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		now := h.now().In(h.loc)
		ds, err := Build(c.Request().Context(), h.source, report, tenantID, rng.Since(now), h.loc)
		if err != nil {
			return apperr.HTTP(err)
		}
		if ds.Empty() {
			return echo.NewHTTPError(http.StatusNotFound, "no data to export")
		}

		var buf bytes.Buffer
		if err := format.Write(&buf, ds); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		name := FileName(report, format, now)
		c.Set(middleware.AuditEntityNameKey, name)
		c.Set(middleware.AuditDataKey, map[string]interface{}{
			"report": report,
			"format": format,
			"range":  rng,
			"rows":   len(ds.Rows),
		})
		if h.metrics != nil {
			h.metrics.ExportsTotal.WithLabelValues(string(report), string(format)).Inc()
		}

		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
	}
}
