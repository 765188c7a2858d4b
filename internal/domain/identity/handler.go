package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/blobstore"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.GetMe)
	api.PATCH("/me/profile", h.UpdateProfile)
	api.PUT("/me/signature", h.UploadSignature)

	api.GET("/clinic", h.GetClinic)
	manage := api.Group("/clinic", RequireCapability(CanManageClinic))
	manage.PATCH("", h.UpdateClinic)
	manage.PUT("/logo", h.UploadLogo)
}

func (h *Handler) GetMe(c echo.Context) error {
	me, err := h.svc.Me(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, me)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var patch ProfilePatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdateProfile(c.Request().Context(), patch)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetClinic(c echo.Context) error {
	t, err := h.svc.Clinic(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateClinic(c echo.Context) error {
	var patch TenantPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.UpdateClinic(c.Request().Context(), patch)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UploadSignature(c echo.Context) error {
	up, closeFn, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closeFn()

	p, err := h.svc.UploadSignature(c.Request().Context(), up)
	if err != nil {
		return uploadError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UploadLogo(c echo.Context) error {
	up, closeFn, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closeFn()

	t, err := h.svc.UploadLogo(c.Request().Context(), up)
	if err != nil {
		return uploadError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// formUpload reads the multipart "file" field.
func formUpload(c echo.Context) (Upload, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return Upload{}, nil, echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return Upload{}, nil, echo.NewHTTPError(http.StatusBadRequest, "file could not be read")
	}
	return Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}, func() { f.Close() }, nil
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	}
	return apperr.HTTP(err)
}
