package notification

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinic/internal/platform/auth"
	"github.com/clinicrx/clinic/internal/platform/metrics"
)

// Client sends prescription emails, in process or through a remote function.
type Client interface {
	SendPrescriptionEmail(ctx context.Context, req PrescriptionEmailRequest) (*SendResult, error)
}

// SendResult is the mail function response body.
type SendResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Preview Preview `json:"preview"`
}

// Mailer validates, renders and delivers prescription emails. It is both
// the in-process Client and the backing service of FunctionHandler.
type Mailer struct {
	composer *Composer
	sender   EmailSender
	logger   zerolog.Logger
	metrics  *metrics.Collector
}

func NewMailer(composer *Composer, sender EmailSender, logger zerolog.Logger, m *metrics.Collector) *Mailer {
	return &Mailer{composer: composer, sender: sender, logger: logger, metrics: m}
}

func (m *Mailer) count(outcome string) {
	if m.metrics != nil {
		m.metrics.EmailsSent.WithLabelValues(outcome).Inc()
	}
}

// SendPrescriptionEmail returns a *RequestError for invalid payloads.
func (m *Mailer) SendPrescriptionEmail(ctx context.Context, req PrescriptionEmailRequest) (*SendResult, error) {
	if err := req.Validate(); err != nil {
		m.count("rejected")
		return nil, err
	}

	preview, err := m.composer.Compose(req)
	if err != nil {
		m.count("failed")
		return nil, err
	}

	if err := m.sender.SendEmail(ctx, preview.To, preview.Subject, preview.HTMLContent); err != nil {
		m.count("failed")
		return nil, err
	}
	m.count("sent")

	// Patient names stay out of the log.
	m.logger.Info().
		Str("to", preview.To).
		Str("clinic", req.ClinicName).
		Int("medications", len(req.Medications)).
		Str("requested_by", auth.UserIDFromContext(ctx)).
		Msg("prescription email sent")

	return &SendResult{Success: true, Message: "Email prepared successfully", Preview: *preview}, nil
}

// SendMessage delivers a plain transactional message (reset codes,
// invitations).
func (m *Mailer) SendMessage(ctx context.Context, to, subject, body string) error {
	return m.sender.SendEmail(ctx, to, subject, body)
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// FunctionHandler exposes the mail function over HTTP.
type FunctionHandler struct {
	mailer *Mailer
	logger zerolog.Logger
}

func NewFunctionHandler(mailer *Mailer, logger zerolog.Logger) *FunctionHandler {
	return &FunctionHandler{mailer: mailer, logger: logger}
}

// RegisterRoutes mounts the function on a group that runs JWT validation,
// typically /functions/v1.
func (h *FunctionHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/send-prescription-email", h.HandleSendPrescriptionEmail)
}

// HandleSendPrescriptionEmail handles POST /functions/v1/send-prescription-email.
func (h *FunctionHandler) HandleSendPrescriptionEmail(c echo.Context) error {
	ctx := c.Request().Context()
	if auth.UserIDFromContext(ctx) == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized - Missing or invalid authorization header"})
	}

	var req PrescriptionEmailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	res, err := h.mailer.SendPrescriptionEmail(ctx, req)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			return c.JSON(reqErr.Status, map[string]string{"error": reqErr.Message})
		}
		h.logger.Error().Err(err).Msg("send-prescription-email failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}
