// Package apperr holds the error taxonomy shared by the clinic services and
// its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrNoTenant             = errors.New("no tenant")
	ErrForbidden            = errors.New("forbidden: insufficient permissions")
	ErrNotFound             = errors.New("not found")
	ErrSubscriptionInactive = errors.New("subscription inactive")
)

// ValidationError reports a required field that is missing or malformed.
// It is always raised before any store call.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Validation builds a ValidationError from one or more field messages.
func Validation(fields ...string) error {
	return &ValidationError{Fields: fields}
}

// IsNotFound reports whether err means the row does not exist, including
// pgx's own no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// HTTP converts a service error into an echo HTTP error. Store errors keep
// their message intact.
func HTTP(err error) error {
	if err == nil {
		return nil
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}

	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrNoTenant), errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrSubscriptionInactive):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	case IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23514":
			return echo.NewHTTPError(http.StatusConflict, pgErr.Message)
		case "22P02", "23502":
			return echo.NewHTTPError(http.StatusBadRequest, pgErr.Message)
		}
	}

	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
