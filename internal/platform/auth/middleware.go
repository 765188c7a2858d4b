package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	UserRolesKey   contextKey = "user_roles"
	TokenIDKey     contextKey = "token_id"
	TokenExpiryKey contextKey = "token_expiry"
)

// DevPrincipalHeader names the principal to act as when the server runs in
// development mode and the request carries no bearer token.
const DevPrincipalHeader = "X-Dev-Principal"

// Claims is the token payload. Roles are not carried in the token; they are
// resolved from the store for every request.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// RevocationChecker reports whether a token id was revoked by sign-out, or
// whether all of a subject's sessions before some time were revoked by a
// password change.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	SessionRevoked(ctx context.Context, subject string, issuedAt time.Time) (bool, error)
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey selects HS256 validation of tokens issued by this server.
	// When empty, tokens are RS256 and validated against JWKSURL.
	SigningKey  []byte
	Revocations RevocationChecker
	Skipper     func(echo.Context) bool
}

// tokenValidator parses and verifies bearer tokens for one configuration.
type tokenValidator struct {
	secret  []byte
	keys    *KeySet
	opts    []jwt.ParserOption
	revoked RevocationChecker
}

func newTokenValidator(cfg JWTConfig) *tokenValidator {
	v := &tokenValidator{revoked: cfg.Revocations}

	if len(cfg.SigningKey) > 0 {
		v.secret = cfg.SigningKey
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"HS256"}))
	} else {
		jwksURL := cfg.JWKSURL
		if jwksURL == "" && cfg.Issuer != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if provider, err := DiscoverOIDC(ctx, cfg.Issuer); err == nil {
				jwksURL = provider.JWKSURI
			}
			cancel()
		}
		v.keys = NewKeySet(jwksURL)
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"RS256"}))
	}
	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	v.opts = append(v.opts, jwt.WithExpirationRequired())
	return v
}

func (v *tokenValidator) keyfunc(ctx context.Context) jwt.Keyfunc {
	if v.keys != nil {
		return v.keys.keyfunc(ctx)
	}
	return func(*jwt.Token) (interface{}, error) { return v.secret, nil }
}

func (v *tokenValidator) authenticate(c echo.Context, authHeader string) error {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, v.keyfunc(c.Request().Context()), v.opts...)
	if err != nil || !token.Valid || claims.Subject == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	if v.revoked != nil && claims.ID != "" {
		revoked, err := v.revoked.IsRevoked(c.Request().Context(), claims.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "token revocation check failed")
		}
		if revoked {
			return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
		}
	}
	if v.revoked != nil && claims.IssuedAt != nil {
		revoked, err := v.revoked.SessionRevoked(c.Request().Context(), claims.Subject, claims.IssuedAt.Time)
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "token revocation check failed")
		}
		if revoked {
			return echo.NewHTTPError(http.StatusUnauthorized, "session revoked")
		}
	}

	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	setPrincipal(c, claims.Subject, claims.ID, expiry)
	return nil
}

func setPrincipal(c echo.Context, principalID, jti string, expiry time.Time) {
	c.Set("principal_id", principalID)

	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, principalID)
	ctx = context.WithValue(ctx, TokenIDKey, jti)
	ctx = context.WithValue(ctx, TokenExpiryKey, expiry)
	c.SetRequest(c.Request().WithContext(ctx))
}

// JWTMiddleware requires a valid bearer token on every request not skipped
// by cfg.Skipper.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	v := newTokenValidator(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			if err := v.authenticate(c, authHeader); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// DevAuthMiddleware validates bearer tokens like JWTMiddleware, and also lets
// a request without one act as the principal named in X-Dev-Principal.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	v := newTokenValidator(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
				if err := v.authenticate(c, authHeader); err != nil {
					return err
				}
				return next(c)
			}

			principal := strings.TrimSpace(c.Request().Header.Get(DevPrincipalHeader))
			if principal == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			setPrincipal(c, principal, "", time.Time{})
			return next(c)
		}
	}
}

// WithUserID stores a principal id on ctx outside the HTTP middleware, for
// CLI commands and tests.
func WithUserID(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, UserIDKey, principalID)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func TokenIDFromContext(ctx context.Context) string {
	jti, _ := ctx.Value(TokenIDKey).(string)
	return jti
}

func TokenExpiryFromContext(ctx context.Context) time.Time {
	exp, _ := ctx.Value(TokenExpiryKey).(time.Time)
	return exp
}

// WithRoles stores the principal's resolved roles on ctx.
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, UserRolesKey, roles)
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
