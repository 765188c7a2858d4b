package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/auth"
	"github.com/clinicrx/clinic/internal/platform/db"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/middleware"
)

// Messenger delivers plain transactional email.
type Messenger interface {
	SendMessage(ctx context.Context, to, subject, body string) error
}

// TokenRevoker invalidates a session token, or every session of a subject
// issued before a point in time, before they expire.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	RevokeSessions(ctx context.Context, subject string, before time.Time, ttl time.Duration) error
}

// Config holds the account settings taken from the server configuration.
type Config struct {
	TrialDays int
}

// Service is the identity provider for accounts managed by this server.
type Service struct {
	repo      Repository
	identity  identity.Repository
	issuer    *auth.TokenIssuer
	revoker   TokenRevoker
	messenger Messenger
	catalog   *i18n.Catalog
	events    *Events
	cfg       Config
	logger    zerolog.Logger
	audit     middleware.AuditRecorder

	now        func() time.Time
	bcryptCost int
	inTx       func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewService(
	repo Repository,
	identityRepo identity.Repository,
	issuer *auth.TokenIssuer,
	revoker TokenRevoker,
	messenger Messenger,
	catalog *i18n.Catalog,
	events *Events,
	beginner db.Beginner,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	if events == nil {
		events = NewEvents()
	}
	return &Service{
		repo:       repo,
		identity:   identityRepo,
		issuer:     issuer,
		revoker:    revoker,
		messenger:  messenger,
		catalog:    catalog,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, beginner, fn)
		},
	}
}

func (s *Service) SetAuditRecorder(r middleware.AuditRecorder) {
	s.audit = r
}

// Events returns the session event stream.
func (s *Service) Events() *Events {
	return s.events
}

func (s *Service) record(ctx context.Context, ev middleware.AuditEvent) {
	if s.audit != nil {
		s.audit.RecordEvent(ctx, ev)
	}
}

func (s *Service) publish(typ string, principalID uuid.UUID) {
	s.events.Publish(Event{Type: typ, PrincipalID: principalID, At: s.now()})
}

func (s *Service) hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(h), nil
}

// SignUp creates an account and its profile. With a clinic name it also
// creates the clinic on a trial and makes the new user its administrator.
// Everything is written in one transaction.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	acc := &Account{ID: uuid.New(), Email: req.Email, PasswordHash: hash}
	res := &SignUpResult{User: User{ID: acc.ID, Email: acc.Email}, Roles: []string{}}
	var tenant *identity.Tenant

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, acc); err != nil {
			return fmt.Errorf("create account: %w", err)
		}

		profile := &identity.Profile{ID: acc.ID, FullName: req.FullName}
		if req.ClinicName != "" {
			trialEnds := s.now().AddDate(0, 0, s.cfg.TrialDays)
			tenant = &identity.Tenant{
				Name:               req.ClinicName,
				SubscriptionStatus: "trial",
				TrialEndsAt:        &trialEnds,
			}
			if err := s.identity.CreateTenant(ctx, tenant); err != nil {
				return fmt.Errorf("create clinic: %w", err)
			}
			profile.TenantID = &tenant.ID
		}

		if err := s.identity.CreateProfile(ctx, profile); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		if tenant != nil {
			if err := s.identity.AddRole(ctx, acc.ID, identity.RoleClinicAdmin); err != nil {
				return fmt.Errorf("grant role: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if tenant != nil {
		res.TenantID = &tenant.ID
		res.Roles = []string{identity.RoleClinicAdmin}
		s.record(ctx, middleware.AuditEvent{
			Action:     "create",
			EntityType: "user",
			EntityID:   acc.ID.String(),
			EntityName: req.FullName,
			NewData:    map[string]interface{}{"email": acc.Email, "clinic_name": tenant.Name},
			TenantID:   tenant.ID.String(),
			UserID:     acc.ID.String(),
		})
	}
	lg := middleware.LoggerFrom(ctx, s.logger)
	lg.Info().Str("principal_id", acc.ID.String()).Bool("clinic", tenant != nil).Msg("account created")
	return res, nil
}

// SignIn checks the credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*Session, error) {
	acc, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	tok, err := s.issuer.Issue(acc.ID.String(), acc.Email)
	if err != nil {
		return nil, err
	}

	s.publish(EventSignedIn, acc.ID)
	s.recordSession(ctx, "login", acc)
	return &Session{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresAt:   tok.ExpiresAt,
		User:        User{ID: acc.ID, Email: acc.Email},
	}, nil
}

// recordSession audits a login or logout against the account's clinic, if
// it has one.
func (s *Service) recordSession(ctx context.Context, action string, acc *Account) {
	p, err := s.identity.GetProfile(ctx, acc.ID)
	if err != nil || p.TenantID == nil {
		return
	}
	s.record(ctx, middleware.AuditEvent{
		Action:     action,
		EntityType: "user",
		EntityID:   acc.ID.String(),
		EntityName: p.FullName,
		TenantID:   p.TenantID.String(),
		UserID:     acc.ID.String(),
	})
}

// SignOut revokes the token the request was authenticated with.
func (s *Service) SignOut(ctx context.Context) error {
	jti := auth.TokenIDFromContext(ctx)
	principal, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if jti == "" || err != nil {
		return ErrNoSession
	}
	exp := auth.TokenExpiryFromContext(ctx)
	if exp.IsZero() {
		exp = s.now().Add(24 * time.Hour)
	}
	if err := s.revoker.Revoke(ctx, jti, exp); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	s.publish(EventSignedOut, principal)
	s.recordSession(ctx, "logout", &Account{ID: principal})
	return nil
}

// UpdatePassword sets a new password for the authenticated account.
func (s *Service) UpdatePassword(ctx context.Context, req PasswordUpdate) error {
	principal, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.ErrNotAuthenticated
	}
	if err := validPassword(req.Password); err != nil {
		return err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, principal, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.revokeSessions(ctx, principal); err != nil {
		return err
	}
	s.publish(EventPasswordUpdated, principal)
	return nil
}

// revokeSessions signs the account out everywhere, the current session
// included.
func (s *Service) revokeSessions(ctx context.Context, principal uuid.UUID) error {
	if err := s.revoker.RevokeSessions(ctx, principal.String(), s.now(), s.issuer.TTL()); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// RequestPasswordReset emails a one-hour reset code when the address
// belongs to an account. Unknown addresses succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, req ResetRequest) error {
	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		return apperr.Validation("email is invalid")
	}
	acc, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			lg := middleware.LoggerFrom(ctx, s.logger)
			lg.Debug().Msg("password reset for unknown address")
			return nil
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	secret, err := randomSecret()
	if err != nil {
		return err
	}
	hash, err := s.hash(secret)
	if err != nil {
		return err
	}
	pr := &PasswordReset{ID: uuid.New(), AccountID: acc.ID, TokenHash: hash, ExpiresAt: s.now().Add(ResetTTL)}
	if err := s.repo.CreateReset(ctx, pr); err != nil {
		return fmt.Errorf("store reset: %w", err)
	}

	code := pr.ID.String() + "." + secret
	lang := s.catalog.Normalize(req.Language)
	subject := s.catalog.Text("mail.reset_subject", lang)
	body := s.catalog.Text("mail.reset_body", lang, code)
	if err := s.messenger.SendMessage(ctx, acc.Email, subject, body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ConfirmPasswordReset redeems a reset code and sets the new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, req ResetConfirm) error {
	if err := validPassword(req.Password); err != nil {
		return err
	}
	idPart, secret, ok := strings.Cut(strings.TrimSpace(req.Code), ".")
	if !ok || secret == "" {
		return ErrInvalidResetToken
	}
	resetID, err := uuid.Parse(idPart)
	if err != nil {
		return ErrInvalidResetToken
	}

	pr, err := s.repo.GetReset(ctx, resetID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("load reset: %w", err)
	}
	if !pr.Usable(s.now()) || bcrypt.CompareHashAndPassword([]byte(pr.TokenHash), []byte(secret)) != nil {
		return ErrInvalidResetToken
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdatePassword(ctx, pr.AccountID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return s.repo.MarkResetUsed(ctx, pr.ID)
	})
	if err != nil {
		return err
	}
	if err := s.revokeSessions(ctx, pr.AccountID); err != nil {
		return err
	}
	s.publish(EventPasswordUpdated, pr.AccountID)
	return nil
}

// CreatePrincipal registers a bare account with no profile, for invitations.
func (s *Service) CreatePrincipal(ctx context.Context, email, password string) (*Account, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, apperr.Validation("email is invalid")
	}
	if password == "" {
		var err error
		if password, err = randomSecret(); err != nil {
			return nil, err
		}
	}
	if err := validPassword(password); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	acc := &Account{ID: uuid.New(), Email: email, PasswordHash: hash}
	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

// DeletePrincipal removes an account created by CreatePrincipal.
func (s *Service) DeletePrincipal(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func randomSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
