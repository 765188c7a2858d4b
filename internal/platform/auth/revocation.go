package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/clinicrx/clinic/internal/platform/cache"
)

// RevocationStore keeps revoked token ids, and per-subject session cutoffs,
// in the shared cache until the affected tokens would have expired on their
// own.
type RevocationStore struct {
	cache cache.Cache
	now   func() time.Time
}

func NewRevocationStore(c cache.Cache) *RevocationStore {
	return &RevocationStore{cache: c, now: time.Now}
}

func revocationKey(jti string) string {
	return cache.Key("revoked", jti)
}

// Revoke marks jti revoked. Tokens already past expiresAt are ignored.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, revocationKey(jti), []byte("1"), ttl)
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.cache.Exists(ctx, revocationKey(jti))
}

func sessionCutoffKey(subject string) string {
	return cache.Key("sessions-before", subject)
}

// RevokeSessions invalidates every token of subject issued before the given
// time. The cutoff is kept for ttl, which should be the longest token
// lifetime.
func (s *RevocationStore) RevokeSessions(ctx context.Context, subject string, before time.Time, ttl time.Duration) error {
	if subject == "" || ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, sessionCutoffKey(subject), []byte(strconv.FormatInt(before.Unix(), 10)), ttl)
}

// SessionRevoked reports whether a token of subject issued at issuedAt
// predates the subject's cutoff. iat has second precision, so a token issued
// in the cutoff's second stays valid.
func (s *RevocationStore) SessionRevoked(ctx context.Context, subject string, issuedAt time.Time) (bool, error) {
	raw, err := s.cache.Get(ctx, sessionCutoffKey(subject))
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	cutoff, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return false, err
	}
	return issuedAt.Unix() < cutoff, nil
}
