package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinic/internal/platform/apperr"
	"github.com/clinicrx/clinic/internal/platform/cache"
	"github.com/clinicrx/clinic/internal/platform/metrics"
)

// Resolver maps a principal id to its profile and roles. Results are cached
// until Forget is called or the TTL elapses.
type Resolver struct {
	repo    Repository
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Collector
	logger  zerolog.Logger
}

func NewResolver(repo Repository, c cache.Cache, ttl time.Duration, m *metrics.Collector, logger zerolog.Logger) *Resolver {
	return &Resolver{repo: repo, cache: c, ttl: ttl, metrics: m, logger: logger}
}

// cachedIdentity keeps the storage paths the public JSON form hides.
type cachedIdentity struct {
	PrincipalID   uuid.UUID `json:"principal_id"`
	Profile       *Profile  `json:"profile"`
	SignaturePath *string   `json:"signature_path,omitempty"`
	AvatarPath    *string   `json:"avatar_path,omitempty"`
	Roles         []string  `json:"roles"`
}

func cacheKey(principalID uuid.UUID) string {
	return cache.Key("identity", principalID.String())
}

// Resolve returns the identity of principalID. A principal without a profile
// resolves to an identity with a nil Profile; one without roles resolves
// with no roles.
func (r *Resolver) Resolve(ctx context.Context, principalID uuid.UUID) (*Identity, error) {
	if id, ok := r.fromCache(ctx, principalID); ok {
		return id, nil
	}
	if r.metrics != nil {
		r.metrics.IdentityCacheMisses.Inc()
	}

	id := &Identity{PrincipalID: principalID, Roles: []string{}}
	p, err := r.repo.GetProfile(ctx, principalID)
	switch {
	case err == nil:
		id.Profile = p
	case apperr.IsNotFound(err):
	default:
		return nil, fmt.Errorf("resolve profile: %w", err)
	}

	roles, err := r.repo.GetRoles(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}
	id.Roles = SortRoles(roles)

	r.store(ctx, id)
	return id, nil
}

func (r *Resolver) fromCache(ctx context.Context, principalID uuid.UUID) (*Identity, bool) {
	if r.cache == nil {
		return nil, false
	}
	var ci cachedIdentity
	if err := cache.GetJSON(ctx, r.cache, cacheKey(principalID), &ci); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn().Err(err).Str("principal_id", principalID.String()).Msg("identity cache read failed")
		}
		return nil, false
	}
	if r.metrics != nil {
		r.metrics.IdentityCacheHits.Inc()
	}
	if ci.Profile != nil {
		ci.Profile.SignaturePath = ci.SignaturePath
		ci.Profile.AvatarPath = ci.AvatarPath
	}
	if ci.Roles == nil {
		ci.Roles = []string{}
	}
	return &Identity{PrincipalID: ci.PrincipalID, Profile: ci.Profile, Roles: ci.Roles}, true
}

func (r *Resolver) store(ctx context.Context, id *Identity) {
	if r.cache == nil {
		return
	}
	ci := cachedIdentity{PrincipalID: id.PrincipalID, Profile: id.Profile, Roles: id.Roles}
	if id.Profile != nil {
		ci.SignaturePath = id.Profile.SignaturePath
		ci.AvatarPath = id.Profile.AvatarPath
	}
	if err := cache.SetJSON(ctx, r.cache, cacheKey(id.PrincipalID), ci, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("principal_id", id.PrincipalID.String()).Msg("identity cache write failed")
	}
}

// Forget drops the cached resolution of principalID so the next request
// re-derives it.
func (r *Resolver) Forget(ctx context.Context, principalID uuid.UUID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, cacheKey(principalID)); err != nil {
		r.logger.Warn().Err(err).Str("principal_id", principalID.String()).Msg("identity cache delete failed")
	}
}
