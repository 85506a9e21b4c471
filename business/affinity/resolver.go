package affinity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trieu/leo-activation/domain"
)

// IdentityCache stores resolved display-name -> id mappings between runs.
// Segment resolution scans the whole profile set, so a hit saves the most
// expensive query the engine issues.
type IdentityCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

const identityCacheTTL = 10 * time.Minute

// ResolvedIDs are the stable surrogate keys for one batch invocation. They
// are resolved once up front and passed down; nothing re-resolves per row.
type ResolvedIDs struct {
	TenantID  uuid.UUID
	SegmentID string
}

type Resolver struct {
	tenantRepo  TenantRepository
	profileRepo ProfileRepository
	cache       IdentityCache
}

func NewResolver(tenantRepo TenantRepository, profileRepo ProfileRepository, cache IdentityCache) *Resolver {
	return &Resolver{
		tenantRepo:  tenantRepo,
		profileRepo: profileRepo,
		cache:       cache,
	}
}

func (r *Resolver) Resolve(ctx context.Context, tenantName, segmentName string) (ResolvedIDs, error) {
	tenantID, err := r.ResolveTenant(ctx, tenantName)
	if err != nil {
		return ResolvedIDs{}, err
	}

	segmentID, err := r.resolveSegment(ctx, tenantID, segmentName)
	if err != nil {
		return ResolvedIDs{}, err
	}

	return ResolvedIDs{TenantID: tenantID, SegmentID: segmentID}, nil
}

func (r *Resolver) ResolveTenant(ctx context.Context, tenantName string) (uuid.UUID, error) {
	cacheKey := "tenant:" + tenantName

	if cached, ok := r.cacheGet(ctx, cacheKey); ok {
		if id, err := uuid.Parse(cached); err == nil {
			return id, nil
		}
	}

	tenantID, err := r.tenantRepo.ResolveTenantID(ctx, tenantName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve tenant %q: %w", tenantName, err)
	}

	r.cacheSet(ctx, cacheKey, tenantID.String())
	return tenantID, nil
}

func (r *Resolver) resolveSegment(ctx context.Context, tenantID uuid.UUID, segmentName string) (string, error) {
	cacheKey := fmt.Sprintf("segment:%s:%s", tenantID, segmentName)

	if cached, ok := r.cacheGet(ctx, cacheKey); ok {
		return cached, nil
	}

	segmentID, err := r.profileRepo.ResolveSegmentID(ctx, tenantID, segmentName)
	if err != nil {
		return "", fmt.Errorf("resolve segment %q: %w", segmentName, err)
	}
	if segmentID == "" {
		return "", fmt.Errorf("resolve segment %q: %w", segmentName, domain.ErrSegmentNotFound)
	}

	r.cacheSet(ctx, cacheKey, segmentID)
	return segmentID, nil
}

// Cache failures are never fatal: a cold or unreachable cache just means the
// slow path runs again.
func (r *Resolver) cacheGet(ctx context.Context, key string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	val, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return "", false
	}
	return val, true
}

func (r *Resolver) cacheSet(ctx context.Context, key, value string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Set(ctx, key, value, identityCacheTTL)
}
