package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trieu/leo-activation/business/affinity"
	"github.com/trieu/leo-activation/domain"
)

type ProfileRepository struct {
	DB *gorm.DB
}

var _ affinity.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

// Segment membership is denormalized onto profile rows; there is no segment
// table to look up. This unnests the jsonb list and takes the first id whose
// name matches. Worst case O(profiles), which is why callers cache the result
// per run.
const resolveSegmentQuery = `
SELECT s->>'id' AS segment_id
FROM cdp_profiles p,
     jsonb_array_elements(p.segments) AS s
WHERE p.tenant_id = ?
  AND s->>'name' = ?
LIMIT 1
`

func (r *ProfileRepository) ResolveSegmentID(ctx context.Context, tenantID uuid.UUID, segmentName string) (string, error) {
	var segmentID string
	err := r.DB.WithContext(ctx).
		Raw(resolveSegmentQuery, tenantID, segmentName).
		Scan(&segmentID).Error
	if err != nil {
		return "", fmt.Errorf("failed to resolve segment: %w", err)
	}
	if segmentID == "" {
		return "", domain.ErrSegmentNotFound
	}

	return segmentID, nil
}

// GetSegmentNames returns the persona labels attached to a profile. A missing
// profile yields an empty set rather than an error; the decision engines fall
// back to passive behavior.
func (r *ProfileRepository) GetSegmentNames(ctx context.Context, tenantID uuid.UUID, profileID string) ([]string, error) {
	var profile domain.Profile
	err := r.DB.WithContext(ctx).
		Select("segments").
		Where("tenant_id = ? AND profile_id = ?", tenantID, profileID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile segments: %w", err)
	}

	return profile.SegmentNames(), nil
}
