package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trieu/leo-activation/business/affinity"
	"github.com/trieu/leo-activation/domain"
)

// AffinityRepository is the durable record of raw and normalized scores per
// (tenant, profile, subject, journey) key.
type AffinityRepository struct {
	DB *gorm.DB
}

var _ affinity.AffinityRepository = (*AffinityRepository)(nil)

func NewAffinityRepository(db *gorm.DB) *AffinityRepository {
	return &AffinityRepository{DB: db}
}

const keyCondition = "tenant_id = ? AND profile_id = ? AND subject_id = ? AND journey_map_id = ? AND journey_stage_id = ? AND model_id = ?"

var keyConflictColumns = []clause.Column{
	{Name: "tenant_id"},
	{Name: "profile_id"},
	{Name: "subject_id"},
	{Name: "journey_map_id"},
	{Name: "journey_stage_id"},
	{Name: "model_id"},
}

func keyArgs(key domain.AffinityKey) []any {
	return []any{key.TenantID, key.ProfileID, key.SubjectID, key.JourneyMapID, key.JourneyStageID, key.ModelID}
}

func (r *AffinityRepository) Get(ctx context.Context, key domain.AffinityKey) (*domain.AffinityRecord, error) {
	var rec domain.AffinityRecord
	err := r.DB.WithContext(ctx).
		Where(keyCondition, keyArgs(key)...).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile_subject_affinity: %w", err)
	}

	return &rec, nil
}

func (r *AffinityRepository) UpsertScore(ctx context.Context, key domain.AffinityKey, rawScore, interestScore float64, lastInteractionAt time.Time) error {
	rec := domain.AffinityRecord{
		TenantID:          key.TenantID,
		ProfileID:         key.ProfileID,
		SubjectID:         key.SubjectID,
		JourneyMapID:      key.JourneyMapID,
		JourneyStageID:    key.JourneyStageID,
		ModelID:           key.ModelID,
		RawScore:          rawScore,
		InterestScore:     interestScore,
		LastInteractionAt: lastInteractionAt,
	}

	if err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: keyConflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{
				"raw_score",
				"interest_score",
				"last_interaction_at",
				"updated_at",
			}),
		},
	).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to upsert affinity score: %w", err)
	}

	return nil
}

func (r *AffinityRepository) UpsertDecision(ctx context.Context, key domain.AffinityKey, prediction domain.Prediction, decision domain.Decision) error {
	rec := domain.AffinityRecord{
		TenantID:              key.TenantID,
		ProfileID:             key.ProfileID,
		SubjectID:             key.SubjectID,
		JourneyMapID:          key.JourneyMapID,
		JourneyStageID:        key.JourneyStageID,
		ModelID:               key.ModelID,
		PredictedUserEvent:    string(prediction.Event),
		PredictionProbability: prediction.Probability,
		NextBestAction:        string(decision.Action),
		NBAConfidence:         decision.Confidence,
	}

	if err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: keyConflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{
				"predicted_user_event",
				"prediction_probability",
				"next_best_action",
				"nba_confidence",
				"updated_at",
			}),
		},
	).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to upsert affinity decision: %w", err)
	}

	return nil
}

func (r *AffinityRepository) ScanByProfile(ctx context.Context, tenantID uuid.UUID, profileID string) ([]domain.AffinityRecord, error) {
	var records []domain.AffinityRecord
	err := r.DB.WithContext(ctx).
		Where("tenant_id = ? AND profile_id = ?", tenantID, profileID).
		Order("interest_score DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan affinity by profile: %w", err)
	}

	return records, nil
}

func (r *AffinityRepository) ScanByMinScore(ctx context.Context, tenantID uuid.UUID, minScore float64, limit int) ([]domain.AffinityRecord, error) {
	var records []domain.AffinityRecord
	err := r.DB.WithContext(ctx).
		Where("tenant_id = ? AND interest_score >= ?", tenantID, minScore).
		Order("interest_score DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan affinity by min score: %w", err)
	}

	return records, nil
}

func (r *AffinityRepository) FindInterested(ctx context.Context, tenantID uuid.UUID, subjectID string, minScore float64, limit int) ([]domain.InterestedProfile, error) {
	var rows []domain.InterestedProfile
	err := r.DB.WithContext(ctx).
		Model(&domain.AffinityRecord{}).
		Select("profile_id, interest_score, raw_score").
		Where("tenant_id = ? AND subject_id = ? AND interest_score >= ?", tenantID, subjectID, minScore).
		Order("interest_score DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query interested profiles: %w", err)
	}

	return rows, nil
}

func (r *AffinityRepository) DeleteBelow(ctx context.Context, threshold float64) (int64, error) {
	result := r.DB.WithContext(ctx).
		Where("interest_score < ?", threshold).
		Delete(&domain.AffinityRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete decayed affinity rows: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (r *AffinityRepository) Transaction(ctx context.Context, fn func(affinity.AffinityRepository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AffinityRepository{DB: tx})
	})
}
