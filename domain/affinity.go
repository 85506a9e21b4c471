package domain

import (
	"time"

	"github.com/google/uuid"
)

// AffinityKey is the full composite identity of one affinity row. The journey
// triple (map, stage, model) partitions independent scoring contexts for the
// same profile/subject pair, e.g. two campaign funnels scoring the same ticker.
type AffinityKey struct {
	TenantID       uuid.UUID
	ProfileID      string
	SubjectID      string
	JourneyMapID   string
	JourneyStageID string
	ModelID        string
}

const (
	DefaultJourneyMapID   = "default"
	DefaultJourneyStageID = "default"
	DefaultModelID        = "decay-v1"
)

// DefaultAffinityKey fills the journey triple with the engine defaults.
func DefaultAffinityKey(tenantID uuid.UUID, profileID, subjectID string) AffinityKey {
	return AffinityKey{
		TenantID:       tenantID,
		ProfileID:      profileID,
		SubjectID:      subjectID,
		JourneyMapID:   DefaultJourneyMapID,
		JourneyStageID: DefaultJourneyStageID,
		ModelID:        DefaultModelID,
	}
}

type AffinityRecord struct {
	TenantID       uuid.UUID `gorm:"column:tenant_id;type:uuid;primaryKey" json:"tenant_id"`
	ProfileID      string    `gorm:"column:profile_id;size:100;primaryKey" json:"profile_id"`
	SubjectID      string    `gorm:"column:subject_id;size:64;primaryKey;index:idx_affinity_subject" json:"subject_id"`
	JourneyMapID   string    `gorm:"column:journey_map_id;size:64;primaryKey" json:"journey_map_id"`
	JourneyStageID string    `gorm:"column:journey_stage_id;size:64;primaryKey" json:"journey_stage_id"`
	ModelID        string    `gorm:"column:model_id;size:64;primaryKey" json:"model_id"`

	// RawScore is the unbounded decayed accumulator of event weights.
	// InterestScore is always derived from it as raw/(raw+K), never written
	// independently.
	RawScore      float64 `gorm:"column:raw_score;not null;default:0" json:"raw_score"`
	InterestScore float64 `gorm:"column:interest_score;not null;default:0;index:idx_affinity_interest" json:"interest_score"`

	LastInteractionAt time.Time `gorm:"column:last_interaction_at" json:"last_interaction_at"`

	// Decision columns are an artifact of the last batch run, kept for audit.
	// The read path recomputes decisions live and never serves these.
	PredictedUserEvent    string  `gorm:"column:predicted_user_event" json:"predicted_user_event"`
	PredictionProbability float64 `gorm:"column:prediction_probability" json:"prediction_probability"`
	NextBestAction        string  `gorm:"column:next_best_action" json:"next_best_action"`
	NBAConfidence         float64 `gorm:"column:nba_confidence" json:"nba_confidence"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (AffinityRecord) TableName() string {
	return "profile_subject_affinity"
}

// AggregatedInterest is one (profile, subject) group produced by the event
// aggregation query: summed weights plus the newest event timestamp in the
// window.
type AggregatedInterest struct {
	ProfileID     string    `json:"profile_id"`
	SubjectID     string    `json:"subject_id"`
	IncomingScore float64   `json:"incoming_score"`
	LastEventTime time.Time `json:"last_event_time"`
}

// InterestedProfile is one row of the audience query ("who likes subject X").
type InterestedProfile struct {
	ProfileID     string  `json:"profile_id"`
	InterestScore float64 `json:"interest_score"`
	RawScore      float64 `json:"raw_score"`
}
