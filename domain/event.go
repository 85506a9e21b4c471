package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BehavioralEvent is one append-only tracking event. The payload is
// schema-flexible jsonb; the engine only requires a non-empty "subject_id"
// attribute, everything else is passed through untouched.
type BehavioralEvent struct {
	EventID   uint64            `gorm:"column:event_id;primaryKey;autoIncrement" json:"event_id"`
	TenantID  uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null;index:idx_event_tenant_time" json:"tenant_id"`
	ProfileID string            `gorm:"column:profile_id;size:100;not null" json:"profile_id"`
	EventType string            `gorm:"column:event_type;not null" json:"event_type"`
	MetaData  datatypes.JSONMap `gorm:"column:meta_data;type:jsonb" json:"meta_data"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime;index:idx_event_tenant_time" json:"created_at"`
}

func (BehavioralEvent) TableName() string {
	return "behavioral_events"
}

// SubjectID pulls the subject attribute out of the payload. Empty string means
// the event carries no subject and is noise for the scoring pipeline.
func (e BehavioralEvent) SubjectID() string {
	if e.MetaData == nil {
		return ""
	}
	if s, ok := e.MetaData["subject_id"].(string); ok {
		return s
	}
	return ""
}

// EventWeight maps an event type to the number of raw points it contributes
// to the affinity accumulator.
type EventWeight struct {
	EventName string  `gorm:"column:event_name;primaryKey" json:"event_name"`
	Weight    float64 `gorm:"column:weight;not null" json:"weight"`
}

func (EventWeight) TableName() string {
	return "event_weights"
}
