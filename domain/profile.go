package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SegmentMembership is one entry of the denormalized segments list carried on
// every profile row. There is no dedicated segment table; resolving a segment
// name means scanning profiles for a matching entry.
type SegmentMembership struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Profile struct {
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;primaryKey" json:"tenant_id"`
	ProfileID string    `gorm:"column:profile_id;size:100;primaryKey" json:"profile_id"`

	Email     string `gorm:"column:email" json:"email"`
	FirstName string `gorm:"column:first_name" json:"first_name"`
	LastName  string `gorm:"column:last_name" json:"last_name"`

	Segments      datatypes.JSON    `gorm:"column:segments;type:jsonb" json:"segments"`
	RawAttributes datatypes.JSONMap `gorm:"column:raw_attributes;type:jsonb" json:"raw_attributes"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string {
	return "cdp_profiles"
}

// SegmentNames decodes the denormalized membership list into persona names.
// A malformed segments payload yields an empty list rather than an error; the
// decision engines treat missing personas as the passive default.
func (p Profile) SegmentNames() []string {
	var memberships []SegmentMembership
	if len(p.Segments) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.Segments, &memberships); err != nil {
		return nil
	}
	names := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}
