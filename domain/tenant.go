package domain

import (
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	TenantID   uuid.UUID `gorm:"column:tenant_id;type:uuid;primaryKey" json:"tenant_id"`
	TenantName string    `gorm:"column:tenant_name;unique;not null" json:"tenant_name"`
	Status     string    `gorm:"column:status;default:active" json:"status"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}
