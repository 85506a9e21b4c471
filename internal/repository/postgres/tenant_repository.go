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

type TenantRepository struct {
	DB *gorm.DB
}

var _ affinity.TenantRepository = (*TenantRepository)(nil)

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{DB: db}
}

func (r *TenantRepository) ResolveTenantID(ctx context.Context, tenantName string) (uuid.UUID, error) {
	var tenant domain.Tenant
	err := r.DB.WithContext(ctx).
		Select("tenant_id").
		First(&tenant, "tenant_name = ?", tenantName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to query tenants: %w", err)
	}

	return tenant.TenantID, nil
}
