package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantRepository defines the interface for tenant data access
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	// ListWithMailbox returns tenants that have a support mailbox configured
	// and are therefore candidates for mail ingestion.
	ListWithMailbox(ctx context.Context) ([]models.Tenant, error)
}

// tenantRepository implements TenantRepository using GORM
type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new TenantRepository instance
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// Create creates a new tenant
func (r *tenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	result := r.db.WithContext(ctx).Create(tenant)
	if result.Error != nil {
		return fmt.Errorf("failed to create tenant: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a tenant by its ID
func (r *tenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	result := r.db.WithContext(ctx).First(&tenant, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant by ID: %w", result.Error)
	}
	return &tenant, nil
}

// ListWithMailbox returns tenants configured for mail ingestion
func (r *tenantRepository) ListWithMailbox(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	result := r.db.WithContext(ctx).
		Where("support_mailbox <> ''").
		Find(&tenants)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", result.Error)
	}
	return tenants, nil
}
