package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/bizdesk/bizdesk-backend/internal/validator"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientRepository defines the interface for client (customer) data access
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id string) (*models.Client, error)
	// FindByEmail resolves a client by exact email match within a tenant.
	// Returns ErrNotFound when no client matches; ingestion treats that as
	// "ticket has no linked client", not as a failure.
	FindByEmail(ctx context.Context, tenantID, email string) (*models.Client, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]models.Client, int64, error)
}

// clientRepository implements ClientRepository using GORM
type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new ClientRepository instance
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

// Create creates a new client
func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	client.Email = validator.NormalizeEmail(client.Email)
	result := r.db.WithContext(ctx).Create(client)
	if result.Error != nil {
		return fmt.Errorf("failed to create client: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a client by its ID
func (r *clientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	result := r.db.WithContext(ctx).First(&client, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client by ID: %w", result.Error)
	}
	return &client, nil
}

// FindByEmail resolves a client by exact email match within a tenant
func (r *clientRepository) FindByEmail(ctx context.Context, tenantID, email string) (*models.Client, error) {
	var client models.Client
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, validator.NormalizeEmail(email)).
		First(&client)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find client by email: %w", result.Error)
	}
	return &client, nil
}

// List retrieves clients for a tenant with pagination
func (r *clientRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]models.Client, int64, error) {
	limit, offset = validator.ValidatePagination(limit, offset)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Client{}).
		Where("tenant_id = ?", tenantID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	var clients []models.Client
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Limit(limit).Offset(offset).
		Find(&clients)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", result.Error)
	}
	return clients, total, nil
}
