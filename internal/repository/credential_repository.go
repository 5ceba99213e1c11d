package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CredentialRepository defines the interface for OAuth credential data access
type CredentialRepository interface {
	GetByScope(ctx context.Context, scopeType models.CredentialScope, scopeID string) (*models.Credential, error)
	// Upsert persists the credential for its scope, inserting or replacing the
	// existing row. Called on every successful refresh so a concurrent caller
	// for the same scope sees the new token before it is used twice.
	Upsert(ctx context.Context, cred *models.Credential) error
	// Clear wipes all token fields for a scope but keeps the row. No-op when
	// the scope has no credential.
	Clear(ctx context.Context, scopeType models.CredentialScope, scopeID string) error
	// ListConnected returns all credentials of the given scope type that still
	// hold a refresh token.
	ListConnected(ctx context.Context, scopeType models.CredentialScope) ([]models.Credential, error)
	Delete(ctx context.Context, scopeType models.CredentialScope, scopeID string) error
}

// credentialRepository implements CredentialRepository using GORM
type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new CredentialRepository instance
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

// GetByScope retrieves the credential for a scope
func (r *credentialRepository) GetByScope(ctx context.Context, scopeType models.CredentialScope, scopeID string) (*models.Credential, error) {
	var cred models.Credential
	result := r.db.WithContext(ctx).
		Where("scope_type = ? AND scope_id = ?", scopeType, scopeID).
		First(&cred)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", result.Error)
	}
	return &cred, nil
}

// Upsert inserts or updates the credential for its scope
func (r *credentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope_type"}, {Name: "scope_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "expires_at", "connected_email", "updated_at",
		}),
	}).Create(cred)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert credential: %w", result.Error)
	}
	return nil
}

// Clear wipes the token fields for a scope while keeping the row
func (r *credentialRepository) Clear(ctx context.Context, scopeType models.CredentialScope, scopeID string) error {
	result := r.db.WithContext(ctx).Model(&models.Credential{}).
		Where("scope_type = ? AND scope_id = ?", scopeType, scopeID).
		Updates(map[string]interface{}{
			"access_token":    "",
			"refresh_token":   "",
			"expires_at":      nil,
			"connected_email": "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to clear credential: %w", result.Error)
	}
	return nil
}

// ListConnected returns credentials of a scope type that hold a refresh token
func (r *credentialRepository) ListConnected(ctx context.Context, scopeType models.CredentialScope) ([]models.Credential, error) {
	var creds []models.Credential
	result := r.db.WithContext(ctx).
		Where("scope_type = ? AND refresh_token <> ''", scopeType).
		Find(&creds)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list connected credentials: %w", result.Error)
	}
	return creds, nil
}

// Delete removes the credential row for a scope
func (r *credentialRepository) Delete(ctx context.Context, scopeType models.CredentialScope, scopeID string) error {
	result := r.db.WithContext(ctx).
		Where("scope_type = ? AND scope_id = ?", scopeType, scopeID).
		Delete(&models.Credential{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete credential: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
