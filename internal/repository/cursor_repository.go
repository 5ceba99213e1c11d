package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizdesk/bizdesk-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CursorRepository defines the interface for mail-sync cursor data access
type CursorRepository interface {
	Get(ctx context.Context, tenantID string) (*models.SyncCursor, error)
	// Advance sets the tenant's cursor. Written once per ingestion run, after
	// the whole batch has been processed.
	Advance(ctx context.Context, tenantID string, syncedAt time.Time) error
}

// cursorRepository implements CursorRepository using GORM
type cursorRepository struct {
	db *gorm.DB
}

// NewCursorRepository creates a new CursorRepository instance
func NewCursorRepository(db *gorm.DB) CursorRepository {
	return &cursorRepository{db: db}
}

// Get retrieves the sync cursor for a tenant
func (r *cursorRepository) Get(ctx context.Context, tenantID string) (*models.SyncCursor, error) {
	var cursor models.SyncCursor
	result := r.db.WithContext(ctx).First(&cursor, "tenant_id = ?", tenantID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sync cursor: %w", result.Error)
	}
	return &cursor, nil
}

// Advance upserts the tenant's cursor to the given time
func (r *cursorRepository) Advance(ctx context.Context, tenantID string, syncedAt time.Time) error {
	cursor := models.SyncCursor{TenantID: tenantID, LastSyncedAt: syncedAt}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_synced_at", "updated_at"}),
	}).Create(&cursor)
	if result.Error != nil {
		return fmt.Errorf("failed to advance sync cursor: %w", result.Error)
	}
	return nil
}
