package models

import (
	"time"
)

// SyncCursor marks the end of the last fully processed mail-ingestion window
// for a tenant. It is written once per run, after the whole batch, never
// per message; a crash mid-run re-fetches the same window and relies on the
// external-message-id uniqueness for dedup.
type SyncCursor struct {
	TenantID     string    `gorm:"primaryKey;size:36" json:"tenant_id"`
	LastSyncedAt time.Time `gorm:"not null" json:"last_synced_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for SyncCursor
func (SyncCursor) TableName() string {
	return "sync_cursors"
}
