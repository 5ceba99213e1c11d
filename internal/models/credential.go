package models

import (
	"time"
)

// CredentialScope identifies the owner kind of an OAuth credential.
type CredentialScope string

const (
	// ScopeTenant is the tenant-level mailbox credential.
	ScopeTenant CredentialScope = "tenant"
	// ScopeUser is the per-user calendar credential.
	ScopeUser CredentialScope = "user"
)

// Credential holds the OAuth tokens for one scope (a tenant's mailbox or a
// user's calendar). The row is kept after a revocation with all token fields
// cleared, so the application can show "needs reconnection".
type Credential struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	ScopeType      CredentialScope `gorm:"not null;size:16;uniqueIndex:idx_credential_scope" json:"scope_type"`
	ScopeID        string          `gorm:"not null;size:36;uniqueIndex:idx_credential_scope" json:"scope_id"`
	AccessToken    string          `gorm:"type:text" json:"-"`
	RefreshToken   string          `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	ConnectedEmail string          `gorm:"size:255" json:"connected_email,omitempty"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Credential
func (Credential) TableName() string {
	return "credentials"
}

// Connected reports whether the scope currently holds a usable refresh token.
// A credential without a refresh token is disconnected and is never polled.
func (c *Credential) Connected() bool {
	return c != nil && c.RefreshToken != ""
}

// Clear wipes all token material in place. Used when the provider rejects the
// refresh token or reports an authentication error during polling.
func (c *Credential) Clear() {
	c.AccessToken = ""
	c.RefreshToken = ""
	c.ExpiresAt = nil
	c.ConnectedEmail = ""
}
