package models

import (
	"time"
)

// User represents an agent within a tenant. Calendar connections are
// authorized per user, not per tenant.
type User struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	TenantID       string    `gorm:"not null;index;size:36" json:"tenant_id"`
	Email          string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name           string    `gorm:"size:255" json:"name"`
	TelegramChatID string    `gorm:"size:64" json:"-"`
	Timezone       string    `gorm:"size:64;default:UTC" json:"timezone"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`

	Tenant Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}
