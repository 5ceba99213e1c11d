package models

import (
	"time"
)

// Client is a customer record within a tenant. Inbound tickets are linked to
// a client by exact sender-email match when one exists.
type Client struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TenantID  string    `gorm:"not null;index;size:36" json:"tenant_id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Email     string    `gorm:"index;size:255" json:"email"`
	Company   string    `gorm:"size:255" json:"company,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Tenant Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Client
func (Client) TableName() string {
	return "clients"
}
