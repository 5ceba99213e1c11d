package models

import (
	"strings"
	"time"
)

// Tenant represents one company using the back office. Each tenant owns a
// support mailbox connection and a notification channel.
type Tenant struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Name           string    `gorm:"not null;size:255" json:"name"`
	SupportMailbox string    `gorm:"size:255" json:"support_mailbox"`
	TelegramChatID string    `gorm:"size:64" json:"-"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`

	Users []User `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Tenant
func (Tenant) TableName() string {
	return "tenants"
}

// MailboxDomain returns the domain part of the tenant's support mailbox,
// or an empty string when no mailbox is configured.
func (t *Tenant) MailboxDomain() string {
	at := strings.LastIndex(t.SupportMailbox, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(t.SupportMailbox[at+1:])
}
