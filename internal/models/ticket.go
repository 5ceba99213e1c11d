package models

import (
	"time"
)

// TicketStatus enumerates the lifecycle states of a ticket.
type TicketStatus string

const (
	TicketStatusNew      TicketStatus = "new"
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the status excludes the ticket from
// sender-based thread matching during ingestion.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed || s == TicketStatusResolved
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
)

// Ticket is one support conversation. Created on the first inbound message
// of a thread that has no matching open ticket.
type Ticket struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	TenantID        string         `gorm:"not null;index;size:36" json:"tenant_id"`
	Number          string         `gorm:"uniqueIndex;not null;size:20" json:"number"`
	Subject         string         `gorm:"size:500" json:"subject"`
	SenderEmail     string         `gorm:"not null;index;size:255" json:"sender_email"`
	SenderName      string         `gorm:"size:255" json:"sender_name,omitempty"`
	Status          TicketStatus   `gorm:"not null;size:16;default:new;index" json:"status"`
	Priority        TicketPriority `gorm:"not null;size:16;default:normal" json:"priority"`
	ClientID        *string        `gorm:"size:36;index" json:"client_id,omitempty"`
	ConversationKey string         `gorm:"index;size:255" json:"conversation_key,omitempty"`
	LastActivityAt  time.Time      `gorm:"not null" json:"last_activity_at"`
	FirstResponseAt *time.Time     `json:"first_response_at,omitempty"`
	ResponseCount   int            `gorm:"not null;default:0" json:"response_count"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	Client   *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Messages []TicketMessage `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName returns the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}
