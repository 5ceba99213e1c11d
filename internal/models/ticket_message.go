package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageKind classifies a ticket message. Values are fixed at construction
// through the New* constructors below; handlers never assemble the struct
// field by field.
type MessageKind string

const (
	// MessageEmailIn is an inbound customer email pulled from the provider.
	MessageEmailIn MessageKind = "email_in"
	// MessageEmailOut is an outbound agent reply.
	MessageEmailOut MessageKind = "email_out"
	// MessageNote is an internal agent note, invisible to the customer.
	MessageNote MessageKind = "note"
	// MessageSystem is a machine-generated event entry.
	MessageSystem MessageKind = "system"
)

var (
	errMissingExternalID = errors.New("inbound email message requires an external message id")
	errMissingSender     = errors.New("inbound email message requires a sender address")
	errMissingAuthor     = errors.New("outbound message requires an author address")
)

// TicketMessage is one entry in a ticket's conversation thread.
// ExternalMessageID carries the provider's immutable message identifier for
// inbound mail and is the sole idempotency guard against re-ingestion; it is
// null for every other kind.
type TicketMessage struct {
	ID                string      `gorm:"primaryKey;size:36" json:"id"`
	TicketID          string      `gorm:"not null;index;size:36" json:"ticket_id"`
	Kind              MessageKind `gorm:"not null;size:16" json:"kind"`
	Body              string      `gorm:"type:text" json:"body"`
	FromEmail         string      `gorm:"size:255" json:"from_email,omitempty"`
	FromName          string      `gorm:"size:255" json:"from_name,omitempty"`
	ExternalMessageID *string     `gorm:"uniqueIndex;size:255" json:"external_message_id,omitempty"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`

	Ticket Ticket `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for TicketMessage
func (TicketMessage) TableName() string {
	return "ticket_messages"
}

// NewInboundEmail builds an email_in message. The provider message id and the
// sender address are mandatory; everything else is carried as-is.
func NewInboundEmail(ticketID, body, fromEmail, fromName, externalID string) (*TicketMessage, error) {
	if externalID == "" {
		return nil, errMissingExternalID
	}
	if fromEmail == "" {
		return nil, errMissingSender
	}
	return &TicketMessage{
		ID:                uuid.NewString(),
		TicketID:          ticketID,
		Kind:              MessageEmailIn,
		Body:              body,
		FromEmail:         fromEmail,
		FromName:          fromName,
		ExternalMessageID: &externalID,
	}, nil
}

// NewOutboundEmail builds an email_out message authored by an agent.
func NewOutboundEmail(ticketID, body, agentEmail, agentName string) (*TicketMessage, error) {
	if agentEmail == "" {
		return nil, errMissingAuthor
	}
	return &TicketMessage{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Kind:      MessageEmailOut,
		Body:      body,
		FromEmail: agentEmail,
		FromName:  agentName,
	}, nil
}

// NewNote builds an internal note.
func NewNote(ticketID, body, agentEmail, agentName string) (*TicketMessage, error) {
	if agentEmail == "" {
		return nil, errMissingAuthor
	}
	return &TicketMessage{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Kind:      MessageNote,
		Body:      body,
		FromEmail: agentEmail,
		FromName:  agentName,
	}, nil
}

// NewSystemNote builds a machine-generated entry.
func NewSystemNote(ticketID, body string) *TicketMessage {
	return &TicketMessage{
		ID:       uuid.NewString(),
		TicketID: ticketID,
		Kind:     MessageSystem,
		Body:     body,
	}
}
