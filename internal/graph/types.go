package graph

import (
	"strings"
	"time"
)

// Token is the provider's OAuth2 token-endpoint response. RefreshToken may be
// empty: the provider does not always rotate it, in which case the caller
// keeps the previous one.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// EmailAddress is a name/address pair as the provider renders senders.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Recipient wraps an email address the way the message payload nests it.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// ItemBody is a message body with its content type ("text" or "html").
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Message is one inbound mailbox message.
type Message struct {
	ID               string    `json:"id"`
	Subject          string    `json:"subject"`
	BodyPreview      string    `json:"bodyPreview"`
	Body             ItemBody  `json:"body"`
	From             Recipient `json:"from"`
	ReceivedDateTime time.Time `json:"receivedDateTime"`
	ConversationID   string    `json:"conversationId"`
	IsRead           bool      `json:"isRead"`
}

// SenderAddress returns the sender's address, lowercased.
func (m *Message) SenderAddress() string {
	return strings.ToLower(strings.TrimSpace(m.From.EmailAddress.Address))
}

// SenderName returns the sender's display name.
func (m *Message) SenderName() string {
	return strings.TrimSpace(m.From.EmailAddress.Name)
}

// DateTimeTimeZone is the provider's zoned timestamp for calendar events:
// a local wall-clock string plus an IANA/Windows zone name.
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Time parses the wall-clock value in its zone. Fractional seconds are
// dropped; an unknown zone name falls back to UTC.
func (d DateTimeTimeZone) Time() (time.Time, error) {
	value := d.DateTime
	if dot := strings.Index(value, "."); dot >= 0 {
		value = value[:dot]
	}
	loc := time.UTC
	if d.TimeZone != "" {
		if parsed, err := time.LoadLocation(d.TimeZone); err == nil {
			loc = parsed
		}
	}
	return time.ParseInLocation("2006-01-02T15:04:05", value, loc)
}

// Location is a calendar event location.
type Location struct {
	DisplayName string `json:"displayName"`
}

// Event is one calendar event from a calendar-view query. Events are
// consumed per poll and never persisted.
type Event struct {
	ID       string           `json:"id"`
	Subject  string           `json:"subject"`
	Start    DateTimeTimeZone `json:"start"`
	End      DateTimeTimeZone `json:"end"`
	Location Location         `json:"location"`
	IsAllDay bool             `json:"isAllDay"`
}

// Profile identifies the authorized mailbox/calendar owner.
type Profile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Address returns the best-known email address for the profile.
func (p *Profile) Address() string {
	if p.Mail != "" {
		return strings.ToLower(p.Mail)
	}
	return strings.ToLower(p.UserPrincipalName)
}

// listResponse is the provider's collection envelope.
type listResponse[T any] struct {
	Value []T `json:"value"`
}
