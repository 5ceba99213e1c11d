package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/bizdesk/bizdesk-backend/internal/validator"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TicketNumberPrefix is the human-facing ticket number prefix. The full
// number is prefix + year + zero-padded sequence, e.g. "T-2026-0042".
const TicketNumberPrefix = "T"

// TicketRepository defines the interface for ticket and ticket-message data access
type TicketRepository interface {
	// CreateWithFirstMessage allocates the next sequential ticket number for
	// the current year and creates the ticket together with its first message
	// in one transaction. The number read-then-increment runs under a row
	// lock on PostgreSQL so two concurrent runs cannot allocate the same
	// number.
	CreateWithFirstMessage(ctx context.Context, ticket *models.Ticket, msg *models.TicketMessage) error
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*models.Ticket, error)
	// FindByConversationKey returns the most recently active ticket carrying
	// the provider's conversation id, regardless of status.
	FindByConversationKey(ctx context.Context, tenantID, conversationKey string) (*models.Ticket, error)
	// FindOpenBySender returns the most recently active non-terminal ticket
	// from the given sender.
	FindOpenBySender(ctx context.Context, tenantID, senderEmail string) (*models.Ticket, error)
	MessageExists(ctx context.Context, externalMessageID string) (bool, error)
	// AppendMessage stores a message and applies the given ticket field
	// updates in one transaction.
	AppendMessage(ctx context.Context, msg *models.TicketMessage, ticketUpdates map[string]interface{}) error
	Update(ctx context.Context, ticket *models.Ticket) error
	List(ctx context.Context, tenantID string, status models.TicketStatus, limit, offset int) ([]models.Ticket, int64, error)
}

// ticketRepository implements TicketRepository using GORM
type ticketRepository struct {
	db *gorm.DB
}

// NewTicketRepository creates a new TicketRepository instance
func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

// CreateWithFirstMessage creates a ticket with an allocated number and its first message
func (r *ticketRepository) CreateWithFirstMessage(ctx context.Context, ticket *models.Ticket, msg *models.TicketMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextTicketNumber(tx, time.Now().UTC())
		if err != nil {
			return err
		}

		if ticket.ID == "" {
			ticket.ID = uuid.NewString()
		}
		ticket.Number = number
		ticket.SenderEmail = validator.NormalizeEmail(ticket.SenderEmail)
		if err := tx.Create(ticket).Error; err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("ticket number '%s' already taken: %w", number, ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to create ticket: %w", err)
		}

		msg.TicketID = ticket.ID
		if err := tx.Create(msg).Error; err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("message already ingested: %w", ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to create first message: %w", err)
		}
		return nil
	})
}

// nextTicketNumber computes max+1 under the yearly prefix. On PostgreSQL the
// scan runs FOR UPDATE so concurrent allocations serialize; SQLite (tests)
// has no row locks and relies on its single-writer model instead.
func nextTicketNumber(tx *gorm.DB, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", TicketNumberPrefix, now.Year())

	query := tx.Model(&models.Ticket{}).Where("number LIKE ?", prefix+"%")
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var last models.Ticket
	err := query.Order("number DESC").First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Sprintf("%s0001", prefix), nil
		}
		return "", fmt.Errorf("failed to read last ticket number: %w", err)
	}

	var seq int
	if _, err := fmt.Sscanf(last.Number, prefix+"%04d", &seq); err != nil {
		return "", fmt.Errorf("malformed ticket number '%s': %w", last.Number, err)
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// GetByID retrieves a ticket with its messages, newest last
func (r *ticketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	result := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("ticket_messages.created_at ASC")
		}).
		Preload("Client").
		First(&ticket, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket by ID: %w", result.Error)
	}
	return &ticket, nil
}

// GetByNumber retrieves a ticket by its human-facing number
func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	var ticket models.Ticket
	result := r.db.WithContext(ctx).First(&ticket, "number = ?", number)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket by number: %w", result.Error)
	}
	return &ticket, nil
}

// FindByConversationKey finds the latest ticket for a provider conversation id
func (r *ticketRepository) FindByConversationKey(ctx context.Context, tenantID, conversationKey string) (*models.Ticket, error) {
	if conversationKey == "" {
		return nil, ErrNotFound
	}
	var ticket models.Ticket
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND conversation_key = ?", tenantID, conversationKey).
		Order("last_activity_at DESC").
		First(&ticket)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find ticket by conversation key: %w", result.Error)
	}
	return &ticket, nil
}

// FindOpenBySender finds the latest non-terminal ticket from a sender
func (r *ticketRepository) FindOpenBySender(ctx context.Context, tenantID, senderEmail string) (*models.Ticket, error) {
	var ticket models.Ticket
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sender_email = ? AND status NOT IN ?",
			tenantID, validator.NormalizeEmail(senderEmail),
			[]models.TicketStatus{models.TicketStatusClosed, models.TicketStatusResolved}).
		Order("last_activity_at DESC").
		First(&ticket)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open ticket by sender: %w", result.Error)
	}
	return &ticket, nil
}

// MessageExists reports whether a message with this external id was already ingested
func (r *ticketRepository) MessageExists(ctx context.Context, externalMessageID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.TicketMessage{}).
		Where("external_message_id = ?", externalMessageID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check message existence: %w", result.Error)
	}
	return count > 0, nil
}

// AppendMessage stores a message and updates its ticket in one transaction
func (r *ticketRepository) AppendMessage(ctx context.Context, msg *models.TicketMessage, ticketUpdates map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("message already ingested: %w", ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to append message: %w", err)
		}
		if len(ticketUpdates) > 0 {
			if err := tx.Model(&models.Ticket{}).
				Where("id = ?", msg.TicketID).
				Updates(ticketUpdates).Error; err != nil {
				return fmt.Errorf("failed to update ticket: %w", err)
			}
		}
		return nil
	})
}

// Update saves all ticket fields
func (r *ticketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	result := r.db.WithContext(ctx).Save(ticket)
	if result.Error != nil {
		return fmt.Errorf("failed to update ticket: %w", result.Error)
	}
	return nil
}

// List retrieves tickets for a tenant, optionally filtered by status
func (r *ticketRepository) List(ctx context.Context, tenantID string, status models.TicketStatus, limit, offset int) ([]models.Ticket, int64, error) {
	limit, offset = validator.ValidatePagination(limit, offset)

	countQuery := r.db.WithContext(ctx).Model(&models.Ticket{}).Where("tenant_id = ?", tenantID)
	listQuery := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		countQuery = countQuery.Where("status = ?", status)
		listQuery = listQuery.Where("status = ?", status)
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	var tickets []models.Ticket
	result := listQuery.
		Order("last_activity_at DESC").
		Limit(limit).Offset(offset).
		Find(&tickets)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", result.Error)
	}
	return tickets, total, nil
}
