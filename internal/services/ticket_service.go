package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
	"gorm.io/gorm"
)

// agentTransitions is the set of status changes an agent may perform.
// closed -> open is deliberately absent: the only way back up from closed is
// a fresh inbound message, handled by AppendInbound.
var agentTransitions = map[models.TicketStatus][]models.TicketStatus{
	models.TicketStatusNew:      {models.TicketStatusOpen, models.TicketStatusClosed},
	models.TicketStatusOpen:     {models.TicketStatusPending, models.TicketStatusResolved, models.TicketStatusClosed},
	models.TicketStatusPending:  {models.TicketStatusOpen, models.TicketStatusResolved, models.TicketStatusClosed},
	models.TicketStatusResolved: {models.TicketStatusClosed},
	models.TicketStatusClosed:   {},
}

// TicketService owns the ticket conversation state machine: which status
// transitions are legal and how counters move as messages are appended.
type TicketService struct {
	tickets repository.TicketRepository
	now     func() time.Time
}

// NewTicketService creates a TicketService
func NewTicketService(tickets repository.TicketRepository) *TicketService {
	return &TicketService{
		tickets: tickets,
		now:     time.Now,
	}
}

// AppendInbound attaches an inbound email to an existing ticket. A closed
// ticket reopens; resolved and other states keep their status. Activity and
// response counters always move.
func (s *TicketService) AppendInbound(ctx context.Context, ticket *models.Ticket, msg *models.TicketMessage) error {
	if msg.Kind != models.MessageEmailIn {
		return fmt.Errorf("%w: AppendInbound accepts only inbound email messages", apperrors.ErrInvalidInput)
	}

	updates := map[string]interface{}{
		"last_activity_at": s.now().UTC(),
		"response_count":   gorm.Expr("response_count + 1"),
	}
	if ticket.Status == models.TicketStatusClosed {
		updates["status"] = models.TicketStatusOpen
	}

	msg.TicketID = ticket.ID
	if err := s.tickets.AppendMessage(ctx, msg, updates); err != nil {
		return err
	}
	return nil
}

// RecordReply appends an agent's outbound reply. The first reply ever sets
// firstResponseAt, exactly once; a ticket still in "new" moves to "open".
func (s *TicketService) RecordReply(ctx context.Context, ticketID, agentEmail, agentName, body string) (*models.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}

	msg, err := models.NewOutboundEmail(ticket.ID, body, agentEmail, agentName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, err.Error())
	}

	now := s.now().UTC()
	updates := map[string]interface{}{
		"last_activity_at": now,
		"response_count":   gorm.Expr("response_count + 1"),
	}
	if ticket.FirstResponseAt == nil {
		updates["first_response_at"] = now
	}
	if ticket.Status == models.TicketStatusNew {
		updates["status"] = models.TicketStatusOpen
	}

	if err := s.tickets.AppendMessage(ctx, msg, updates); err != nil {
		return nil, err
	}
	return msg, nil
}

// AddNote appends an internal note. Notes count as activity but never touch
// status or firstResponseAt.
func (s *TicketService) AddNote(ctx context.Context, ticketID, agentEmail, agentName, body string) (*models.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}

	msg, err := models.NewNote(ticket.ID, body, agentEmail, agentName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, err.Error())
	}

	updates := map[string]interface{}{
		"last_activity_at": s.now().UTC(),
		"response_count":   gorm.Expr("response_count + 1"),
	}
	if err := s.tickets.AppendMessage(ctx, msg, updates); err != nil {
		return nil, err
	}
	return msg, nil
}

// ChangeStatus performs an agent-driven status transition. Setting the
// current status again is a no-op.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID string, target models.TicketStatus) (*models.Ticket, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status '%s'", apperrors.ErrInvalidInput, target)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}

	if ticket.Status == target {
		return ticket, nil
	}
	if !transitionAllowed(ticket.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, ticket.Status, target)
	}

	ticket.Status = target
	ticket.LastActivityAt = s.now().UTC()
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func transitionAllowed(from, to models.TicketStatus) bool {
	for _, allowed := range agentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
