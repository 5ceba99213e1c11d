package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
	"github.com/bizdesk/bizdesk-backend/internal/graph"
	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/bizdesk/bizdesk-backend/internal/notify"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
	"github.com/bizdesk/bizdesk-backend/internal/validator"
)

const (
	// mailPageSize is the fixed fetch cap per ingestion run.
	mailPageSize = 50
	// scheduledLookback bounds the query window for runs that have a cursor,
	// so a long outage cannot produce an unbounded backlog query.
	scheduledLookback = 24 * time.Hour
	// firstRunLookback is the window for a tenant that has never synced.
	firstRunLookback = 7 * 24 * time.Hour
)

// MailSyncResult reports the outcome of one ingestion run. Skipped covers
// self-sent mail, already-ingested messages, and per-item failures; none of
// those abort the batch.
type MailSyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// MailSyncService pulls new inbound mail for a tenant and turns it into
// threaded ticket conversations with at-most-once ingestion semantics.
type MailSyncService struct {
	tokens   *TokenService
	ticketSM *TicketService
	provider graph.Client
	tickets  repository.TicketRepository
	clients  repository.ClientRepository
	cursors  repository.CursorRepository
	notifier notify.Notifier
	log      *slog.Logger

	selfDomainFilter bool
	now              func() time.Time
}

// NewMailSyncService creates a MailSyncService
func NewMailSyncService(
	tokens *TokenService,
	ticketSM *TicketService,
	provider graph.Client,
	tickets repository.TicketRepository,
	clients repository.ClientRepository,
	cursors repository.CursorRepository,
	notifier notify.Notifier,
	log *slog.Logger,
	selfDomainFilter bool,
) *MailSyncService {
	return &MailSyncService{
		tokens:           tokens,
		ticketSM:         ticketSM,
		provider:         provider,
		tickets:          tickets,
		clients:          clients,
		cursors:          cursors,
		notifier:         notifier,
		log:              log,
		selfDomainFilter: selfDomainFilter,
		now:              time.Now,
	}
}

// RunMailSync executes one ingestion run for a tenant. Safe to invoke
// repeatedly: re-fetched messages are recognized by their external message id
// and skipped. The cursor only advances after the whole batch was attempted,
// and never advances on "not connected" or on a provider auth failure.
func (s *MailSyncService) RunMailSync(ctx context.Context, tenant *models.Tenant) (*MailSyncResult, error) {
	result := &MailSyncResult{}

	token, err := s.tokens.GetValidToken(ctx, models.ScopeTenant, tenant.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotConnected) {
			return result, apperrors.ErrNotConnected
		}
		return result, fmt.Errorf("mail sync for tenant %s: %w", tenant.ID, err)
	}

	now := s.now().UTC()
	windowStart := s.windowStart(ctx, tenant.ID, now)

	messages, err := s.provider.ListMessages(ctx, token, windowStart, mailPageSize)
	if err != nil {
		if s.handleAuthError(ctx, tenant.ID, err) {
			return result, apperrors.ErrAuthRevoked
		}
		return result, fmt.Errorf("failed to fetch messages: %w", err)
	}

	// Sequential on purpose: later messages of the same run must see tickets
	// created by earlier ones, or one conversation would fan out into
	// several tickets.
	for i := range messages {
		outcome, err := s.ingestMessage(ctx, token, tenant, &messages[i])
		if err != nil {
			if s.handleAuthError(ctx, tenant.ID, err) {
				// Token died mid-run. Stop without advancing the cursor; the
				// next run re-fetches the window and dedups.
				return result, apperrors.ErrAuthRevoked
			}
			s.log.Error("failed to ingest message",
				slog.String("tenant_id", tenant.ID),
				slog.String("external_message_id", messages[i].ID),
				slog.String("error", err.Error()))
			result.Skipped++
			continue
		}
		switch outcome {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		case outcomeSkipped:
			result.Skipped++
		}
	}

	if err := s.cursors.Advance(ctx, tenant.ID, now); err != nil {
		return result, fmt.Errorf("failed to advance cursor: %w", err)
	}

	s.log.Info("mail sync completed",
		slog.String("tenant_id", tenant.ID),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

// windowStart computes the fetch window start per the cursor rules.
func (s *MailSyncService) windowStart(ctx context.Context, tenantID string, now time.Time) time.Time {
	cursor, err := s.cursors.Get(ctx, tenantID)
	if err != nil {
		// First-ever run (or unreadable cursor): look back a full week.
		return now.Add(-firstRunLookback)
	}
	floor := now.Add(-scheduledLookback)
	if cursor.LastSyncedAt.After(floor) {
		return cursor.LastSyncedAt
	}
	return floor
}

type ingestOutcome int

const (
	outcomeSkipped ingestOutcome = iota
	outcomeCreated
	outcomeUpdated
)

func (s *MailSyncService) ingestMessage(ctx context.Context, token string, tenant *models.Tenant, msg *graph.Message) (ingestOutcome, error) {
	sender := msg.SenderAddress()
	if sender == "" {
		return outcomeSkipped, nil
	}

	// Self-sent noise guard: auto-replies and loops from the tenant's own
	// domain. Policy switch, not a correctness requirement; a customer that
	// shares the tenant's domain is filtered too when enabled.
	if s.selfDomainFilter && tenant.MailboxDomain() != "" &&
		validator.EmailDomain(sender) == tenant.MailboxDomain() {
		return outcomeSkipped, nil
	}

	exists, err := s.tickets.MessageExists(ctx, msg.ID)
	if err != nil {
		return outcomeSkipped, err
	}
	if exists {
		return outcomeSkipped, nil
	}

	ticket, err := s.resolveTicket(ctx, tenant.ID, msg.ConversationID, sender)
	if err != nil {
		return outcomeSkipped, err
	}

	outcome := outcomeUpdated
	if ticket != nil {
		inbound, err := models.NewInboundEmail(ticket.ID, msg.Body.Content, sender, msg.SenderName(), msg.ID)
		if err != nil {
			return outcomeSkipped, err
		}
		if err := s.ticketSM.AppendInbound(ctx, ticket, inbound); err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				// Lost a race with a concurrent run for the same tenant; the
				// unique index on the external id is the final arbiter.
				return outcomeSkipped, nil
			}
			return outcomeSkipped, err
		}
	} else {
		ticket, err = s.createTicket(ctx, tenant, msg, sender)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				return outcomeSkipped, nil
			}
			return outcomeSkipped, err
		}
		outcome = outcomeCreated
		s.notifyNewTicket(ctx, tenant, ticket)
	}

	// Pure side effect outside the consistency boundary: a failed mark-read
	// is logged and changes nothing about the ingestion outcome, but a 401
	// here still surfaces as an auth failure for the run.
	if err := s.provider.MarkMessageRead(ctx, token, msg.ID); err != nil {
		var provErr *apperrors.ProviderError
		if errors.As(err, &provErr) && provErr.IsAuth() {
			return outcome, err
		}
		s.log.Warn("failed to mark message read",
			slog.String("tenant_id", tenant.ID),
			slog.String("external_message_id", msg.ID),
			slog.String("error", err.Error()))
	}
	return outcome, nil
}

// resolveTicket finds the target ticket for an inbound message. The provider
// conversation id wins over sender matching: two distinct conversations from
// one sender must not merge.
func (s *MailSyncService) resolveTicket(ctx context.Context, tenantID, conversationKey, sender string) (*models.Ticket, error) {
	if conversationKey != "" {
		ticket, err := s.tickets.FindByConversationKey(ctx, tenantID, conversationKey)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	ticket, err := s.tickets.FindOpenBySender(ctx, tenantID, sender)
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

func (s *MailSyncService) createTicket(ctx context.Context, tenant *models.Tenant, msg *graph.Message, sender string) (*models.Ticket, error) {
	var clientID *string
	client, err := s.clients.FindByEmail(ctx, tenant.ID, sender)
	if err == nil {
		clientID = &client.ID
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	lastActivity := msg.ReceivedDateTime
	if lastActivity.IsZero() {
		lastActivity = s.now().UTC()
	}

	ticket := &models.Ticket{
		TenantID:        tenant.ID,
		Subject:         validator.SanitizeString(msg.Subject, 500),
		SenderEmail:     sender,
		SenderName:      validator.SanitizeString(msg.SenderName(), 255),
		Status:          models.TicketStatusNew,
		Priority:        models.TicketPriorityNormal,
		ClientID:        clientID,
		ConversationKey: msg.ConversationID,
		LastActivityAt:  lastActivity,
		ResponseCount:   1,
	}

	inbound, err := models.NewInboundEmail("", msg.Body.Content, sender, msg.SenderName(), msg.ID)
	if err != nil {
		return nil, err
	}

	if err := s.tickets.CreateWithFirstMessage(ctx, ticket, inbound); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *MailSyncService) notifyNewTicket(ctx context.Context, tenant *models.Tenant, ticket *models.Ticket) {
	if s.notifier == nil || tenant.TelegramChatID == "" {
		return
	}
	text := notify.NewTicketText(ticket.Number, ticket.Subject, ticket.SenderEmail)
	if err := s.notifier.Send(ctx, tenant.TelegramChatID, text); err != nil {
		s.log.Warn("failed to send new-ticket notification",
			slog.String("tenant_id", tenant.ID),
			slog.String("ticket_number", ticket.Number),
			slog.String("error", err.Error()))
	}
}

// handleAuthError disconnects the tenant credential when err is a provider
// auth failure and reports whether it was one.
func (s *MailSyncService) handleAuthError(ctx context.Context, tenantID string, err error) bool {
	var provErr *apperrors.ProviderError
	if errors.As(err, &provErr) && provErr.IsAuth() {
		s.tokens.Disconnect(ctx, models.ScopeTenant, tenantID, "auth_failure_during_poll")
		return true
	}
	return false
}
