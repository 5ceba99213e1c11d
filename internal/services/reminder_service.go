package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bizdesk/bizdesk-backend/internal/cache"
	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
	"github.com/bizdesk/bizdesk-backend/internal/graph"
	"github.com/bizdesk/bizdesk-backend/internal/models"
	"github.com/bizdesk/bizdesk-backend/internal/notify"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
)

const (
	// reminderLookahead is the calendar query horizon per sweep.
	reminderLookahead = 15 * time.Minute
	// reminderEventCap bounds the events considered per user per sweep.
	reminderEventCap = 5
	// reminderBandMin/Max delimit the notification band in whole minutes.
	// The band is wider than the sweep interval so jittered runs cannot
	// open a gap an event slips through.
	reminderBandMin = 8
	reminderBandMax = 12
)

// ReminderResult reports the outcome of one sweep across all connected users.
type ReminderResult struct {
	UsersChecked int `json:"users_checked"`
	Sent         int `json:"sent"`
	Skipped      int `json:"skipped"`
}

// ReminderService sweeps connected user calendars and sends an
// about-10-minutes-before nudge for each upcoming event, at most once per
// event occurrence.
type ReminderService struct {
	tokens      *TokenService
	provider    graph.Client
	credentials repository.CredentialRepository
	users       repository.UserRepository
	notified    cache.NotifiedCache
	notifier    notify.Notifier
	log         *slog.Logger

	now func() time.Time
}

// NewReminderService creates a ReminderService
func NewReminderService(
	tokens *TokenService,
	provider graph.Client,
	credentials repository.CredentialRepository,
	users repository.UserRepository,
	notified cache.NotifiedCache,
	notifier notify.Notifier,
	log *slog.Logger,
) *ReminderService {
	return &ReminderService{
		tokens:      tokens,
		provider:    provider,
		credentials: credentials,
		users:       users,
		notified:    notified,
		notifier:    notifier,
		log:         log,
		now:         time.Now,
	}
}

// RunReminderSweep executes one sweep over every user with a connected
// calendar. Per-user failures are logged and skipped; one broken calendar
// must not silence the rest.
func (s *ReminderService) RunReminderSweep(ctx context.Context) (*ReminderResult, error) {
	result := &ReminderResult{}

	connected, err := s.credentials.ListConnected(ctx, models.ScopeUser)
	if err != nil {
		return result, fmt.Errorf("failed to list connected calendars: %w", err)
	}

	for i := range connected {
		sent, skipped, err := s.sweepUser(ctx, connected[i].ScopeID)
		if err != nil {
			s.log.Error("reminder sweep failed for user",
				slog.String("user_id", connected[i].ScopeID),
				slog.String("error", err.Error()))
			continue
		}
		result.UsersChecked++
		result.Sent += sent
		result.Skipped += skipped
	}

	s.log.Info("reminder sweep completed",
		slog.Int("users_checked", result.UsersChecked),
		slog.Int("sent", result.Sent),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

func (s *ReminderService) sweepUser(ctx context.Context, userID string) (sent, skipped int, err error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	token, err := s.tokens.GetValidToken(ctx, models.ScopeUser, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotConnected) {
			// Needs reconnection; nothing to sweep until then.
			return 0, 0, nil
		}
		return 0, 0, err
	}

	now := s.now().UTC()
	events, err := s.provider.ListCalendarView(ctx, token, now, now.Add(reminderLookahead), user.Timezone, reminderEventCap)
	if err != nil {
		var provErr *apperrors.ProviderError
		if errors.As(err, &provErr) && provErr.IsAuth() {
			s.tokens.Disconnect(ctx, models.ScopeUser, userID, "auth_failure_during_poll")
			return 0, 0, nil
		}
		return 0, 0, err
	}

	for i := range events {
		if s.remindEvent(ctx, user, now, &events[i]) {
			sent++
		} else {
			skipped++
		}
	}
	return sent, skipped, nil
}

// remindEvent decides and, when due, delivers one reminder. Reports whether
// a notification went out.
func (s *ReminderService) remindEvent(ctx context.Context, user *models.User, now time.Time, event *graph.Event) bool {
	if event.IsAllDay {
		return false
	}

	start, err := event.Start.Time()
	if err != nil {
		s.log.Warn("unparseable event start",
			slog.String("event_id", event.ID),
			slog.String("value", event.Start.DateTime))
		return false
	}

	minutes := int(math.Round(start.Sub(now).Minutes()))
	if minutes < reminderBandMin || minutes > reminderBandMax {
		return false
	}

	key := cache.EventKey{UserID: user.ID, EventID: event.ID, StartTime: start.UTC()}
	first, err := s.notified.MarkIfFirst(ctx, key)
	if err != nil {
		// Fail open: a duplicate nudge beats a silently missed meeting.
		s.log.Warn("reminder cache unavailable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()))
		first = true
	}
	if !first {
		return false
	}

	if user.TelegramChatID == "" {
		return false
	}
	text := notify.EventReminderText(event.Subject, event.Location.DisplayName, minutes)
	if err := s.notifier.Send(ctx, user.TelegramChatID, text); err != nil {
		s.log.Warn("failed to send event reminder",
			slog.String("user_id", user.ID),
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return false
	}
	return true
}
