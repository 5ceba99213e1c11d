package services

import (
	"context"
	"sync"
	"time"

	"github.com/bizdesk/bizdesk-backend/internal/graph"
	"github.com/bizdesk/bizdesk-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeProvider implements graph.Client with canned responses per call.
type fakeProvider struct {
	mu sync.Mutex

	refreshToken    *graph.Token
	refreshErr      error
	refreshCalls    int
	lastRefreshSent string

	exchangeToken *graph.Token
	exchangeErr   error

	profile    *graph.Profile
	profileErr error

	messages     []graph.Message
	messagesErr  error
	messageCalls int
	lastSince    time.Time
	lastTop      int

	events    []graph.Event
	eventsErr error
	eventTops []int

	markReadErr error
	markedRead  []string
}

func (f *fakeProvider) ExchangeCode(_ context.Context, _, _ string) (*graph.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeToken, nil
}

func (f *fakeProvider) RefreshToken(_ context.Context, refreshToken string) (*graph.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	f.lastRefreshSent = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshToken, nil
}

func (f *fakeProvider) Me(_ context.Context, _ string) (*graph.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeProvider) ListMessages(_ context.Context, _ string, since time.Time, top int) ([]graph.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageCalls++
	f.lastSince = since
	f.lastTop = top
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return f.messages, nil
}

func (f *fakeProvider) MarkMessageRead(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.markedRead = append(f.markedRead, messageID)
	return nil
}

func (f *fakeProvider) ListCalendarView(_ context.Context, _ string, _, _ time.Time, _ string, top int) ([]graph.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventTops = append(f.eventTops, top)
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events, nil
}

// fakeNotifier records every sent notification.
type fakeNotifier struct {
	mu      sync.Mutex
	sendErr error
	sent    []sentNotification
}

type sentNotification struct {
	ChatID string
	Text   string
}

func (f *fakeNotifier) Send(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentNotification{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	db.Exec("PRAGMA foreign_keys = ON")
	err = db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Client{},
		&models.Credential{},
		&models.SyncCursor{},
		&models.Ticket{},
		&models.TicketMessage{},
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}
