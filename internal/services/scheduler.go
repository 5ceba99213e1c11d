package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
)

// SchedulerConfig holds configuration for the background sync scheduler
type SchedulerConfig struct {
	// MailSyncInterval is how often mail ingestion runs per tenant
	MailSyncInterval time.Duration
	// ReminderInterval is how often the calendar reminder sweep runs
	ReminderInterval time.Duration
}

// Scheduler drives the periodic mail ingestion and reminder sweeps. Each
// concern runs on its own ticker so a slow mail batch cannot delay
// time-sensitive reminders.
type Scheduler struct {
	mailSync  *MailSyncService
	reminders *ReminderService
	tenants   repository.TenantRepository
	config    SchedulerConfig
	logger    *slog.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewScheduler creates a new background sync scheduler
func NewScheduler(
	mailSync *MailSyncService,
	reminders *ReminderService,
	tenants repository.TenantRepository,
	config SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	// Set defaults
	if config.MailSyncInterval <= 0 {
		config.MailSyncInterval = 5 * time.Minute
	}
	if config.ReminderInterval <= 0 {
		config.ReminderInterval = 5 * time.Minute
	}

	return &Scheduler{
		mailSync:  mailSync,
		reminders: reminders,
		tenants:   tenants,
		config:    config,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins both background loops
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(2)
	go s.mailLoop()
	go s.reminderLoop()

	s.logger.Info("sync scheduler started",
		slog.Duration("mail_sync_interval", s.config.MailSyncInterval),
		slog.Duration("reminder_interval", s.config.ReminderInterval))
}

// Stop gracefully stops both loops, waiting for in-flight runs to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("sync scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) mailLoop() {
	defer s.wg.Done()

	// Run immediately on start
	s.runMailSyncAll()

	ticker := time.NewTicker(s.config.MailSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runMailSyncAll()
		}
	}
}

func (s *Scheduler) reminderLoop() {
	defer s.wg.Done()

	s.runReminderSweep()

	ticker := time.NewTicker(s.config.ReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runReminderSweep()
		}
	}
}

// runMailSyncAll ingests mail for every tenant with a configured mailbox.
// Tenant failures are isolated: one broken connection never blocks the rest.
func (s *Scheduler) runMailSyncAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tenants, err := s.tenants.ListWithMailbox(ctx)
	if err != nil {
		s.logger.Error("failed to list tenants for mail sync",
			slog.Any("error", err))
		return
	}

	for i := range tenants {
		tenant := &tenants[i]
		result, err := s.mailSync.RunMailSync(ctx, tenant)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotConnected) {
				s.logger.Debug("tenant mailbox not connected, skipping",
					slog.String("tenant_id", tenant.ID))
				continue
			}
			s.logger.Error("mail sync run failed",
				slog.String("tenant_id", tenant.ID),
				slog.Any("error", err))
			continue
		}
		if result.Created > 0 || result.Updated > 0 {
			s.logger.Info("mail sync ingested messages",
				slog.String("tenant_id", tenant.ID),
				slog.Int("created", result.Created),
				slog.Int("updated", result.Updated))
		}
	}
}

func (s *Scheduler) runReminderSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := s.reminders.RunReminderSweep(ctx); err != nil {
		s.logger.Error("reminder sweep failed",
			slog.Any("error", err))
	}
}

// ForceMailSync triggers an immediate mail ingestion pass across all tenants.
// This is useful for testing or manual intervention
func (s *Scheduler) ForceMailSync() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		s.logger.Warn("force mail sync called but scheduler is not running")
		return
	}

	s.logger.Info("force mail sync triggered")
	go s.runMailSyncAll()
}
