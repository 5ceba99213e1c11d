package handlers

import (
	"errors"
	"log/slog"

	"github.com/bizdesk/bizdesk-backend/internal/api/response"
	apperrors "github.com/bizdesk/bizdesk-backend/internal/errors"
	"github.com/bizdesk/bizdesk-backend/internal/repository"
	"github.com/bizdesk/bizdesk-backend/internal/services"
	"github.com/labstack/echo/v4"
)

// JobHandler exposes the sync jobs to external schedulers (cron, uptime
// monitors). A run whose internals fail still answers 200 with the failure
// in the message: the caller triggered the job successfully, the job's own
// problems are logged and retried on the next tick.
type JobHandler struct {
	mailSync  *services.MailSyncService
	reminders *services.ReminderService
	tenants   repository.TenantRepository
	log       *slog.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(
	mailSync *services.MailSyncService,
	reminders *services.ReminderService,
	tenants repository.TenantRepository,
	log *slog.Logger,
) *JobHandler {
	return &JobHandler{
		mailSync:  mailSync,
		reminders: reminders,
		tenants:   tenants,
		log:       log,
	}
}

// MailSyncStats aggregates per-tenant ingestion results for the response.
type MailSyncStats struct {
	TenantsSynced int `json:"tenants_synced"`
	TenantsFailed int `json:"tenants_failed"`
	Created       int `json:"created"`
	Updated       int `json:"updated"`
	Skipped       int `json:"skipped"`
}

// TriggerMailSync handles POST /api/v1/jobs/mail-sync. An optional
// tenant_id query parameter narrows the run to one tenant.
func (h *JobHandler) TriggerMailSync(c echo.Context) error {
	ctx := c.Request().Context()
	stats := MailSyncStats{}

	tenantID := c.QueryParam("tenant_id")
	if tenantID != "" {
		tenant, err := h.tenants.GetByID(ctx, tenantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return response.NotFound(c, "tenant not found")
			}
			return response.InternalError(c, "failed to load tenant")
		}
		h.syncTenant(c, tenant.ID, &stats)
		return response.SuccessWithMessage(c, stats, "mail sync completed")
	}

	tenants, err := h.tenants.ListWithMailbox(ctx)
	if err != nil {
		return response.InternalError(c, "failed to list tenants")
	}

	for i := range tenants {
		h.syncTenant(c, tenants[i].ID, &stats)
	}
	return response.SuccessWithMessage(c, stats, "mail sync completed")
}

func (h *JobHandler) syncTenant(c echo.Context, tenantID string, stats *MailSyncStats) {
	ctx := c.Request().Context()
	tenant, err := h.tenants.GetByID(ctx, tenantID)
	if err != nil {
		stats.TenantsFailed++
		return
	}

	result, err := h.mailSync.RunMailSync(ctx, tenant)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotConnected) {
			// Not an error from the trigger's point of view; the tenant
			// simply has nothing to sync until someone reconnects.
			return
		}
		h.log.Error("triggered mail sync failed",
			slog.String("tenant_id", tenant.ID),
			slog.String("error", err.Error()))
		stats.TenantsFailed++
		return
	}

	stats.TenantsSynced++
	stats.Created += result.Created
	stats.Updated += result.Updated
	stats.Skipped += result.Skipped
}

// TriggerReminderSweep handles POST /api/v1/jobs/reminder-sweep
func (h *JobHandler) TriggerReminderSweep(c echo.Context) error {
	result, err := h.reminders.RunReminderSweep(c.Request().Context())
	if err != nil {
		h.log.Error("triggered reminder sweep failed",
			slog.String("error", err.Error()))
		return response.SuccessWithMessage(c, result, "reminder sweep failed: "+err.Error())
	}
	return response.SuccessWithMessage(c, result, "reminder sweep completed")
}
