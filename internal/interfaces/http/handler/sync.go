package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/supplier"
	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// SyncTrigger queues catalog sync jobs for background execution.
type SyncTrigger interface {
	TriggerManualSync(cfg supplier.Config) (*scheduler.Job, error)
}

// SyncStatusProvider reports whether a run is active and exposes the
// latest completed summary.
type SyncStatusProvider interface {
	Status(ctx context.Context) (bool, *supplier.Summary)
}

// SyncHandler handles catalog synchronization endpoints
type SyncHandler struct {
	BaseHandler
	trigger SyncTrigger
	status  SyncStatusProvider
	logger  *zap.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(trigger SyncTrigger, status SyncStatusProvider, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		trigger: trigger,
		status:  status,
		logger:  logger.Named("sync_handler"),
	}
}

// Trigger handles POST /api/v1/sync
func (h *SyncHandler) Trigger(c *gin.Context) {
	var req dto.TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	if running, _ := h.status.Status(c.Request.Context()); running {
		h.HandleError(c, shared.ErrSyncInProgress)
		return
	}

	job, err := h.trigger.TriggerManualSync(req.ToConfig())
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrJobQueueFull):
			h.Error(c, dto.ErrCodeRateLimited, "sync job queue is full")
		case errors.Is(err, scheduler.ErrSchedulerNotRunning):
			h.Error(c, dto.ErrCodeUnavailable, "sync scheduler is not running")
		default:
			h.HandleError(c, err)
		}
		return
	}

	h.logger.Info("manual sync queued",
		zap.String("job_id", job.ID.String()),
		zap.Strings("country_codes", job.Config.CountryCodes),
	)

	resp := dto.TriggerSyncResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	h.Accepted(c, resp)
}

// Status handles GET /api/v1/sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	running, last := h.status.Status(c.Request.Context())

	h.Success(c, dto.SyncStatusResponse{
		Running:     running,
		LastSummary: dto.NewSyncSummaryResponse(last),
	})
}
