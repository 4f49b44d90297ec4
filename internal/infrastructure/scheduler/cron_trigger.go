package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/supplier"
)

// CronTriggerConfig holds configuration for the daily sync trigger
type CronTriggerConfig struct {
	// DailySyncHour and DailySyncMinute give the daily fire time in
	// local 24h time.
	DailySyncHour   int
	DailySyncMinute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// SyncConfig is the run configuration each scheduled sync uses
	SyncConfig supplier.Config
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		DailySyncHour:   3,
		DailySyncMinute: 0,
		CheckInterval:   time.Minute,
	}
}

// ParseDailySchedule reads the minute and hour fields of a standard
// five-field cron expression. Only fixed daily schedules are supported
// ("30 3 * * *" fires at 03:30); anything fancier is rejected.
func ParseDailySchedule(expr string) (hour, minute int, err error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return 0, 0, fmt.Errorf("%w: want 5 fields, got %d", ErrInvalidSchedule, len(fields))
	}
	minute, err = strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute %q", ErrInvalidSchedule, fields[0])
	}
	hour, err = strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour %q", ErrInvalidSchedule, fields[1])
	}
	for _, f := range fields[2:] {
		if f != "*" {
			return 0, 0, fmt.Errorf("%w: only daily schedules are supported", ErrInvalidSchedule)
		}
	}
	return hour, minute, nil
}

// CronTrigger queues a catalog sync once per day at the configured time
type CronTrigger struct {
	config    CronTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string // Track which date we last ran for
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, scheduler *Scheduler, logger *zap.Logger) *CronTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	return &CronTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Sync cron trigger started",
		zap.Int("daily_hour", c.config.DailySyncHour),
		zap.Int("daily_minute", c.config.DailySyncMinute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)

	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Sync cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop checks periodically if it's time to queue the daily sync
func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger()
		}
	}
}

// checkAndTrigger queues the sync when the configured time arrives,
// at most once per calendar day.
func (c *CronTrigger) checkAndTrigger() {
	now := time.Now()
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	alreadyRan := c.lastRunDate == currentDate
	c.mu.Unlock()
	if alreadyRan {
		return
	}

	if now.Hour() != c.config.DailySyncHour || now.Minute() != c.config.DailySyncMinute {
		return
	}

	c.mu.Lock()
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("Triggering daily catalog sync")
	if _, err := c.scheduler.ScheduleSync(c.config.SyncConfig); err != nil {
		c.logger.Error("Failed to queue daily catalog sync", zap.Error(err))
	}
}

// TriggerManualSync queues a sync outside the daily schedule
func (c *CronTrigger) TriggerManualSync(cfg supplier.Config) (*Job, error) {
	return c.scheduler.ScheduleSync(cfg)
}
