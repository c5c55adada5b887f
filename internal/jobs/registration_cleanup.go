package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RegistrationPurger removes unconfirmed registrations whose confirmation window has passed.
type RegistrationPurger interface {
	PurgeExpiredRegistrations(ctx context.Context) (int64, error)
}

// RegistrationCleanupJob runs the purge on a cron schedule
type RegistrationCleanupJob struct {
	purger   RegistrationPurger
	schedule string
	timeout  time.Duration
	logger   *zap.Logger
	cron     *cron.Cron
}

func NewRegistrationCleanupJob(purger RegistrationPurger, schedule string, logger *zap.Logger) *RegistrationCleanupJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationCleanupJob{
		purger:   purger,
		schedule: schedule,
		timeout:  time.Minute,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the job; it does not run it immediately
func (j *RegistrationCleanupJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			j.logger.Error("Registration cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule registration cleanup: %w", err)
	}

	j.cron.Start()
	j.logger.Info("Registration cleanup scheduled", zap.String("schedule", j.schedule))
	return nil
}

// Stop waits for a running purge to finish
func (j *RegistrationCleanupJob) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

func (j *RegistrationCleanupJob) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	removed, err := j.purger.PurgeExpiredRegistrations(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		j.logger.Info("Purged expired registrations", zap.Int64("removed", removed))
	}
	return removed, nil
}
