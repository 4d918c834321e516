// -----------------------------------------------------------------------
// Recovery Sweeper - Cron-driven stalled-job detection
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
)

// RecoverySweeper periodically scans for jobs that claim to be generating but
// whose heartbeat has gone quiet past the stall threshold, and forces them to
// a terminal failed state so their cluster claims free up and operators can
// resume them.
type RecoverySweeper struct {
	jobs      interfaces.JobStorage
	cron      *cron.Cron
	schedule  string
	threshold time.Duration
	logger    arbor.ILogger
}

// NewRecoverySweeper creates the sweeper from configuration
func NewRecoverySweeper(jobs interfaces.JobStorage, recoveryCfg *common.RecoveryConfig, genCfg *common.GenerationConfig, logger arbor.ILogger) *RecoverySweeper {
	schedule := recoveryCfg.Schedule
	if schedule == "" {
		schedule = "*/2 * * * *"
	}
	return &RecoverySweeper{
		jobs:      jobs,
		cron:      cron.New(),
		schedule:  schedule,
		threshold: common.ParseDurationOr(genCfg.StallThreshold, 5*time.Minute),
		logger:    logger,
	}
}

// Start registers the sweep on the cron schedule and begins running
func (r *RecoverySweeper) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.sweep); err != nil {
		return fmt.Errorf("failed to schedule recovery sweep: %w", err)
	}
	r.cron.Start()
	r.logger.Info().
		Str("schedule", r.schedule).
		Str("threshold", r.threshold.String()).
		Msg("Recovery sweeper started")
	return nil
}

// Stop halts the cron scheduler, waiting for an in-flight sweep to finish
func (r *RecoverySweeper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("Recovery sweeper stopped")
}

// Sweep runs one pass immediately. Exposed for startup recovery and tests.
func (r *RecoverySweeper) Sweep(ctx context.Context) (int, error) {
	stalled, err := r.jobs.GetStalledJobs(ctx, r.threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to query stalled jobs: %w", err)
	}

	recovered := 0
	for _, job := range stalled {
		age := time.Since(job.UpdatedAt).Round(time.Second)
		job.MarkFailed("stall_recovery",
			fmt.Sprintf("job stalled: no heartbeat for %s (threshold %s)", age, r.threshold), "")

		if err := r.jobs.UpdateJob(ctx, job); err != nil {
			r.logger.Error().
				Err(err).
				Str("job_id", job.ID).
				Msg("Failed to mark stalled job as failed")
			continue
		}
		if err := r.jobs.ReleaseCluster(ctx, job.ClusterSlug); err != nil {
			r.logger.Warn().
				Err(err).
				Str("cluster", job.ClusterSlug).
				Msg("Failed to release cluster claim for stalled job")
		}

		r.logger.Warn().
			Str("job_id", job.ID).
			Str("last_heartbeat", job.UpdatedAt.Format(time.RFC3339)).
			Msg("Stalled job marked failed")
		recovered++
	}
	return recovered, nil
}

func (r *RecoverySweeper) sweep() {
	if _, err := r.Sweep(context.Background()); err != nil {
		r.logger.Error().Err(err).Msg("Recovery sweep failed")
	}
}
