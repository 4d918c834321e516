package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
)

// JobStorage implements the JobStorage interface for Badger. Writes are
// whole-row Upserts: the single pipeline task owning a job is the only
// writer, so there is nothing to merge.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// CreateJob persists a new job row
func (s *JobStorage) CreateJob(ctx context.Context, job *models.GenerationJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	if err := s.db.Store().Insert(job.ID, job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("job %s already exists", job.ID)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	var job models.GenerationJob
	err := s.db.Store().Get(jobID, &job)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// UpdateJob overwrites the whole job row
func (s *JobStorage) UpdateJob(ctx context.Context, job *models.GenerationJob) error {
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// ListJobs returns jobs filtered by status, newest first
func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.GenerationJob, error) {
	query := badgerhold.Where("ID").Ne("")
	if opts != nil && opts.Status != "" {
		query = badgerhold.Where("Status").Eq(models.JobStatus(opts.Status)).Index("Status")
	}
	query = query.SortBy("CreatedAt").Reverse()
	if opts != nil && opts.Offset > 0 {
		query = query.Skip(opts.Offset)
	}
	if opts != nil && opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var jobs []*models.GenerationJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// DeleteJob removes a job row
func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	err := s.db.Store().Delete(jobID, &models.GenerationJob{})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes only the liveness timestamp. Progress, status,
// and articles are untouched so a concurrent stage update cannot be clobbered
// with stale values.
func (s *JobStorage) UpdateHeartbeat(ctx context.Context, jobID string) error {
	err := s.db.Store().UpdateMatching(&models.GenerationJob{}, badgerhold.Where("ID").Eq(jobID), func(record interface{}) error {
		job, ok := record.(*models.GenerationJob)
		if !ok {
			return fmt.Errorf("unexpected record type %T", record)
		}
		job.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	return nil
}

// GetStalledJobs returns generating jobs whose heartbeat is older than the
// threshold. Stall is derived here from the timestamp, never stored.
func (s *JobStorage) GetStalledJobs(ctx context.Context, threshold time.Duration) ([]*models.GenerationJob, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	var jobs []*models.GenerationJob
	err := s.db.Store().Find(&jobs,
		badgerhold.Where("Status").Eq(models.JobStatusGenerating).Index("Status").
			And("UpdatedAt").Lt(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query stalled jobs: %w", err)
	}
	return jobs, nil
}

// ClaimCluster inserts a claim keyed by cluster slug. Insert fails when the
// key exists, which is exactly the mutual exclusion needed: the second
// submitter is told the cluster is busy rather than racing the first.
func (s *JobStorage) ClaimCluster(ctx context.Context, claim *models.ClusterClaim) (bool, error) {
	err := s.db.Store().Insert(claim.ClusterSlug, claim)
	if err == badgerhold.ErrKeyExists {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim cluster: %w", err)
	}
	return true, nil
}

// ReleaseCluster removes a claim. Releasing an unclaimed cluster is a no-op.
func (s *JobStorage) ReleaseCluster(ctx context.Context, clusterSlug string) error {
	err := s.db.Store().Delete(clusterSlug, &models.ClusterClaim{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to release cluster: %w", err)
	}
	return nil
}
