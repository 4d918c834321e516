package interfaces

import (
	"context"
	"time"

	"github.com/delsolprimehomes/clustergen/internal/models"
)

// JobListOptions filters and pages job listings
type JobListOptions struct {
	Status string
	Limit  int
	Offset int
}

// JobStorage persists generation jobs. Updates are whole-row overwrites: the
// single task that owns a job is the only writer, so there is no partial-merge
// path to race against.
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.GenerationJob) error
	GetJob(ctx context.Context, jobID string) (*models.GenerationJob, error)
	UpdateJob(ctx context.Context, job *models.GenerationJob) error
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.GenerationJob, error)
	DeleteJob(ctx context.Context, jobID string) error

	// UpdateHeartbeat refreshes only the liveness timestamp.
	UpdateHeartbeat(ctx context.Context, jobID string) error

	// GetStalledJobs returns generating jobs whose heartbeat is older than the threshold.
	GetStalledJobs(ctx context.Context, threshold time.Duration) ([]*models.GenerationJob, error)

	// ClaimCluster inserts a claim for the cluster slug; returns false when a
	// live claim already exists.
	ClaimCluster(ctx context.Context, claim *models.ClusterClaim) (bool, error)
	ReleaseCluster(ctx context.Context, clusterSlug string) error
}

// ContentStorage persists published articles and Q&A rows for the
// translation/Q&A completion machine.
type ContentStorage interface {
	SaveArticle(ctx context.Context, article *models.PublishedArticle) error
	GetArticle(ctx context.Context, articleID string) (*models.PublishedArticle, error)
	GetClusterArticles(ctx context.Context, clusterSlug string) ([]*models.PublishedArticle, error)

	SaveQA(ctx context.Context, item *models.QAItem) error
	// GetClusterQA fetches every Q&A row for a cluster in one query so callers
	// always see a single atomic snapshot of cross-language state.
	GetClusterQA(ctx context.Context, clusterSlug string) ([]*models.QAItem, error)
	DeleteQA(ctx context.Context, id string) error
}

// KeyValueStorage stores small settings such as API keys
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StorageManager aggregates the storage interfaces behind one lifecycle
type StorageManager interface {
	JobStorage() JobStorage
	ContentStorage() ContentStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
