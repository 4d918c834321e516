// -----------------------------------------------------------------------
// Generation Job - Persisted state for a cluster-generation run
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// JobStatus represents the persisted state of a generation job.
// "Stalled" is deliberately not a member: it is derived from the heartbeat
// timestamp by consumers, never stored.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// CanTransition reports whether a status change is legal.
// pending -> generating -> {completed|failed}; failed -> generating is the
// manual-resume edge for stalled or cancelled jobs.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusPending:
		return to == JobStatusGenerating || to == JobStatusFailed
	case JobStatusGenerating:
		return to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusFailed:
		return to == JobStatusGenerating
	default:
		return false
	}
}

// IsTerminal returns true for completed and failed
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobProgress is the structured progress snapshot, overwritten whole on every
// step - never merged field-by-field.
type JobProgress struct {
	CurrentStep    int    `json:"current_step"`
	TotalSteps     int    `json:"total_steps"`
	CurrentArticle int    `json:"current_article"` // 1-based; 0 while outside the article loop
	TotalArticles  int    `json:"total_articles"`
	Message        string `json:"message"`
}

// JobError is the structured terminal-failure payload
type JobError struct {
	Message   string    `json:"message"`
	Step      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Stack     string    `json:"stack,omitempty"`
}

// GenerationJob is the single source of truth for one cluster-generation
// request. All per-article state lives in orchestrator memory until terminal
// success; the row only ever carries heartbeat + progress while running, so a
// crash before the final write loses in-flight article work by design.
type GenerationJob struct {
	ID             string `badgerhold:"key" json:"id"`
	Topic          string `json:"topic"`
	Language       string `json:"language"`
	TargetAudience string `json:"target_audience"`
	PrimaryKeyword string `json:"primary_keyword"`
	ClusterSlug    string `json:"cluster_slug"`

	Status   JobStatus   `badgerholdIndex:"Status" json:"status"`
	Progress JobProgress `json:"progress"`
	Error    *JobError   `json:"error,omitempty"`

	// Articles is written once, atomically, on full success.
	Articles []ArticleDraft `json:"articles,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"` // heartbeat timestamp
}

// NewGenerationJob creates a pending job for the given request
func NewGenerationJob(id, topic, language, audience, keyword, clusterSlug string) *GenerationJob {
	now := time.Now().UTC()
	return &GenerationJob{
		ID:             id,
		Topic:          topic,
		Language:       language,
		TargetAudience: audience,
		PrimaryKeyword: keyword,
		ClusterSlug:    clusterSlug,
		Status:         JobStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MarkStarted moves the job into generating
func (j *GenerationJob) MarkStarted() error {
	if !j.Status.CanTransition(JobStatusGenerating) {
		return fmt.Errorf("cannot start job in status %s", j.Status)
	}
	j.Status = JobStatusGenerating
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCompleted finalizes the job with its full article set in one write
func (j *GenerationJob) MarkCompleted(articles []ArticleDraft) error {
	if !j.Status.CanTransition(JobStatusCompleted) {
		return fmt.Errorf("cannot complete job in status %s", j.Status)
	}
	j.Status = JobStatusCompleted
	j.Articles = articles
	j.Error = nil
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed finalizes the job with a structured error. Articles are never
// persisted on failure.
func (j *GenerationJob) MarkFailed(step, message, stack string) {
	j.Status = JobStatusFailed
	j.Articles = nil
	j.Error = &JobError{
		Message:   message,
		Step:      step,
		Timestamp: time.Now().UTC(),
		Stack:     stack,
	}
	j.UpdatedAt = time.Now().UTC()
}

// SetProgress overwrites the whole progress snapshot and refreshes the heartbeat
func (j *GenerationJob) SetProgress(p JobProgress) {
	j.Progress = p
	j.UpdatedAt = time.Now().UTC()
}

// IsStalled reports whether the job looks dead from the consumer side: still
// nominally generating but with a heartbeat older than the threshold.
func (j *GenerationJob) IsStalled(now time.Time, threshold time.Duration) bool {
	return j.Status == JobStatusGenerating && now.Sub(j.UpdatedAt) > threshold
}

// Validate checks required fields
func (j *GenerationJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if j.Topic == "" {
		return fmt.Errorf("job topic is required")
	}
	if j.Language == "" {
		return fmt.Errorf("job language is required")
	}
	return nil
}
