package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"pending to generating", JobStatusPending, JobStatusGenerating, true},
		{"pending to failed", JobStatusPending, JobStatusFailed, true},
		{"pending to completed", JobStatusPending, JobStatusCompleted, false},
		{"generating to completed", JobStatusGenerating, JobStatusCompleted, true},
		{"generating to failed", JobStatusGenerating, JobStatusFailed, true},
		{"generating to pending", JobStatusGenerating, JobStatusPending, false},
		{"failed to generating resume", JobStatusFailed, JobStatusGenerating, true},
		{"failed to completed", JobStatusFailed, JobStatusCompleted, false},
		{"completed is terminal", JobStatusCompleted, JobStatusGenerating, false},
		{"completed to failed", JobStatusCompleted, JobStatusFailed, false},
		{"unknown status", JobStatus("bogus"), JobStatusGenerating, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusGenerating.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
}

func TestGenerationJobLifecycle(t *testing.T) {
	job := NewGenerationJob("job-1", "Buying in Costa Blanca", "en", "retirees", "costa blanca property", "buying-in-costa-blanca")
	require.Equal(t, JobStatusPending, job.Status)
	require.NoError(t, job.Validate())

	require.NoError(t, job.MarkStarted())
	assert.Equal(t, JobStatusGenerating, job.Status)

	// Starting twice is illegal.
	assert.Error(t, job.MarkStarted())

	articles := []ArticleDraft{{ID: "a-1", Headline: "First"}}
	require.NoError(t, job.MarkCompleted(articles))
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Len(t, job.Articles, 1)
	assert.Nil(t, job.Error)

	// Completed is terminal.
	assert.Error(t, job.MarkCompleted(articles))
}

func TestMarkFailedClearsArticles(t *testing.T) {
	job := NewGenerationJob("job-2", "Topic", "en", "", "", "topic")
	require.NoError(t, job.MarkStarted())
	job.Articles = []ArticleDraft{{ID: "a-1"}}

	job.MarkFailed("citation_gate", "2 articles below citation minimum", "")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Nil(t, job.Articles, "articles must never survive a failure")
	require.NotNil(t, job.Error)
	assert.Equal(t, "citation_gate", job.Error.Step)
	assert.Equal(t, "2 articles below citation minimum", job.Error.Message)
	assert.False(t, job.Error.Timestamp.IsZero())
}

func TestMarkFailedThenResume(t *testing.T) {
	job := NewGenerationJob("job-3", "Topic", "en", "", "", "topic")
	require.NoError(t, job.MarkStarted())
	job.MarkFailed("stall_recovery", "no heartbeat for 6m", "")

	require.NoError(t, job.MarkStarted())
	assert.Equal(t, JobStatusGenerating, job.Status)
}

func TestSetProgressOverwritesWhole(t *testing.T) {
	job := NewGenerationJob("job-4", "Topic", "en", "", "", "topic")
	before := job.UpdatedAt

	job.SetProgress(JobProgress{CurrentStep: 3, TotalSteps: 11, CurrentArticle: 1, TotalArticles: 6, Message: "generating article 1 of 6"})
	job.SetProgress(JobProgress{CurrentStep: 4, TotalSteps: 11, Message: "generating article 2 of 6"})

	// The snapshot is replaced, not merged: fields absent from the second
	// write must not leak through from the first.
	assert.Equal(t, 0, job.Progress.CurrentArticle)
	assert.Equal(t, 0, job.Progress.TotalArticles)
	assert.Equal(t, 4, job.Progress.CurrentStep)
	assert.False(t, job.UpdatedAt.Before(before))
}

func TestIsStalled(t *testing.T) {
	now := time.Now().UTC()
	threshold := 5 * time.Minute

	tests := []struct {
		name      string
		status    JobStatus
		updatedAt time.Time
		want      bool
	}{
		{"generating with fresh heartbeat", JobStatusGenerating, now.Add(-30 * time.Second), false},
		{"generating past threshold", JobStatusGenerating, now.Add(-6 * time.Minute), true},
		{"generating exactly at threshold", JobStatusGenerating, now.Add(-threshold), false},
		{"pending never stalls", JobStatusPending, now.Add(-time.Hour), false},
		{"completed never stalls", JobStatusCompleted, now.Add(-time.Hour), false},
		{"failed never stalls", JobStatusFailed, now.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &GenerationJob{Status: tt.status, UpdatedAt: tt.updatedAt}
			assert.Equal(t, tt.want, job.IsStalled(now, threshold))
		})
	}
}

func TestGenerationJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     *GenerationJob
		wantErr bool
	}{
		{"valid", NewGenerationJob("id", "topic", "en", "", "", "topic"), false},
		{"missing id", &GenerationJob{Topic: "t", Language: "en"}, true},
		{"missing topic", &GenerationJob{ID: "id", Language: "en"}, true},
		{"missing language", &GenerationJob{ID: "id", Topic: "t"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
