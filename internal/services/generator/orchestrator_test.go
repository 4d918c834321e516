package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/models"
	"github.com/delsolprimehomes/clustergen/internal/services/citations"
	"github.com/delsolprimehomes/clustergen/internal/services/images"
	"github.com/delsolprimehomes/clustergen/internal/services/llm"
)

// fastGenConfig keeps retries and backoff negligible for tests
func fastGenConfig() *common.GenerationConfig {
	cfg := common.DefaultConfig().Generation
	cfg.RetryBaseDelay = "1ms"
	cfg.HeartbeatInterval = "50ms"
	return &cfg
}

func newTestOrchestrator(t *testing.T, jobs *memJobs, svc *scriptedLLM) *Orchestrator {
	t.Helper()
	logger := common.GetLogger()
	cfg := fastGenConfig()

	store, err := images.NewStore(failingImages{}, &common.ImagesConfig{
		Dir:         t.TempDir(),
		PublicBase:  "/images",
		Placeholder: "/images/placeholder-villa.jpg",
	}, logger)
	require.NoError(t, err)

	filter := citations.NewDomainFilter(nil, logger)
	acquirer := citations.NewAcquirer(citations.NewFinder(svc, filter, logger), filter, cfg, logger)
	acquirer.BaseDelay = time.Millisecond

	return NewOrchestrator(
		jobs,
		svc,
		NewPlanner(svc, cfg, logger),
		NewArticleGenerator(svc, store, cfg, logger),
		acquirer,
		NewLinker(svc, filter, cfg, logger),
		nil,
		cfg,
		logger,
	)
}

func submitRequest() *SubmitRequest {
	return &SubmitRequest{
		Topic:          "Buying Property on the Costa Blanca",
		Language:       "en",
		TargetAudience: "northern European retirees",
		PrimaryKeyword: "costa blanca property",
	}
}

// waitTerminal polls until the detached pipeline reaches a terminal status
func waitTerminal(t *testing.T, jobs *memJobs, jobID string) *models.GenerationJob {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestPipelineCompletesCluster(t *testing.T) {
	jobs := newMemJobs()
	svc := newScriptedLLM()
	orch := newTestOrchestrator(t, jobs, svc)

	jobID, err := orch.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := waitTerminal(t, jobs, jobID)
	require.Equal(t, models.JobStatusCompleted, job.Status)
	require.Nil(t, job.Error)
	require.Len(t, job.Articles, 6)

	tofu, mofu, bofu := models.FunnelCounts(job.Articles)
	assert.Equal(t, 3, tofu)
	assert.Equal(t, 2, mofu)
	assert.Equal(t, 1, bofu)

	for _, a := range job.Articles {
		assert.Equal(t, models.CitationVerified, a.CitationStatus, a.Headline)
		assert.GreaterOrEqual(t, len(a.Citations), 2, a.Headline)

		resolved, ok := IsAllowedCategory(a.Category)
		assert.True(t, ok, "category %q must be on the allow-list", a.Category)
		assert.Equal(t, resolved, a.Category)

		assert.Equal(t, "Maria Santos", a.Author)
		assert.Equal(t, DefaultReviewer, a.Reviewer)
		assert.LessOrEqual(t, len([]rune(a.MetaTitle)), maxMetaTitleLen)
		assert.LessOrEqual(t, len([]rune(a.MetaDescription)), maxMetaDescriptionLen)
		assert.Positive(t, a.ReadTimeMinutes)

		// Image backend is down for the whole run; the placeholder rung of the
		// fallback ladder carries the article instead of failing the job.
		assert.Equal(t, "/images/placeholder-villa.jpg", a.FeaturedImageURL)

		if a.FunnelStage == models.FunnelTOFU {
			assert.Empty(t, a.FAQs, "%s: TOFU articles carry no FAQ block", a.Headline)
		} else {
			assert.NotEmpty(t, a.FAQs, a.Headline)
		}
	}

	assert.Equal(t, stepFinalize, job.Progress.CurrentStep)
	assert.Equal(t, totalSteps, job.Progress.TotalSteps)

	require.Eventually(t, func() bool {
		return !jobs.claimHeld(job.ClusterSlug)
	}, time.Second, 10*time.Millisecond, "completed job releases its cluster claim")
}

func TestPipelineFailsFastOnBadCredentials(t *testing.T) {
	jobs := newMemJobs()
	svc := newScriptedLLM()
	svc.healthErr = llm.Classify(errors.New("401 invalid x-api-key"))
	orch := newTestOrchestrator(t, jobs, svc)

	jobID, err := orch.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	job := waitTerminal(t, jobs, jobID)
	require.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "credential_probe", job.Error.Step)
	assert.Contains(t, job.Error.Message, "API key")
	assert.Nil(t, job.Articles)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Zero(t, svc.calls["structure"], "no article work before the probe passes")
	assert.Zero(t, svc.calls["body"])
}

func TestPipelineCitationGateNamesFailingArticle(t *testing.T) {
	jobs := newMemJobs()
	svc := newScriptedLLM()
	svc.uncitable["Villa or Apartment on the Costa Blanca"] = true
	orch := newTestOrchestrator(t, jobs, svc)

	jobID, err := orch.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	job := waitTerminal(t, jobs, jobID)
	require.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "citation_gate", job.Error.Step)
	assert.Contains(t, job.Error.Message, "Villa or Apartment on the Costa Blanca")
	assert.Nil(t, job.Articles, "a cluster with an uncited article never partially publishes")

	// The shortfall never aborts the loop: all six bodies are generated
	// before the gate fires at finalization.
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, 6, svc.calls["body"])
}

func TestSubmitRejectsBusyCluster(t *testing.T) {
	jobs := newMemJobs()
	svc := newScriptedLLM()
	orch := newTestOrchestrator(t, jobs, svc)

	req := submitRequest()
	slug := common.Slugify(req.Topic)
	claimed, err := jobs.ClaimCluster(context.Background(), &models.ClusterClaim{ClusterSlug: slug, JobID: "other-job"})
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = orch.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrClusterBusy)
}

func TestSubmitValidation(t *testing.T) {
	orch := newTestOrchestrator(t, newMemJobs(), newScriptedLLM())

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing topic", func(r *SubmitRequest) { r.Topic = "" }},
		{"topic too short", func(r *SubmitRequest) { r.Topic = "ab" }},
		{"invalid language tag", func(r *SubmitRequest) { r.Language = "not a language!" }},
		{"missing audience", func(r *SubmitRequest) { r.TargetAudience = "" }},
		{"missing keyword", func(r *SubmitRequest) { r.PrimaryKeyword = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submitRequest()
			tt.mutate(req)
			_, err := orch.Submit(context.Background(), req)
			assert.Error(t, err)
		})
	}
}

func TestResumeRejectsTerminalAndRunningStates(t *testing.T) {
	jobs := newMemJobs()
	svc := newScriptedLLM()
	orch := newTestOrchestrator(t, jobs, svc)

	job := models.NewGenerationJob("job-done", "Topic here", "en", "aud", "kw", "topic-here")
	require.NoError(t, job.MarkStarted())
	require.NoError(t, job.MarkCompleted(nil))
	require.NoError(t, jobs.CreateJob(context.Background(), job))

	err := orch.Resume(context.Background(), "job-done")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be resumed")
}

func TestCancelMarksJobFailedAndReleasesClaim(t *testing.T) {
	jobs := newMemJobs()
	orch := newTestOrchestrator(t, jobs, newScriptedLLM())
	ctx := context.Background()

	job := models.NewGenerationJob("job-run", "Topic here", "en", "aud", "kw", "topic-here")
	require.NoError(t, job.MarkStarted())
	require.NoError(t, jobs.CreateJob(ctx, job))
	_, err := jobs.ClaimCluster(ctx, &models.ClusterClaim{ClusterSlug: "topic-here", JobID: "job-run"})
	require.NoError(t, err)

	require.NoError(t, orch.Cancel(ctx, "job-run"))

	stored, err := jobs.GetJob(ctx, "job-run")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Equal(t, "cancelled", stored.Error.Step)
	assert.False(t, jobs.claimHeld("topic-here"))

	// Cancelling an already-terminal job is rejected.
	assert.Error(t, orch.Cancel(ctx, "job-run"))
}
