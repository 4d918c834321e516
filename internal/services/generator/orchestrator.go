// -----------------------------------------------------------------------
// Cluster Orchestrator - Detached multi-stage generation pipeline
// -----------------------------------------------------------------------

package generator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
	"github.com/delsolprimehomes/clustergen/internal/services/citations"
	"github.com/delsolprimehomes/clustergen/internal/services/llm"
)

// Pipeline step numbering. Steps 3..8 are the six per-article iterations.
const (
	stepCredentialProbe = 1
	stepStructure       = 2
	stepFirstArticle    = 3
	stepLinking         = 9
	stepQuality         = 10
	stepFinalize        = 11
	totalSteps          = 11
)

// ErrClusterBusy is returned when another live job already claims the cluster
var ErrClusterBusy = errors.New("a generation job is already running for this cluster")

// SubmitRequest is the orchestrator's submission contract
type SubmitRequest struct {
	Topic          string `json:"topic" validate:"required,min=3,max=200"`
	Language       string `json:"language" validate:"required,bcp47_language_tag"`
	TargetAudience string `json:"target_audience" validate:"required,min=3,max=200"`
	PrimaryKeyword string `json:"primary_keyword" validate:"required,min=3,max=120"`
}

// Orchestrator drives the cluster-generation pipeline. Submit returns
// immediately with a job ID; the pipeline runs as one detached task per job,
// checkpointing progress into the job row, which is the single source of
// truth for "is this job alive".
type Orchestrator struct {
	jobs       interfaces.JobStorage
	llmService interfaces.LLMService
	planner    *Planner
	articles   *ArticleGenerator
	acquirer   *citations.Acquirer
	linker     *Linker
	events     interfaces.EventService
	validate   *validator.Validate
	logger     arbor.ILogger

	heartbeatInterval time.Duration
}

// NewOrchestrator wires the pipeline stages together
func NewOrchestrator(
	jobs interfaces.JobStorage,
	llmService interfaces.LLMService,
	planner *Planner,
	articles *ArticleGenerator,
	acquirer *citations.Acquirer,
	linker *Linker,
	events interfaces.EventService,
	cfg *common.GenerationConfig,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		jobs:              jobs,
		llmService:        llmService,
		planner:           planner,
		articles:          articles,
		acquirer:          acquirer,
		linker:            linker,
		events:            events,
		validate:          validator.New(),
		logger:            logger,
		heartbeatInterval: common.ParseDurationOr(cfg.HeartbeatInterval, 30*time.Second),
	}
}

// Submit validates the request, claims the cluster, persists a pending job
// row, and launches the detached pipeline. Returns the job ID immediately;
// callers poll or subscribe for completion.
func (o *Orchestrator) Submit(ctx context.Context, req *SubmitRequest) (string, error) {
	if err := o.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid generation request: %w", err)
	}

	clusterSlug := common.Slugify(req.Topic)
	job := models.NewGenerationJob(common.NewJobID(), req.Topic, req.Language, req.TargetAudience, req.PrimaryKeyword, clusterSlug)

	claimed, err := o.jobs.ClaimCluster(ctx, &models.ClusterClaim{
		ClusterSlug: clusterSlug,
		JobID:       job.ID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to claim cluster %s: %w", clusterSlug, err)
	}
	if !claimed {
		return "", ErrClusterBusy
	}

	if err := o.jobs.CreateJob(ctx, job); err != nil {
		o.jobs.ReleaseCluster(ctx, clusterSlug)
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("topic", req.Topic).
		Str("language", req.Language).
		Msg("Generation job submitted")

	common.SafeGo(o.logger, "generation-pipeline-"+job.ID, func() {
		o.runDetached(job.ID, clusterSlug)
	})

	return job.ID, nil
}

// Resume restarts a failed or stalled job from the beginning. Per-article work
// is never persisted mid-run, so there is nothing partial to pick up from.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanTransition(models.JobStatusGenerating) {
		return fmt.Errorf("job %s cannot be resumed from status %s", jobID, job.Status)
	}

	claimed, err := o.jobs.ClaimCluster(ctx, &models.ClusterClaim{
		ClusterSlug: job.ClusterSlug,
		JobID:       job.ID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !claimed {
		return ErrClusterBusy
	}

	job.Status = models.JobStatusGenerating
	job.Error = nil
	job.UpdatedAt = time.Now().UTC()
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		o.jobs.ReleaseCluster(ctx, job.ClusterSlug)
		return err
	}

	o.logger.Info().Str("job_id", jobID).Msg("Job resumed")
	common.SafeGo(o.logger, "generation-pipeline-"+jobID, func() {
		o.runDetached(jobID, job.ClusterSlug)
	})
	return nil
}

// Cancel flips a running job to failed. The detached pipeline notices at its
// next stage boundary and halts.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s is already %s", jobID, job.Status)
	}

	job.MarkFailed("cancelled", "job cancelled by operator", "")
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		return err
	}
	return o.jobs.ReleaseCluster(ctx, job.ClusterSlug)
}

// runDetached is the outer shell around the pipeline. Two nested catch levels
// guarantee the job row reaches a terminal state: the pipeline's own failure
// path, and this recover which fires if that path itself blows up.
func (o *Orchestrator) runDetached(jobID, clusterSlug string) {
	ctx := context.Background()
	jobLogger := o.logger.WithCorrelationId(jobID)
	defer o.jobs.ReleaseCluster(ctx, clusterSlug)

	defer func() {
		if r := recover(); r != nil {
			jobLogger.Error().
				Str("panic", fmt.Sprint(r)).
				Msg("Pipeline panicked, forcing terminal failure")
			o.forceFail(ctx, jobID, "catastrophic", fmt.Sprintf("unexpected pipeline failure: %v", r), string(debug.Stack()))
		}
	}()

	if err := o.run(ctx, jobID); err != nil {
		jobLogger.Error().
			Err(err).
			Msg("Generation job failed")
	}
}

// run executes the pipeline stages in order, checking for external
// cancellation at every stage boundary.
func (o *Orchestrator) run(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		o.forceFail(ctx, jobID, "startup", fmt.Sprintf("failed to load job: %v", err), "")
		return err
	}

	if job.Status == models.JobStatusPending {
		if err := job.MarkStarted(); err != nil {
			return err
		}
		if err := o.jobs.UpdateJob(ctx, job); err != nil {
			return err
		}
	}

	params := &ClusterParams{
		Topic:          job.Topic,
		Language:       job.Language,
		TargetAudience: job.TargetAudience,
		PrimaryKeyword: job.PrimaryKeyword,
	}

	// Stage 1: credential probe. Fail fast on bad keys instead of burning
	// through six articles first.
	o.progress(ctx, job, stepCredentialProbe, 0, "Verifying generation credentials")
	if err := o.llmService.HealthCheck(ctx); err != nil {
		if errors.Is(err, llm.ErrUnauthorized) || !llm.IsRetryable(err) {
			return o.fail(ctx, job, "credential_probe", fmt.Errorf("generation client rejected credentials: %w", err))
		}
		o.logger.Warn().Err(err).Msg("Credential probe degraded, continuing")
	}

	if o.cancelled(ctx, job.ID) {
		return nil
	}

	// Stage 2: structure planning.
	o.progress(ctx, job, stepStructure, 0, "Planning cluster structure")
	var plans []models.ArticlePlan
	err = common.WithHeartbeat(ctx, o.logger, o.heartbeatInterval, o.beat(job.ID), func(ctx context.Context) error {
		var planErr error
		plans, planErr = o.planner.PlanStructure(ctx, job.Topic, job.Language, job.TargetAudience, job.PrimaryKeyword)
		return planErr
	})
	if err != nil {
		return o.fail(ctx, job, "structure_planning", err)
	}

	// Stages 3-8: per-article generation, strictly sequential. Each article
	// finishes its body, metadata, imagery, FAQs, and citation acquisition
	// before the next starts, so internal linking later only ever sees
	// finished siblings.
	drafts := make([]models.ArticleDraft, 0, len(plans))
	for i := range plans {
		if o.cancelled(ctx, job.ID) {
			return nil
		}

		plan := &plans[i]
		o.progress(ctx, job, stepFirstArticle+i, i+1, fmt.Sprintf("Generating article %d of %d: %s", i+1, len(plans), plan.Headline))

		var draft *models.ArticleDraft
		err = common.WithHeartbeat(ctx, o.logger, o.heartbeatInterval, o.beat(job.ID), func(ctx context.Context) error {
			var genErr error
			draft, genErr = o.articles.GenerateArticle(ctx, plan, params, i)
			return genErr
		})
		if err != nil {
			return o.fail(ctx, job, fmt.Sprintf("article_%d_generation", i+1), err)
		}

		// Citation acquisition: a shortfall is captured on the article, not
		// raised. The hard gate is evaluated only after all six finish.
		cites, citErr := o.acquirer.Acquire(ctx, draft.BodyHTML, draft.Headline, draft.Language)
		draft.Citations = cites
		if citErr != nil {
			draft.CitationStatus = models.CitationFailed
			draft.CitationFailureReason = citErr.Error()
			o.logger.Warn().
				Err(citErr).
				Str("headline", draft.Headline).
				Msg("Article failed citation acquisition")
		} else {
			draft.CitationStatus = models.CitationVerified
		}

		drafts = append(drafts, *draft)
	}

	if o.cancelled(ctx, job.ID) {
		return nil
	}

	// Stage 9: citation insertion, placeholder repair, internal links, and
	// the structural funnel cross-links.
	o.progress(ctx, job, stepLinking, 0, "Inserting citations and cross-links")
	err = common.WithHeartbeat(ctx, o.logger, o.heartbeatInterval, o.beat(job.ID), func(ctx context.Context) error {
		for i := range drafts {
			if err := o.linker.InsertCitations(&drafts[i]); err != nil {
				return err
			}
			if err := o.linker.RepairPlaceholders(ctx, &drafts[i]); err != nil {
				return err
			}
			if err := o.linker.InsertInternalLinks(ctx, &drafts[i], siblingsOf(drafts, i)); err != nil {
				return err
			}
		}
		ApplyFunnelLinks(drafts)
		return nil
	})
	if err != nil {
		return o.fail(ctx, job, "linking", err)
	}

	// Stage 10: advisory quality scoring. Low scores warn, never block.
	o.progress(ctx, job, stepQuality, 0, "Scoring article quality")
	for i := range drafts {
		result := ScoreArticle(&drafts[i], &plans[i])
		if !result.Valid {
			o.logger.Warn().
				Str("headline", drafts[i].Headline).
				Int("score", result.Score).
				Str("issues", strings.Join(result.Issues, "; ")).
				Msg("Article scored below quality threshold")
		}
	}

	// Stage 11: the citation gate, then atomic completion. A cluster with
	// five cited articles and one uncited one never partially publishes.
	o.progress(ctx, job, stepFinalize, 0, "Finalizing")
	if failed := failedHeadlines(drafts); len(failed) > 0 {
		return o.fail(ctx, job, "citation_gate",
			fmt.Errorf("citation verification failed for: %s", strings.Join(failed, ", ")))
	}

	if err := job.MarkCompleted(drafts); err != nil {
		return o.fail(ctx, job, "finalize", err)
	}
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		o.forceFail(ctx, job.ID, "finalize", fmt.Sprintf("failed to persist completion: %v", err), "")
		return err
	}

	o.publishEvent(ctx, interfaces.EventJobCompleted, job)
	o.logger.Info().
		Str("job_id", job.ID).
		Int("articles", len(drafts)).
		Msg("Generation job completed")
	return nil
}

// progress overwrites the whole progress snapshot and persists the row
func (o *Orchestrator) progress(ctx context.Context, job *models.GenerationJob, step, articleIndex int, message string) {
	job.SetProgress(models.JobProgress{
		CurrentStep:    step,
		TotalSteps:     totalSteps,
		CurrentArticle: articleIndex,
		TotalArticles:  clusterLength,
		Message:        message,
	})
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		o.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Msg("Failed to persist progress update")
	}
	o.publishEvent(ctx, interfaces.EventJobProgress, job)
}

// beat returns the heartbeat callback for a job: a no-op write that refreshes
// updated_at so stall detectors can tell "slow but alive" from "crashed".
func (o *Orchestrator) beat(jobID string) func() {
	ctx := context.Background()
	return func() {
		if err := o.jobs.UpdateHeartbeat(ctx, jobID); err != nil {
			o.logger.Warn().
				Err(err).
				Str("job_id", jobID).
				Msg("Heartbeat write failed")
		}
	}
}

// cancelled re-reads the job row at a stage boundary. An externally flipped
// status stops the pipeline for real, not just its progress reporting.
func (o *Orchestrator) cancelled(ctx context.Context, jobID string) bool {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("Cancellation check failed, continuing")
		return false
	}
	if job.Status.IsTerminal() {
		o.logger.Info().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Job reached terminal state externally, halting pipeline")
		return true
	}
	return false
}

// fail writes the structured error and terminal status through the model helpers
func (o *Orchestrator) fail(ctx context.Context, job *models.GenerationJob, step string, cause error) error {
	job.MarkFailed(step, llm.HumanReason(cause), "")
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		// The primary error path itself failed; fall through to the raw write.
		o.forceFail(ctx, job.ID, step, llm.HumanReason(cause), "")
	}
	o.publishEvent(ctx, interfaces.EventJobFailed, job)
	return cause
}

// forceFail is the last-resort terminal write used when the normal failure
// path is unavailable. It re-reads the row and overwrites it regardless of
// transition legality so no job is left generating forever.
func (o *Orchestrator) forceFail(ctx context.Context, jobID, step, message, stack string) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		o.logger.Error().
			Err(err).
			Str("job_id", jobID).
			Msg("Force-fail could not load job row")
		return
	}
	if job.Status == models.JobStatusCompleted {
		return
	}
	job.MarkFailed(step, message, stack)
	if err := o.jobs.UpdateJob(ctx, job); err != nil {
		o.logger.Error().
			Err(err).
			Str("job_id", jobID).
			Msg("Force-fail write failed, job row may be stuck")
	}
}

func (o *Orchestrator) publishEvent(ctx context.Context, eventType interfaces.EventType, job *models.GenerationJob) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: job}); err != nil {
		o.logger.Debug().Err(err).Msg("Event publish failed")
	}
}

func siblingsOf(drafts []models.ArticleDraft, index int) []models.ArticleDraft {
	siblings := make([]models.ArticleDraft, 0, len(drafts)-1)
	for i := range drafts {
		if i != index {
			siblings = append(siblings, drafts[i])
		}
	}
	return siblings
}

func failedHeadlines(drafts []models.ArticleDraft) []string {
	var failed []string
	for i := range drafts {
		if drafts[i].CitationStatus == models.CitationFailed {
			failed = append(failed, drafts[i].Headline)
		}
	}
	return failed
}
