// -----------------------------------------------------------------------
// Completion Machine - Two-phase translation/Q&A parity driver
// -----------------------------------------------------------------------

package translation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
)

// noProgressLimit aborts a language after this many consecutive zero-progress
// batches. Two in a row means the batch endpoint cannot anchor anything new
// and more batches would just spin.
const noProgressLimit = 2

// Machine drives a published cluster's Q&A set to cross-language parity.
// Phase 1 tops every source-language article up to the fixed per-article Q&A
// count; Phase 2 translates the full set into each target language in bounded
// batches. Both phases are idempotent: complete work is detected and skipped.
type Machine struct {
	content   interfaces.ContentStorage
	generator interfaces.QAGenerator
	events    interfaces.EventService
	logger    arbor.ILogger

	sourceLanguage  string
	targetLanguages []string
	qaPerArticle    int
	batchSize       int
	maxBatches      int
	maxConcurrent   int
}

// NewMachine creates a completion machine from configuration
func NewMachine(content interfaces.ContentStorage, generator interfaces.QAGenerator, events interfaces.EventService, cfg *common.TranslationConfig, logger arbor.ILogger) *Machine {
	m := &Machine{
		content:         content,
		generator:       generator,
		events:          events,
		logger:          logger,
		sourceLanguage:  cfg.SourceLanguage,
		targetLanguages: cfg.TargetLanguages,
		qaPerArticle:    cfg.QAPerArticle,
		batchSize:       cfg.BatchSize,
		maxBatches:      cfg.MaxBatches,
		maxConcurrent:   cfg.MaxConcurrent,
	}
	if m.sourceLanguage == "" {
		m.sourceLanguage = "en"
	}
	if m.qaPerArticle <= 0 {
		m.qaPerArticle = 4
	}
	if m.batchSize <= 0 {
		m.batchSize = 5
	}
	if m.maxBatches <= 0 {
		m.maxBatches = 10
	}
	if m.maxConcurrent <= 0 {
		m.maxConcurrent = 3
	}
	return m
}

// ClusterStatus is the cross-language snapshot reported to operators
type ClusterStatus struct {
	ClusterSlug string                    `json:"cluster_slug"`
	Target      int                       `json:"target"`
	Languages   []models.LanguageProgress `json:"languages"`
}

// Status reports per-language Q&A counts from one atomic snapshot query, so a
// caller never sees a partially-updated cross-language view while batch
// inserts are still landing.
func (m *Machine) Status(ctx context.Context, clusterSlug string) (*ClusterStatus, error) {
	allQA, err := m.content.GetClusterQA(ctx, clusterSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster Q&A: %w", err)
	}

	counts := make(map[string]int)
	for _, item := range allQA {
		counts[item.Language]++
	}
	target := counts[m.sourceLanguage]

	status := &ClusterStatus{ClusterSlug: clusterSlug, Target: target}
	for _, lang := range m.targetLanguages {
		status.Languages = append(status.Languages, models.LanguageProgress{
			Language: lang,
			QACount:  counts[lang],
			Target:   target,
			Complete: target > 0 && counts[lang] >= target,
		})
	}
	sort.Slice(status.Languages, func(i, j int) bool {
		return status.Languages[i].Language < status.Languages[j].Language
	})
	return status, nil
}

// Run executes both phases in order
func (m *Machine) Run(ctx context.Context, clusterSlug string) ([]models.LanguageProgress, error) {
	if err := m.RunPhase1(ctx, clusterSlug); err != nil {
		return nil, err
	}
	return m.RunPhase2(ctx, clusterSlug)
}

// RunPhase1 tops every source-language article up to the per-article Q&A
// count. Idempotent at the article level: a complete article is a no-op and a
// partially complete one only requests the missing count.
func (m *Machine) RunPhase1(ctx context.Context, clusterSlug string) error {
	articles, err := m.content.GetClusterArticles(ctx, clusterSlug)
	if err != nil {
		return fmt.Errorf("failed to load cluster articles: %w", err)
	}
	allQA, err := m.content.GetClusterQA(ctx, clusterSlug)
	if err != nil {
		return fmt.Errorf("failed to load cluster Q&A: %w", err)
	}

	existing := make(map[string]int)
	for _, item := range allQA {
		if item.Language == m.sourceLanguage {
			existing[item.SourceArticleID]++
		}
	}

	for _, article := range articles {
		if article.Language != m.sourceLanguage {
			continue
		}

		missing := m.qaPerArticle - existing[article.ID]
		if missing <= 0 {
			continue
		}

		m.logger.Info().
			Str("article_id", article.ID).
			Str("headline", article.Headline).
			Int("missing", missing).
			Msg("Generating missing source-language Q&A")

		items, err := m.generator.GenerateQA(ctx, article, missing)
		if err != nil {
			return fmt.Errorf("Q&A generation for %q: %w", article.Headline, err)
		}
		for i := range items {
			if err := m.content.SaveQA(ctx, &items[i]); err != nil {
				return fmt.Errorf("failed to save Q&A: %w", err)
			}
			m.publishEvent(ctx, interfaces.EventQAInserted, &items[i])
		}
	}
	return nil
}

// RunPhase2 drives every incomplete target language to parity with the source
// set. Languages run concurrently up to the configured limit; a language
// already at target is terminal and never re-invoked. Each language loops
// batch calls until it reaches the target, hits the batch cap, or trips the
// no-progress detector.
func (m *Machine) RunPhase2(ctx context.Context, clusterSlug string) ([]models.LanguageProgress, error) {
	status, err := m.Status(ctx, clusterSlug)
	if err != nil {
		return nil, err
	}
	if status.Target == 0 {
		return nil, fmt.Errorf("cluster %s has no source-language Q&A; run phase 1 first", clusterSlug)
	}

	results := make([]models.LanguageProgress, len(status.Languages))
	sem := make(chan struct{}, m.maxConcurrent)
	var wg sync.WaitGroup

	for i, lang := range status.Languages {
		if lang.Complete {
			results[i] = lang
			continue
		}

		wg.Add(1)
		go func(i int, lang models.LanguageProgress) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = m.runLanguage(ctx, clusterSlug, lang.Language, status.Target)
		}(i, lang)
	}
	wg.Wait()

	return results, nil
}

// runLanguage loops batches for one target language
func (m *Machine) runLanguage(ctx context.Context, clusterSlug, language string, target int) models.LanguageProgress {
	progress := models.LanguageProgress{Language: language, Target: target}
	zeroStreak := 0

	for batch := 0; batch < m.maxBatches; batch++ {
		if ctx.Err() != nil {
			return progress
		}

		result, err := m.generator.TranslateBatch(ctx, clusterSlug, language, m.batchSize)
		progress.BatchesRun = batch + 1
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("language", language).
				Int("batch", batch+1).
				Msg("Translation batch failed")
			return progress
		}

		progress.QACount = result.Total
		if result.Total >= target {
			progress.Complete = true
			m.logger.Info().
				Str("language", language).
				Int("total", result.Total).
				Int("batches", progress.BatchesRun).
				Msg("Language reached Q&A parity")
			return progress
		}

		if result.Translated == 0 {
			zeroStreak++
			if zeroStreak >= noProgressLimit {
				progress.Blocked = true
				progress.BlockedReason = m.classifyBlocked(ctx, clusterSlug, language)
				m.logger.Warn().
					Str("language", language).
					Str("reason", string(progress.BlockedReason)).
					Int("total", result.Total).
					Msg("Language blocked: no progress across consecutive batches")
				m.publishEvent(ctx, interfaces.EventLanguageBlocked, progress)
				return progress
			}
		} else {
			zeroStreak = 0
		}
	}

	m.logger.Warn().
		Str("language", language).
		Int("total", progress.QACount).
		Msg("Language hit the batch safety cap before reaching parity")
	return progress
}

// classifyBlocked distinguishes why a language stopped progressing: if
// target-language articles never joined the source articles' hreflang groups
// the batches have nothing to anchor to (missing_article_linking); otherwise
// the articles are linked and the fault lies in the Q&A rows themselves
// (qa_linking_mismatch).
func (m *Machine) classifyBlocked(ctx context.Context, clusterSlug, language string) models.BlockedReason {
	articles, err := m.content.GetClusterArticles(ctx, clusterSlug)
	if err != nil {
		return models.BlockedQALinkingMismatch
	}

	sourceGroups := make(map[string]bool)
	linkedGroups := make(map[string]bool)
	for _, a := range articles {
		switch a.Language {
		case m.sourceLanguage:
			sourceGroups[a.HreflangGroupID] = true
		case language:
			linkedGroups[a.HreflangGroupID] = true
		}
	}

	for group := range sourceGroups {
		if !linkedGroups[group] {
			return models.BlockedMissingArticleLinking
		}
	}
	return models.BlockedQALinkingMismatch
}

func (m *Machine) publishEvent(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		m.logger.Debug().Err(err).Msg("Event publish failed")
	}
}
