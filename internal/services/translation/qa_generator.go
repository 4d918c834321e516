// -----------------------------------------------------------------------
// LLM Q&A Generator - Production QAGenerator backed by the LLM provider
// -----------------------------------------------------------------------

package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
	"github.com/delsolprimehomes/clustergen/internal/services/llm"
)

// LLMQAGenerator implements interfaces.QAGenerator against the LLM provider
// and the content store. Translation batches anchor each new row into the
// source item's hreflang group and the target-language article; an anchor
// that cannot be resolved means the row is not inserted, which is what the
// machine's no-progress detection keys on.
type LLMQAGenerator struct {
	llmService     interfaces.LLMService
	content        interfaces.ContentStorage
	sourceLanguage string
	retryCfg       common.RetryConfig
	logger         arbor.ILogger
}

// NewLLMQAGenerator creates the production Q&A generator
func NewLLMQAGenerator(llmService interfaces.LLMService, content interfaces.ContentStorage, cfg *common.TranslationConfig, logger arbor.ILogger) *LLMQAGenerator {
	source := cfg.SourceLanguage
	if source == "" {
		source = "en"
	}
	return &LLMQAGenerator{
		llmService:     llmService,
		content:        content,
		sourceLanguage: source,
		retryCfg: common.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Backoff:     common.BackoffExponential,
			Timeout:     common.ParseDurationOr(cfg.BatchTimeout, 60*time.Second),
			Retryable:   llm.IsRetryable,
		},
		logger: logger,
	}
}

type qaGenResponse struct {
	Items []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"items"`
}

// GenerateQA produces count fresh Q&A items for a source-language article.
// Each item gets its own hreflang group; translations join the group later.
func (g *LLMQAGenerator) GenerateQA(ctx context.Context, article *models.PublishedArticle, count int) ([]models.QAItem, error) {
	prompt := fmt.Sprintf(`Generate %d question/answer pairs for this real-estate article.

Headline: %s
Language: %s
Funnel stage: %s

Questions a prospective buyer would actually ask; answers 2-4 sentences, concrete.

Return JSON only: {"items":[{"question":"...","answer":"..."}]}`,
		count, article.Headline, article.Language, article.FunnelStage)

	var parsed qaGenResponse
	err := common.Retry(ctx, g.logger, "Q&A generation", g.retryCfg, func(ctx context.Context) error {
		response, err := g.llmService.Chat(ctx, []interfaces.Message{
			{Role: "system", Content: "You are a real-estate Q&A writer. Respond with JSON only."},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			return err
		}
		if _, err := llm.ExtractJSON(response, &parsed); err != nil {
			return err
		}
		if len(parsed.Items) == 0 {
			return fmt.Errorf("Q&A response contained no items")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(parsed.Items) > count {
		parsed.Items = parsed.Items[:count]
	}

	now := time.Now().UTC()
	items := make([]models.QAItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		items = append(items, models.QAItem{
			ID:              common.NewQAID(),
			ClusterSlug:     article.ClusterSlug,
			SourceArticleID: article.ID,
			Language:        article.Language,
			Question:        item.Question,
			Answer:          item.Answer,
			HreflangGroupID: common.NewGroupID(),
			Translations:    map[string]string{},
			CreatedAt:       now,
		})
	}
	return items, nil
}

type qaTranslation struct {
	GroupID  string `json:"group_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TranslateBatch translates up to batchSize pending source items into the
// target language and persists the new rows. Items whose target-language
// article is missing are skipped: they cannot be anchored, and the resulting
// zero-progress batches are how the caller learns the language is blocked.
func (g *LLMQAGenerator) TranslateBatch(ctx context.Context, clusterSlug, targetLanguage string, batchSize int) (*interfaces.TranslationBatchResult, error) {
	allQA, err := g.content.GetClusterQA(ctx, clusterSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster Q&A: %w", err)
	}
	articles, err := g.content.GetClusterArticles(ctx, clusterSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster articles: %w", err)
	}

	targetTotal := 0
	translatedGroups := make(map[string]bool)
	var sourceItems []*models.QAItem
	for _, item := range allQA {
		switch item.Language {
		case targetLanguage:
			targetTotal++
			translatedGroups[item.HreflangGroupID] = true
		case g.sourceLanguage:
			sourceItems = append(sourceItems, item)
		}
	}

	// Target-language article per source article, resolved through the
	// source article's hreflang group.
	targetArticles := make(map[string]*models.PublishedArticle)
	for _, a := range articles {
		if a.Language == targetLanguage {
			targetArticles[a.HreflangGroupID] = a
		}
	}
	sourceArticleGroup := make(map[string]string)
	for _, a := range articles {
		if a.Language == g.sourceLanguage {
			sourceArticleGroup[a.ID] = a.HreflangGroupID
		}
	}

	var pending []*models.QAItem
	for _, item := range sourceItems {
		if translatedGroups[item.HreflangGroupID] {
			continue
		}
		if targetArticles[sourceArticleGroup[item.SourceArticleID]] == nil {
			continue
		}
		pending = append(pending, item)
		if len(pending) >= batchSize {
			break
		}
	}

	if len(pending) == 0 {
		return &interfaces.TranslationBatchResult{Translated: 0, Total: targetTotal}, nil
	}

	translations, err := g.translateItems(ctx, pending, targetLanguage)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[string]qaTranslation, len(translations))
	for _, t := range translations {
		byGroup[t.GroupID] = t
	}

	now := time.Now().UTC()
	inserted := 0
	for _, source := range pending {
		t, ok := byGroup[source.HreflangGroupID]
		if !ok || strings.TrimSpace(t.Question) == "" {
			continue
		}

		anchor := targetArticles[sourceArticleGroup[source.SourceArticleID]]
		item := models.QAItem{
			ID:              common.NewQAID(),
			ClusterSlug:     clusterSlug,
			SourceArticleID: anchor.ID,
			Language:        targetLanguage,
			Question:        t.Question,
			Answer:          t.Answer,
			HreflangGroupID: source.HreflangGroupID,
			Translations:    map[string]string{g.sourceLanguage: source.ID},
			CreatedAt:       now,
		}
		if err := g.content.SaveQA(ctx, &item); err != nil {
			return nil, fmt.Errorf("failed to save translated Q&A: %w", err)
		}

		if source.Translations == nil {
			source.Translations = map[string]string{}
		}
		source.Translations[targetLanguage] = item.ID
		if err := g.content.SaveQA(ctx, source); err != nil {
			return nil, fmt.Errorf("failed to update source Q&A translations: %w", err)
		}
		inserted++
	}

	return &interfaces.TranslationBatchResult{Translated: inserted, Total: targetTotal + inserted}, nil
}

func (g *LLMQAGenerator) translateItems(ctx context.Context, items []*models.QAItem, targetLanguage string) ([]qaTranslation, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate these Q&A pairs into %s. Keep the group_id of each pair unchanged.\n\n", targetLanguage)
	for _, item := range items {
		fmt.Fprintf(&b, "group_id: %s\nQ: %s\nA: %s\n\n", item.HreflangGroupID, item.Question, item.Answer)
	}
	b.WriteString(`Return JSON only: {"items":[{"group_id":"...","question":"...","answer":"..."}]}`)

	var parsed struct {
		Items []qaTranslation `json:"items"`
	}
	err := common.Retry(ctx, g.logger, "Q&A batch translation", g.retryCfg, func(ctx context.Context) error {
		response, err := g.llmService.Chat(ctx, []interfaces.Message{
			{Role: "system", Content: "You are a professional translator for real-estate content. Respond with JSON only."},
			{Role: "user", Content: b.String()},
		})
		if err != nil {
			return err
		}
		_, err = llm.ExtractJSON(response, &parsed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return parsed.Items, nil
}
