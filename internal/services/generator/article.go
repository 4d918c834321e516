// -----------------------------------------------------------------------
// Article Generator - Single-article content/metadata/image/FAQ production
// -----------------------------------------------------------------------

package generator

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
	"github.com/delsolprimehomes/clustergen/internal/services/images"
	"github.com/delsolprimehomes/clustergen/internal/services/llm"
)

const (
	maxMetaTitleLen       = 60
	maxMetaDescriptionLen = 160
	minBodyWords          = 1200
	faqPerArticle         = 4
	wordsPerMinute        = 200
)

// ClusterParams carries the submission parameters through the per-article loop
type ClusterParams struct {
	Topic          string
	Language       string
	TargetAudience string
	PrimaryKeyword string
}

// ArticleGenerator produces one complete ArticleDraft from an ArticlePlan.
// Citations and cross-linking are later stages; this step owns body,
// metadata, imagery, attribution, and FAQs.
type ArticleGenerator struct {
	llmService interfaces.LLMService
	images     *images.Store
	logger     arbor.ILogger

	bodyRetry    common.RetryConfig
	metaRetry    common.RetryConfig
	faqRetry     common.RetryConfig
	imageTimeout common.RetryConfig
}

// NewArticleGenerator creates an article generator
func NewArticleGenerator(llmService interfaces.LLMService, imageStore *images.Store, cfg *common.GenerationConfig, logger arbor.ILogger) *ArticleGenerator {
	base := common.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   common.ParseDurationOr(cfg.RetryBaseDelay, 0),
		Backoff:     common.BackoffExponential,
		Retryable:   llm.IsRetryable,
	}

	bodyRetry := base
	bodyRetry.Timeout = common.ParseDurationOr(cfg.ArticleTimeout, 0)
	metaRetry := base
	metaRetry.Timeout = common.ParseDurationOr(cfg.ArticleTimeout, 0)
	faqRetry := base
	faqRetry.Timeout = common.ParseDurationOr(cfg.FAQTimeout, 0)
	imageRetry := base
	imageRetry.MaxAttempts = 1
	imageRetry.Timeout = common.ParseDurationOr(cfg.DiagramTimeout, 0)

	return &ArticleGenerator{
		llmService:   llmService,
		images:       imageStore,
		logger:       logger,
		bodyRetry:    bodyRetry,
		metaRetry:    metaRetry,
		faqRetry:     faqRetry,
		imageTimeout: imageRetry,
	}
}

// GenerateArticle runs the full per-article sequence for one plan. Image
// failures are absorbed with placeholders; everything else propagates.
func (g *ArticleGenerator) GenerateArticle(ctx context.Context, plan *models.ArticlePlan, params *ClusterParams, index int) (*models.ArticleDraft, error) {
	draft := &models.ArticleDraft{
		ID:            common.NewArticleID(),
		FunnelStage:   plan.FunnelStage,
		Headline:      plan.Headline,
		Slug:          common.Slugify(plan.Headline),
		Language:      params.Language,
		TargetKeyword: plan.TargetKeyword,
		Reviewer:      DefaultReviewer,
	}

	body, err := g.generateBody(ctx, plan, params)
	if err != nil {
		return nil, fmt.Errorf("body generation for %q: %w", plan.Headline, err)
	}
	draft.BodyHTML = body
	draft.ReadTimeMinutes = readTime(body)

	meta, err := g.generateMetadata(ctx, plan, params)
	if err != nil {
		return nil, fmt.Errorf("metadata generation for %q: %w", plan.Headline, err)
	}
	draft.MetaTitle = truncateRunes(meta.MetaTitle, maxMetaTitleLen)
	draft.MetaDescription = truncateRunes(meta.MetaDescription, maxMetaDescriptionLen)
	draft.SpeakableAnswer = meta.SpeakableAnswer
	draft.Category = g.resolveCategory(meta.Category, plan.TargetKeyword)

	author := ResolveAuthor(meta.Author)
	draft.Author = author.Name

	// Imagery never fails the article.
	g.attachImages(ctx, draft, plan, params, index)

	if plan.FunnelStage != models.FunnelTOFU {
		faqs, err := g.generateFAQs(ctx, plan, params.Language)
		if err != nil {
			return nil, fmt.Errorf("FAQ generation for %q: %w", plan.Headline, err)
		}
		draft.FAQs = faqs
	}

	return draft, nil
}

func (g *ArticleGenerator) generateBody(ctx context.Context, plan *models.ArticlePlan, params *ClusterParams) (string, error) {
	prompt := buildBodyPrompt(plan, params.Topic, params.Language, params.TargetAudience)

	var body string
	err := common.Retry(ctx, g.logger, "article body", g.bodyRetry, func(ctx context.Context) error {
		response, err := g.llmService.Chat(ctx, []interfaces.Message{
			{Role: "system", Content: "You are an expert real-estate content writer. Output clean HTML only."},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			return err
		}

		normalized := normalizeBody(response)
		if words := wordCount(normalized); words < minBodyWords {
			return fmt.Errorf("body has %d words, minimum is %d", words, minBodyWords)
		}
		body = normalized
		return nil
	})
	return body, err
}

type articleMetadata struct {
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	SpeakableAnswer string `json:"speakable_answer"`
	Category        string `json:"category"`
	Author          string `json:"author"`
}

func (g *ArticleGenerator) generateMetadata(ctx context.Context, plan *models.ArticlePlan, params *ClusterParams) (*articleMetadata, error) {
	prompt := buildMetadataPrompt(plan, params.Topic)

	var meta articleMetadata
	err := common.Retry(ctx, g.logger, "article metadata", g.metaRetry, func(ctx context.Context) error {
		response, err := g.llmService.Chat(ctx, []interfaces.Message{
			{Role: "system", Content: "You are an SEO specialist. Respond with JSON only."},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			return err
		}
		if _, err := llm.ExtractJSON(response, &meta); err != nil {
			return err
		}
		if meta.MetaTitle == "" || meta.MetaDescription == "" {
			return fmt.Errorf("metadata response missing title or description")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (g *ArticleGenerator) resolveCategory(suggested, keyword string) string {
	if resolved, ok := IsAllowedCategory(suggested); ok {
		return resolved
	}
	fallback := FallbackCategory(keyword)
	g.logger.Debug().
		Str("suggested", suggested).
		Str("fallback", fallback).
		Msg("Category suggestion off allow-list, using keyword fallback")
	return fallback
}

func (g *ArticleGenerator) attachImages(ctx context.Context, draft *models.ArticleDraft, plan *models.ArticlePlan, params *ClusterParams, index int) {
	imagePrompt := BuildImagePrompt(plan.FunnelStage, params.Topic, index)

	imageCtx := ctx
	if g.imageTimeout.Timeout > 0 {
		var cancel context.CancelFunc
		imageCtx, cancel = context.WithTimeout(ctx, g.imageTimeout.Timeout)
		defer cancel()
	}

	url, err := g.images.GenerateAndStore(imageCtx, imagePrompt, plan.Headline)
	if err != nil {
		g.logger.Warn().
			Err(err).
			Str("headline", plan.Headline).
			Msg("Featured image fell back to placeholder")
	}
	draft.FeaturedImageURL = url
	draft.FeaturedImageAlt = fmt.Sprintf("%s - %s", plan.Headline, params.Topic)

	if plan.FunnelStage == models.FunnelBOFU {
		diagramURL, err := g.images.GenerateAndStore(imageCtx, buildDiagramPrompt(plan), plan.Headline+" diagram")
		if err != nil {
			g.logger.Warn().
				Err(err).
				Str("headline", plan.Headline).
				Msg("Diagram generation failed, omitting diagram")
			return
		}
		draft.DiagramURL = diagramURL
	}
}

type faqResponse struct {
	FAQs []models.FAQItem `json:"faqs"`
}

func (g *ArticleGenerator) generateFAQs(ctx context.Context, plan *models.ArticlePlan, language string) ([]models.FAQItem, error) {
	prompt := buildFAQPrompt(plan, language, faqPerArticle)

	var faqs []models.FAQItem
	err := common.Retry(ctx, g.logger, "FAQ generation", g.faqRetry, func(ctx context.Context) error {
		response, err := g.llmService.Chat(ctx, []interfaces.Message{
			{Role: "system", Content: "You are a real-estate FAQ writer. Respond with JSON only."},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			return err
		}

		var parsed faqResponse
		if _, err := llm.ExtractJSON(response, &parsed); err != nil {
			return err
		}
		if len(parsed.FAQs) == 0 {
			return fmt.Errorf("FAQ response contained no items")
		}
		faqs = parsed.FAQs
		return nil
	})
	return faqs, err
}

var (
	htmlTagPattern  = regexp.MustCompile(`<[^>]+>`)
	fencedBlockOpen = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")
)

// normalizeBody turns whatever the model returned into clean HTML: code
// fences are stripped, and markdown-looking output is converted with goldmark.
func normalizeBody(raw string) string {
	body := strings.TrimSpace(fencedBlockOpen.ReplaceAllString(raw, ""))

	if strings.Contains(body, "<h2") || strings.Contains(body, "<p>") {
		return body
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(body), &buf); err != nil {
		return body
	}
	return strings.TrimSpace(buf.String())
}

// wordCount counts words in the tag-stripped body
func wordCount(html string) int {
	return len(strings.Fields(htmlTagPattern.ReplaceAllString(html, " ")))
}

func readTime(html string) int {
	minutes := (wordCount(html) + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// truncateRunes enforces a hard character ceiling, cutting at a word boundary
// when one exists near the limit.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:-")
}
