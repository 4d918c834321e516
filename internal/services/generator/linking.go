// -----------------------------------------------------------------------
// Linker - Citation splicing, placeholder repair, and cross-linking
// -----------------------------------------------------------------------

package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
	"github.com/delsolprimehomes/clustergen/internal/services/citations"
	"github.com/delsolprimehomes/clustergen/internal/services/llm"
)

const maxRelatedArticles = 7

// Linker splices citations and internal links into article bodies, repairs
// leftover placeholder tokens, and applies the structural funnel cross-links.
type Linker struct {
	llmService interfaces.LLMService
	filter     *citations.DomainFilter
	logger     arbor.ILogger

	repairRetry common.RetryConfig
	linkRetry   common.RetryConfig
}

// NewLinker creates a linker
func NewLinker(llmService interfaces.LLMService, filter *citations.DomainFilter, cfg *common.GenerationConfig, logger arbor.ILogger) *Linker {
	base := common.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   common.ParseDurationOr(cfg.RetryBaseDelay, 0),
		Backoff:     common.BackoffExponential,
		Retryable:   llm.IsRetryable,
	}

	repairRetry := base
	repairRetry.Timeout = common.ParseDurationOr(cfg.RepairTimeout, 0)
	linkRetry := base
	linkRetry.Timeout = common.ParseDurationOr(cfg.FAQTimeout, 0)

	return &Linker{
		llmService:  llmService,
		filter:      filter,
		logger:      logger,
		repairRetry: repairRetry,
		linkRetry:   linkRetry,
	}
}

// InsertCitations splices each citation into the body immediately after the
// first paragraph following its designated heading. Citations from blocked
// domains are dropped here and their inline anchors scrubbed, never left dangling.
func (l *Linker) InsertCitations(article *models.ArticleDraft) error {
	result := l.filter.Filter(article.Citations)
	if len(result.Blocked) > 0 {
		article.BodyHTML = l.filter.StripBlockedLinks(article.BodyHTML, result.Blocked)
		article.Citations = result.Approved
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.BodyHTML))
	if err != nil {
		return fmt.Errorf("failed to parse body for citation insertion: %w", err)
	}

	for _, c := range article.Citations {
		anchor := citationParagraph(c)
		if target := insertionPoint(doc, c.InsertAfterHeading); target != nil {
			target.AfterHtml(anchor)
		} else {
			doc.Find("body").AppendHtml(anchor)
		}
	}

	html, err := doc.Find("body").Html()
	if err != nil {
		return fmt.Errorf("failed to render body after citation insertion: %w", err)
	}
	article.BodyHTML = html
	return nil
}

// citationParagraph renders the inline citation idiom
func citationParagraph(c models.Citation) string {
	context := strings.TrimSpace(c.ContextInArticle)
	if context != "" && !strings.HasSuffix(context, ".") {
		context += "."
	}
	return fmt.Sprintf(`<p>According to the <a href="%s" target="_blank" rel="noopener noreferrer">%s</a>, %s</p>`,
		c.URL, c.SourceName, context)
}

// insertionPoint finds the first paragraph after the heading whose text
// matches case-insensitively. Nil when no heading matches.
func insertionPoint(doc *goquery.Document, heading string) *goquery.Selection {
	heading = strings.ToLower(strings.TrimSpace(heading))
	if heading == "" {
		return nil
	}

	var target *goquery.Selection
	doc.Find("h2, h3").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if strings.ToLower(strings.TrimSpace(s.Text())) != heading {
			return true
		}
		if p := s.NextAllFiltered("p").First(); p.Length() > 0 {
			target = p
		}
		return false
	})
	return target
}

// RepairPlaceholders sends leftover unresolved-citation tokens through a
// dedicated repair pass. Replacement citations are approved-domain filtered
// and merged (deduplicated by URL) into the article's citation list; the
// tokens themselves are scrubbed from the body either way.
func (l *Linker) RepairPlaceholders(ctx context.Context, article *models.ArticleDraft) error {
	tokens := placeholderPattern.FindAllString(article.BodyHTML, -1)
	if len(tokens) == 0 {
		return nil
	}

	l.logger.Info().
		Int("placeholders", len(tokens)).
		Str("headline", article.Headline).
		Msg("Running placeholder repair pass")

	var replacements []models.Citation
	err := common.Retry(ctx, l.logger, "placeholder repair", l.repairRetry, func(ctx context.Context) error {
		response, err := l.llmService.Chat(ctx, []interfaces.Message{
			{Role: "system", Content: "You are a research assistant. Respond with JSON only."},
			{Role: "user", Content: buildRepairPrompt(article.Headline, tokens)},
		})
		if err != nil {
			return err
		}

		var parsed struct {
			Citations []models.Citation `json:"citations"`
		}
		if _, err := llm.ExtractJSON(response, &parsed); err != nil {
			return err
		}
		replacements = parsed.Citations
		return nil
	})
	if err != nil {
		// Repair is best effort: scrub the tokens and keep the citations already captured.
		l.logger.Warn().
			Err(err).
			Str("headline", article.Headline).
			Msg("Placeholder repair failed, scrubbing tokens without replacements")
	} else {
		approved := l.filter.Filter(replacements).Approved
		article.Citations = citations.DedupeByURL(append(article.Citations, approved...))
	}

	article.BodyHTML = placeholderPattern.ReplaceAllString(article.BodyHTML, "")
	return nil
}

type internalLinkResponse struct {
	Links []struct {
		Slug               string `json:"slug"`
		AnchorText         string `json:"anchor_text"`
		InsertAfterHeading string `json:"insert_after_heading"`
	} `json:"links"`
}

// InsertInternalLinks asks the LLM which finished siblings deserve contextual
// in-body links and splices them the same way as citations. Suggested slugs
// outside the sibling set are dropped.
func (l *Linker) InsertInternalLinks(ctx context.Context, article *models.ArticleDraft, siblings []models.ArticleDraft) error {
	if len(siblings) == 0 {
		return nil
	}

	bySlug := make(map[string]*models.ArticleDraft, len(siblings))
	for i := range siblings {
		bySlug[siblings[i].Slug] = &siblings[i]
	}

	var parsed internalLinkResponse
	err := common.Retry(ctx, l.logger, "internal link matching", l.linkRetry, func(ctx context.Context) error {
		response, err := l.llmService.Chat(ctx, []interfaces.Message{
			{Role: "system", Content: "You are an internal-linking specialist. Respond with JSON only."},
			{Role: "user", Content: buildInternalLinkPrompt(article, siblings)},
		})
		if err != nil {
			return err
		}
		_, err = llm.ExtractJSON(response, &parsed)
		return err
	})
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.BodyHTML))
	if err != nil {
		return fmt.Errorf("failed to parse body for internal links: %w", err)
	}

	for _, link := range parsed.Links {
		sibling, ok := bySlug[link.Slug]
		if !ok {
			l.logger.Debug().
				Str("slug", link.Slug).
				Msg("Suggested internal link is not a cluster sibling, dropping")
			continue
		}

		anchorText := link.AnchorText
		if strings.TrimSpace(anchorText) == "" {
			anchorText = sibling.Headline
		}
		html := fmt.Sprintf(`<p>Read more: <a href="/%s/%s">%s</a></p>`, article.Language, sibling.Slug, anchorText)

		if target := insertionPoint(doc, link.InsertAfterHeading); target != nil {
			target.AfterHtml(html)
		} else {
			doc.Find("body").AppendHtml(html)
		}
		article.InternalLinks = appendUnique(article.InternalLinks, sibling.Slug)
	}

	html, err := doc.Find("body").Html()
	if err != nil {
		return fmt.Errorf("failed to render body after internal links: %w", err)
	}
	article.BodyHTML = html
	return nil
}

// ApplyFunnelLinks applies the structural cross-linking rules to the whole
// cluster: TOFU CTAs point at every MOFU article, MOFU CTAs point at the BOFU
// article, BOFU has no CTA (it hands off to live chat instead). Related lists
// fill up to 7 entries, same stage first, then the rest.
func ApplyFunnelLinks(articles []models.ArticleDraft) {
	var mofuSlugs, bofuSlugs []string
	for i := range articles {
		switch articles[i].FunnelStage {
		case models.FunnelMOFU:
			mofuSlugs = append(mofuSlugs, articles[i].Slug)
		case models.FunnelBOFU:
			bofuSlugs = append(bofuSlugs, articles[i].Slug)
		}
	}

	for i := range articles {
		a := &articles[i]

		switch a.FunnelStage {
		case models.FunnelTOFU:
			a.CTASlugs = append([]string(nil), mofuSlugs...)
		case models.FunnelMOFU:
			a.CTASlugs = append([]string(nil), bofuSlugs...)
		default:
			a.CTASlugs = nil
		}

		a.RelatedSlugs = relatedSlugs(a, articles)
	}
}

// relatedSlugs prefers same-stage siblings, then fills from the rest
func relatedSlugs(a *models.ArticleDraft, articles []models.ArticleDraft) []string {
	var same, other []string
	for i := range articles {
		if articles[i].Slug == a.Slug {
			continue
		}
		if articles[i].FunnelStage == a.FunnelStage {
			same = append(same, articles[i].Slug)
		} else {
			other = append(other, articles[i].Slug)
		}
	}

	related := append(same, other...)
	if len(related) > maxRelatedArticles {
		related = related[:maxRelatedArticles]
	}
	return related
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
