// -----------------------------------------------------------------------
// Citation Finder - LLM-backed external source discovery
// -----------------------------------------------------------------------

package citations

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

// Finder discovers external citations for an article by asking the LLM for
// authoritative sources matching the content. One call per attempt; retry
// policy belongs to the Acquirer.
type Finder struct {
	llmService interfaces.LLMService
	filter     *DomainFilter
	logger     arbor.ILogger
}

// NewFinder creates a citation finder
func NewFinder(llmService interfaces.LLMService, filter *DomainFilter, logger arbor.ILogger) *Finder {
	return &Finder{
		llmService: llmService,
		filter:     filter,
		logger:     logger,
	}
}

type citationResponse struct {
	Citations []struct {
		URL                string  `json:"url"`
		SourceName         string  `json:"source_name"`
		AnchorText         string  `json:"anchor_text"`
		ContextInArticle   string  `json:"context_in_article"`
		Relevance          float64 `json:"relevance"`
		InsertAfterHeading string  `json:"insert_after_heading"`
	} `json:"citations"`
}

// FindCitations performs one discovery call. When RequireApprovedDomains is
// set (the last-resort attempt) the prompt pins the model to the allow-list
// and the response is filtered strictly before returning.
func (f *Finder) FindCitations(ctx context.Context, req *interfaces.CitationRequest) ([]models.Citation, error) {
	prompt := f.buildPrompt(req)

	response, err := f.llmService.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: "You are a research assistant for real-estate market content. You only cite real, authoritative sources. Respond with JSON only."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("citation discovery call failed: %w", err)
	}

	var parsed citationResponse
	strategy, err := llm.ExtractJSON(response, &parsed)
	if err != nil {
		return nil, err
	}
	if strategy != llm.ParseDirect {
		f.logger.Debug().
			Str("strategy", string(strategy)).
			Msg("Citation response needed relaxed JSON extraction")
	}

	citations := make([]models.Citation, 0, len(parsed.Citations))
	for _, c := range parsed.Citations {
		if strings.TrimSpace(c.URL) == "" {
			continue
		}
		citations = append(citations, models.Citation{
			URL:                c.URL,
			SourceName:         c.SourceName,
			AnchorText:         c.AnchorText,
			ContextInArticle:   c.ContextInArticle,
			Relevance:          c.Relevance,
			InsertAfterHeading: c.InsertAfterHeading,
		})
	}

	if req.RequireApprovedDomains {
		citations = f.filter.Filter(citations).Approved
	}

	return citations, nil
}

func (f *Finder) buildPrompt(req *interfaces.CitationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Find authoritative external citations for this article.\n\nHeadline: %s\nLanguage: %s\n\n", req.Headline, req.Language)

	if req.RequireApprovedDomains {
		b.WriteString("STRICT MODE: only use these domains, nothing else:\n")
		for _, d := range DefaultApprovedDomains {
			b.WriteString("- " + d + "\n")
		}
		b.WriteString("\n")
	}

	excerpt := req.Content
	if len(excerpt) > 4000 {
		excerpt = excerpt[:4000]
	}
	fmt.Fprintf(&b, "Article content:\n%s\n\n", excerpt)
	b.WriteString(`Return JSON: {"citations":[{"url","source_name","anchor_text","context_in_article","relevance","insert_after_heading"}]}. At least 2 citations.`)
	return b.String()
}

// Acquirer drives the blocking citation gate for one article: up to N
// attempts with linear backoff (2s x attempt), the final attempt restricted
// to approved domains as a last resort. Success = at least MinCitations
// approved citations accumulated across attempts.
type Acquirer struct {
	finder       interfaces.CitationFinder
	filter       *DomainFilter
	logger       arbor.ILogger
	MaxAttempts  int
	MinCitations int
	BaseDelay    time.Duration
	Timeout      time.Duration
}

// NewAcquirer creates an acquirer with the pipeline defaults
func NewAcquirer(finder interfaces.CitationFinder, filter *DomainFilter, cfg *common.GenerationConfig, logger arbor.ILogger) *Acquirer {
	attempts := cfg.CitationAttempts
	if attempts <= 0 {
		attempts = 3
	}
	minCitations := cfg.MinCitations
	if minCitations <= 0 {
		minCitations = 2
	}
	return &Acquirer{
		finder:       finder,
		filter:       filter,
		logger:       logger,
		MaxAttempts:  attempts,
		MinCitations: minCitations,
		BaseDelay:    2 * time.Second,
		Timeout:      common.ParseDurationOr(cfg.CitationTimeout, 30*time.Second),
	}
}

// Acquire accumulates approved citations across attempts. It returns whatever
// was collected together with a nil error on success, or the collected subset
// and a shortfall error after attempts are exhausted - the caller records the
// failure on the article and keeps going; the job-level gate fires later.
func (a *Acquirer) Acquire(ctx context.Context, content, headline, language string) ([]models.Citation, error) {
	var collected []models.Citation
	attempt := 0

	err := common.Retry(ctx, a.logger, fmt.Sprintf("citation discovery for %q", headline), common.RetryConfig{
		MaxAttempts: a.MaxAttempts,
		BaseDelay:   a.BaseDelay,
		Backoff:     common.BackoffLinear,
		Timeout:     a.Timeout,
		Retryable:   llm.IsRetryable,
	}, func(ctx context.Context) error {
		attempt++
		found, err := a.finder.FindCitations(ctx, &interfaces.CitationRequest{
			Content:                content,
			Headline:               headline,
			Language:               language,
			AttemptNumber:          attempt,
			RequireApprovedDomains: attempt >= a.MaxAttempts,
		})
		if err != nil {
			return err
		}

		approved := a.filter.Filter(found).Approved
		collected = DedupeByURL(append(collected, approved...))
		if len(collected) < a.MinCitations {
			return fmt.Errorf("only %d of %d required citations after attempt %d", len(collected), a.MinCitations, attempt)
		}
		return nil
	})

	return collected, err
}
