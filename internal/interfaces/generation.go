package interfaces

import (
	"context"

	"github.com/delsolprimehomes/clustergen/internal/models"
)

// CitationRequest is one citation-discovery call for an article
type CitationRequest struct {
	Content                string
	Headline               string
	Language               string
	AttemptNumber          int
	RequireApprovedDomains bool
}

// CitationFinder discovers external citations for generated content.
// The orchestrator retries it with linear backoff and requires approved
// domains only on the final attempt.
type CitationFinder interface {
	FindCitations(ctx context.Context, req *CitationRequest) ([]models.Citation, error)
}

// TranslationBatchResult reports one Phase-2 batch call
type TranslationBatchResult struct {
	Translated int // net new items this batch
	Total      int // language total after the batch
}

// QAGenerator produces and translates Q&A items. Backed by the LLM provider
// in production; scripted in tests.
type QAGenerator interface {
	// GenerateQA produces count Q&A items for a source-language article.
	GenerateQA(ctx context.Context, article *models.PublishedArticle, count int) ([]models.QAItem, error)

	// TranslateBatch translates up to batchSize pending Q&A items into the
	// target language and reports the language's new total.
	TranslateBatch(ctx context.Context, clusterSlug, targetLanguage string, batchSize int) (*TranslationBatchResult, error)
}
