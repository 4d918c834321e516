// -----------------------------------------------------------------------
// Published Content - Article and Q&A rows the translation machine drives
// -----------------------------------------------------------------------

package models

import "time"

// PublishedArticle is a live content row produced by the publish step.
// Same-meaning articles across languages share a HreflangGroupID.
type PublishedArticle struct {
	ID              string            `badgerhold:"key" json:"id"`
	ClusterSlug     string            `badgerholdIndex:"ClusterSlug" json:"cluster_slug"`
	Slug            string            `json:"slug"`
	Headline        string            `json:"headline"`
	Language        string            `badgerholdIndex:"Language" json:"language"`
	FunnelStage     FunnelStage       `json:"funnel_stage"`
	HreflangGroupID string            `json:"hreflang_group_id"`
	Translations    map[string]string `json:"translations"` // language code -> slug
	PublishedAt     time.Time         `json:"published_at"`
}

// QAItem is one question/answer row attached to a published article.
// Orphaned = a non-source-language row whose HreflangGroupID is not shared
// with any source-language row for the same cluster.
type QAItem struct {
	ID              string            `badgerhold:"key" json:"id"`
	ClusterSlug     string            `badgerholdIndex:"ClusterSlug" json:"cluster_slug"`
	SourceArticleID string            `badgerholdIndex:"SourceArticleID" json:"source_article_id"`
	Language        string            `badgerholdIndex:"Language" json:"language"`
	Question        string            `json:"question"`
	Answer          string            `json:"answer"`
	HreflangGroupID string            `json:"hreflang_group_id"`
	Translations    map[string]string `json:"translations"`
	CreatedAt       time.Time         `json:"created_at"`
}

// BlockedReason distinguishes why a target language stopped making progress,
// so the operator can run a targeted repair instead of blindly retrying.
type BlockedReason string

const (
	// BlockedMissingArticleLinking: translated articles never got linked into
	// the source articles' hreflang groups, so batches cannot anchor new Q&A.
	BlockedMissingArticleLinking BlockedReason = "missing_article_linking"
	// BlockedQALinkingMismatch: articles are linked but translated Q&A rows
	// point at the wrong source article or group.
	BlockedQALinkingMismatch BlockedReason = "qa_linking_mismatch"
)

// LanguageProgress is the per-language snapshot the completion machine reports
type LanguageProgress struct {
	Language      string        `json:"language"`
	QACount       int           `json:"qa_count"`
	Target        int           `json:"target"`
	Complete      bool          `json:"complete"`
	Blocked       bool          `json:"blocked"`
	BlockedReason BlockedReason `json:"blocked_reason,omitempty"`
	BatchesRun    int           `json:"batches_run"`
}

// ClusterClaim guards against two concurrent generation jobs targeting the
// same cluster. Insert-if-absent at submit, released on terminal state.
type ClusterClaim struct {
	ClusterSlug string    `badgerhold:"key" json:"cluster_slug"`
	JobID       string    `json:"job_id"`
	CreatedAt   time.Time `json:"created_at"`
}
