// -----------------------------------------------------------------------
// Article Draft - In-memory article state during generation
// -----------------------------------------------------------------------

package models

// FunnelStage classifies an article by marketing funnel position
type FunnelStage string

const (
	FunnelTOFU FunnelStage = "TOFU"
	FunnelMOFU FunnelStage = "MOFU"
	FunnelBOFU FunnelStage = "BOFU"
)

// CitationStatus marks whether an article cleared the citation gate
type CitationStatus string

const (
	CitationVerified CitationStatus = "verified"
	CitationFailed   CitationStatus = "failed"
)

// Citation is one external source reference attached to an article
type Citation struct {
	SourceName         string  `json:"source_name"`
	URL                string  `json:"url"`
	AnchorText         string  `json:"anchor_text"`
	ContextInArticle   string  `json:"context_in_article"`
	Relevance          float64 `json:"relevance"`
	InsertAfterHeading string  `json:"insert_after_heading"`
}

// FAQItem is one FAQ entity attached to a MOFU/BOFU article
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ArticlePlan is the per-article output of structure planning
type ArticlePlan struct {
	FunnelStage   FunnelStage `json:"funnel_stage"`
	Headline      string      `json:"headline"`
	TargetKeyword string      `json:"target_keyword"`
	SearchIntent  string      `json:"search_intent"`
	ContentAngle  string      `json:"content_angle"`
}

// Validate rejects plans missing any of the required planning fields
func (p *ArticlePlan) Validate() error {
	switch {
	case p.Headline == "":
		return errMissingPlanField("headline")
	case p.TargetKeyword == "":
		return errMissingPlanField("target_keyword")
	case p.SearchIntent == "":
		return errMissingPlanField("search_intent")
	}
	return nil
}

type errMissingPlanField string

func (e errMissingPlanField) Error() string {
	return "article plan missing required field: " + string(e)
}

// ArticleDraft carries everything generated for one article. It lives in
// orchestrator memory during the run and is persisted verbatim into
// GenerationJob.Articles on success.
type ArticleDraft struct {
	ID          string      `json:"id"`
	FunnelStage FunnelStage `json:"funnel_stage"`
	Headline    string      `json:"headline"`
	Slug        string      `json:"slug"`
	Category    string      `json:"category"`
	Language    string      `json:"language"`

	MetaTitle       string `json:"meta_title"`       // <= 60 chars
	MetaDescription string `json:"meta_description"` // <= 160 chars
	SpeakableAnswer string `json:"speakable_answer"` // 40-60 words

	BodyHTML string `json:"body_html"`

	FeaturedImageURL string `json:"featured_image_url"`
	FeaturedImageAlt string `json:"featured_image_alt"`
	DiagramURL       string `json:"diagram_url,omitempty"`

	Author   string `json:"author"`
	Reviewer string `json:"reviewer"`

	Citations             []Citation     `json:"citations"`
	CitationStatus        CitationStatus `json:"citation_status"`
	CitationFailureReason string         `json:"citation_failure_reason,omitempty"`

	FAQs []FAQItem `json:"faqs,omitempty"`

	ReadTimeMinutes int `json:"read_time_minutes"`

	// Link targets by slug; a downstream publish step resolves them to durable IDs.
	InternalLinks []string `json:"internal_links"`
	RelatedSlugs  []string `json:"related_slugs"`
	CTASlugs      []string `json:"cta_slugs"`

	TargetKeyword string `json:"target_keyword"`
}

// FunnelCounts tallies articles per stage
func FunnelCounts(articles []ArticleDraft) (tofu, mofu, bofu int) {
	for _, a := range articles {
		switch a.FunnelStage {
		case FunnelTOFU:
			tofu++
		case FunnelMOFU:
			mofu++
		case FunnelBOFU:
			bofu++
		}
	}
	return
}
