// -----------------------------------------------------------------------
// Prompts - Prompt construction and fixed editorial rosters
// -----------------------------------------------------------------------

package generator

import (
	"fmt"
	"strings"

	"github.com/delsolprimehomes/clustergen/internal/models"
)

// CategoryAllowList is the fixed set of publishable categories. AI category
// suggestions outside this list are replaced via FallbackCategory.
var CategoryAllowList = []string{
	"Buying Process",
	"Locations & Areas",
	"Investment & Finance",
	"Legal & Taxes",
	"Lifestyle",
	"Property Types",
	"Market Trends",
	"Healthcare & Insurance",
}

// categoryKeywords maps keyword fragments to their fallback category, checked
// in order so more specific fragments win.
var categoryKeywords = []struct {
	fragment string
	category string
}{
	{"invest", "Investment & Finance"},
	{"mortgage", "Investment & Finance"},
	{"finance", "Investment & Finance"},
	{"tax", "Legal & Taxes"},
	{"legal", "Legal & Taxes"},
	{"nie", "Legal & Taxes"},
	{"visa", "Legal & Taxes"},
	{"buy", "Buying Process"},
	{"purchase", "Buying Process"},
	{"process", "Buying Process"},
	{"villa", "Property Types"},
	{"apartment", "Property Types"},
	{"penthouse", "Property Types"},
	{"townhouse", "Property Types"},
	{"market", "Market Trends"},
	{"price", "Market Trends"},
	{"health", "Healthcare & Insurance"},
	{"insurance", "Healthcare & Insurance"},
	{"marbella", "Locations & Areas"},
	{"estepona", "Locations & Areas"},
	{"costa", "Locations & Areas"},
	{"area", "Locations & Areas"},
	{"town", "Locations & Areas"},
}

// IsAllowedCategory reports whether a category is on the allow-list (case-insensitive)
func IsAllowedCategory(category string) (string, bool) {
	for _, c := range CategoryAllowList {
		if strings.EqualFold(strings.TrimSpace(category), c) {
			return c, true
		}
	}
	return "", false
}

// FallbackCategory picks a category deterministically from the keyword when
// the AI suggestion is missing or off-list. Never returns empty.
func FallbackCategory(keyword string) string {
	lower := strings.ToLower(keyword)
	for _, kc := range categoryKeywords {
		if strings.Contains(lower, kc.fragment) {
			return kc.category
		}
	}
	return "Lifestyle"
}

// Author is one entry in the fixed editorial roster
type Author struct {
	Name      string
	Title     string
	Expertise []string
}

// AuthorRoster is the fixed attribution roster. AI-suggested authors are
// validated against it; the first entry is the fallback.
var AuthorRoster = []Author{
	{Name: "Hans Beeckman", Title: "Senior Property Advisor", Expertise: []string{"buying process", "locations", "lifestyle"}},
	{Name: "Maria Santos", Title: "Legal & Tax Consultant", Expertise: []string{"legal", "taxes", "visas"}},
	{Name: "David Mercer", Title: "Investment Analyst", Expertise: []string{"investment", "finance", "market trends"}},
	{Name: "Elena Vidal", Title: "Coastal Living Specialist", Expertise: []string{"lifestyle", "healthcare", "relocation"}},
}

// DefaultReviewer signs off every article
var DefaultReviewer = "Cédric Van Hecke, Managing Director"

// ResolveAuthor matches an AI-suggested author name against the roster,
// falling back to the first author when the suggestion is unknown.
func ResolveAuthor(suggested string) Author {
	trimmed := strings.TrimSpace(suggested)
	for _, a := range AuthorRoster {
		if strings.EqualFold(trimmed, a.Name) {
			return a
		}
	}
	return AuthorRoster[0]
}

// Image prompt rotation axes. Index rotation is deterministic per article so
// the six featured images in one cluster never share the same look.
var (
	cameraAngles = []string{
		"wide-angle establishing shot",
		"aerial drone view",
		"eye-level architectural photograph",
		"low-angle dramatic perspective",
		"interior-to-exterior framing through large windows",
		"golden-ratio composed landscape shot",
	}
	timesOfDay = []string{
		"golden hour sunset",
		"bright Mediterranean midday",
		"soft early morning light",
		"blue hour dusk with warm interior lighting",
		"clear afternoon with long shadows",
		"sunrise over the sea",
	}
	architecturalStyles = []string{
		"modern minimalist Andalusian villa",
		"contemporary glass-and-stone coastal home",
		"traditional whitewashed pueblo architecture",
		"luxury resort-style development",
		"Mediterranean revival estate with terracotta roof",
		"sleek new-build penthouse terrace",
	}
)

// stageSubject picks the visual subject by funnel stage so awareness pieces
// look aspirational and decision pieces look concrete.
func stageSubject(stage models.FunnelStage) string {
	switch stage {
	case models.FunnelTOFU:
		return "panoramic Costa del Sol coastline with luxury properties"
	case models.FunnelMOFU:
		return "detailed view of a premium property exterior and grounds"
	default:
		return "welcoming property entrance with keys-in-hand closing atmosphere"
	}
}

// BuildImagePrompt composes the featured-image prompt from funnel stage,
// detected topic, and a per-index rotation of angle, light, and style.
func BuildImagePrompt(stage models.FunnelStage, topic string, index int) string {
	angle := cameraAngles[index%len(cameraAngles)]
	light := timesOfDay[index%len(timesOfDay)]
	style := architecturalStyles[index%len(architecturalStyles)]

	return fmt.Sprintf(
		"Professional real-estate photography, %s of a %s, %s, %s. Theme: %s. No people, no text, no watermarks, photorealistic, high resolution.",
		angle, style, stageSubject(stage), light, topic,
	)
}

// buildStructurePrompt asks for exactly six article plans with the 3/2/1 funnel split
func buildStructurePrompt(topic, language, audience, keyword string) string {
	return fmt.Sprintf(`Plan a content cluster of exactly 6 articles about %q for %s (language: %s, primary keyword: %q).

Funnel split is fixed: exactly 3 TOFU (awareness), 2 MOFU (consideration), 1 BOFU (decision).

Return JSON only:
{"articles":[{"funnel_stage":"TOFU|MOFU|BOFU","headline":"...","target_keyword":"...","search_intent":"...","content_angle":"..."}]}

Every article must have all five fields. Headlines must be distinct and specific.`, topic, audience, language, keyword)
}

// buildBodyPrompt asks for the long-form HTML body
func buildBodyPrompt(plan *models.ArticlePlan, topic, language, audience string) string {
	return fmt.Sprintf(`Write a complete article for a real-estate content platform.

Headline: %s
Funnel stage: %s
Target keyword: %s
Search intent: %s
Content angle: %s
Topic: %s
Audience: %s
Language: %s

Requirements:
- Minimum 1200 words
- HTML only (<h2>, <h3>, <p>, <ul>, <li>, <strong>), no <html>/<body> wrapper
- At least 4 <h2> sections
- Work the target keyword into headings and body naturally
- Practical, concrete, no filler
- Do not include placeholder markers of any kind

Return the HTML body only, no JSON, no commentary.`,
		plan.Headline, plan.FunnelStage, plan.TargetKeyword, plan.SearchIntent, plan.ContentAngle, topic, audience, language)
}

// buildMetadataPrompt asks for SEO metadata, speakable answer, category, and author
func buildMetadataPrompt(plan *models.ArticlePlan, topic string) string {
	return fmt.Sprintf(`Generate metadata for this article.

Headline: %s
Target keyword: %s
Topic: %s

Return JSON only:
{"meta_title":"max 60 chars, includes keyword","meta_description":"max 160 chars","speakable_answer":"40-60 word voice-assistant-friendly answer to the headline","category":"one of: %s","author":"one of: %s"}`,
		plan.Headline, plan.TargetKeyword, topic,
		strings.Join(CategoryAllowList, ", "),
		authorNames())
}

func authorNames() string {
	names := make([]string, len(AuthorRoster))
	for i, a := range AuthorRoster {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// buildFAQPrompt asks for FAQ entities for MOFU/BOFU articles
func buildFAQPrompt(plan *models.ArticlePlan, language string, count int) string {
	return fmt.Sprintf(`Generate %d frequently-asked questions with answers for this article.

Headline: %s
Target keyword: %s
Language: %s

Answers: 2-4 sentences, concrete and specific.

Return JSON only: {"faqs":[{"question":"...","answer":"..."}]}`,
		count, plan.Headline, plan.TargetKeyword, language)
}

// buildRepairPrompt asks for replacement citations for leftover placeholder tokens
func buildRepairPrompt(headline string, placeholders []string) string {
	return fmt.Sprintf(`This article body still contains unresolved citation placeholders.

Headline: %s
Placeholders: %s

For each placeholder, propose a real, authoritative replacement citation.

Return JSON only: {"citations":[{"url":"...","source_name":"...","anchor_text":"...","context_in_article":"...","relevance":0.0,"insert_after_heading":"..."}]}`,
		headline, strings.Join(placeholders, "; "))
}

// buildDiagramPrompt asks for a process-diagram image prompt for BOFU articles
func buildDiagramPrompt(plan *models.ArticlePlan) string {
	return fmt.Sprintf(
		"Clean infographic-style diagram illustrating the step-by-step process for %q, flat design, brand colors navy and gold, labeled stages, no photographic elements.",
		plan.Headline,
	)
}

// buildInternalLinkPrompt asks which sibling articles deserve in-body links
func buildInternalLinkPrompt(article *models.ArticleDraft, siblings []models.ArticleDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Article: %s (keyword: %s)\n\nSibling articles in the same cluster:\n", article.Headline, article.TargetKeyword)
	for _, s := range siblings {
		fmt.Fprintf(&b, "- slug: %s, headline: %s, stage: %s\n", s.Slug, s.Headline, s.FunnelStage)
	}
	b.WriteString(`
Pick up to 3 siblings that genuinely deserve an in-body contextual link from this article, with the heading after which the link reads naturally.

Return JSON only: {"links":[{"slug":"...","anchor_text":"...","insert_after_heading":"..."}]}`)
	return b.String()
}
