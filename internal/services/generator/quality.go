// -----------------------------------------------------------------------
// Quality Validator - Advisory 0-100 content scoring
// -----------------------------------------------------------------------

package generator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/delsolprimehomes/clustergen/internal/models"
)

// QualityThreshold is the advisory pass mark. Scores below it are logged as
// warnings; they never block job completion - only the citation gate does.
const QualityThreshold = 60

// QualityResult is the outcome of scoring one article
type QualityResult struct {
	Valid  bool     `json:"valid"`
	Score  int      `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

var (
	h2Pattern          = regexp.MustCompile(`(?i)<h2[\s>]`)
	placeholderPattern = regexp.MustCompile(`\[CITATION[^\]]*\]|\[PLACEHOLDER[^\]]*\]|\{\{[^}]*\}\}|TODO:|XXX:`)
	sentenceSplit      = regexp.MustCompile(`[.!?]+\s+`)
)

// ScoreArticle scores an article against structural and lexical heuristics.
// Pure and deterministic: the same article and plan always score the same.
//
// Checks and weights:
//   - headline covers >=50% of the target keyword's words (20)
//   - target keyword appears in the body (15)
//   - no duplicated sentences longer than 30 chars (20)
//   - at least 4 H2 sections (15)
//   - no unresolved placeholder markers (15)
//   - at least 1200 words (15)
func ScoreArticle(article *models.ArticleDraft, plan *models.ArticlePlan) QualityResult {
	score := 100
	var issues []string

	if coverage := keywordCoverage(article.Headline, plan.TargetKeyword); coverage < 0.5 {
		score -= 20
		issues = append(issues, fmt.Sprintf("headline covers only %.0f%% of target keyword words", coverage*100))
	}

	bodyLower := strings.ToLower(article.BodyHTML)
	if plan.TargetKeyword != "" && !strings.Contains(bodyLower, strings.ToLower(plan.TargetKeyword)) {
		score -= 15
		issues = append(issues, "target keyword missing from body")
	}

	if dupes := duplicateSentences(article.BodyHTML); dupes > 0 {
		score -= 20
		issues = append(issues, fmt.Sprintf("%d duplicated sentences", dupes))
	}

	if h2s := len(h2Pattern.FindAllString(article.BodyHTML, -1)); h2s < 4 {
		score -= 15
		issues = append(issues, fmt.Sprintf("only %d H2 headings, expected 4+", h2s))
	}

	if placeholderPattern.MatchString(article.BodyHTML) {
		score -= 15
		issues = append(issues, "unresolved placeholder markers in body")
	}

	if words := wordCount(article.BodyHTML); words < minBodyWords {
		score -= 15
		issues = append(issues, fmt.Sprintf("body has %d words, expected %d+", words, minBodyWords))
	}

	if score < 0 {
		score = 0
	}

	return QualityResult{
		Valid:  score >= QualityThreshold,
		Score:  score,
		Issues: issues,
	}
}

// keywordCoverage reports the fraction of keyword words present in the headline
func keywordCoverage(headline, keyword string) float64 {
	words := strings.Fields(strings.ToLower(keyword))
	if len(words) == 0 {
		return 1
	}

	headlineLower := strings.ToLower(headline)
	covered := 0
	for _, w := range words {
		if strings.Contains(headlineLower, w) {
			covered++
		}
	}
	return float64(covered) / float64(len(words))
}

// duplicateSentences counts sentences longer than 30 chars that appear more than once
func duplicateSentences(html string) int {
	text := htmlTagPattern.ReplaceAllString(html, " ")
	seen := make(map[string]int)
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if len(s) > 30 {
			seen[strings.ToLower(s)]++
		}
	}

	dupes := 0
	for _, count := range seen {
		if count > 1 {
			dupes++
		}
	}
	return dupes
}
