package generator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delsolprimehomes/clustergen/internal/models"
)

// qualityBody builds a well-formed article body: the requested number of H2
// sections, all-unique sentences, and enough words to clear the length check.
func qualityBody(keyword string, sections, sentencesPerSection int) string {
	var b strings.Builder
	n := 0
	for s := 0; s < sections; s++ {
		fmt.Fprintf(&b, "<h2>Section %d</h2>", s+1)
		b.WriteString("<p>")
		for i := 0; i < sentencesPerSection; i++ {
			n++
			fmt.Fprintf(&b, "Paragraph sentence number %d explores another distinct angle on the %s market in depth. ", n, keyword)
		}
		b.WriteString("</p>")
	}
	return b.String()
}

func TestScoreArticlePerfect(t *testing.T) {
	plan := &models.ArticlePlan{
		FunnelStage:   models.FunnelTOFU,
		Headline:      "Costa Blanca Property Guide",
		TargetKeyword: "costa blanca property",
		SearchIntent:  "informational",
	}
	article := &models.ArticleDraft{
		Headline: "Costa Blanca Property Guide for First-Time Buyers",
		BodyHTML: qualityBody("costa blanca property", 5, 25),
	}

	result := ScoreArticle(article, plan)
	assert.Equal(t, 100, result.Score)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)
}

func TestScoreArticleDeductions(t *testing.T) {
	plan := &models.ArticlePlan{
		Headline:      "h",
		TargetKeyword: "costa blanca property",
		SearchIntent:  "informational",
	}

	tests := []struct {
		name      string
		article   *models.ArticleDraft
		wantScore int
		wantIssue string
	}{
		{
			name: "headline misses the keyword",
			article: &models.ArticleDraft{
				Headline: "Ten Reasons to Move to Spain",
				BodyHTML: qualityBody("costa blanca property", 5, 25),
			},
			wantScore: 80,
			wantIssue: "target keyword words",
		},
		{
			name: "keyword absent from body",
			article: &models.ArticleDraft{
				Headline: "Costa Blanca Property Guide",
				BodyHTML: qualityBody("regional housing", 5, 25),
			},
			wantScore: 85,
			wantIssue: "target keyword missing from body",
		},
		{
			name: "too few headings",
			article: &models.ArticleDraft{
				Headline: "Costa Blanca Property Guide",
				BodyHTML: qualityBody("costa blanca property", 2, 65),
			},
			wantScore: 85,
			wantIssue: "H2 headings",
		},
		{
			name: "unresolved placeholders",
			article: &models.ArticleDraft{
				Headline: "Costa Blanca Property Guide",
				BodyHTML: qualityBody("costa blanca property", 5, 25) + "<p>[CITATION NEEDED]</p>",
			},
			wantScore: 85,
			wantIssue: "placeholder markers",
		},
		{
			name: "thin body",
			article: &models.ArticleDraft{
				Headline: "Costa Blanca Property Guide",
				BodyHTML: qualityBody("costa blanca property", 5, 3),
			},
			wantScore: 85,
			wantIssue: "words, expected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ScoreArticle(tt.article, plan)
			assert.Equal(t, tt.wantScore, result.Score)
			require.Len(t, result.Issues, 1)
			assert.Contains(t, result.Issues[0], tt.wantIssue)
		})
	}
}

func TestScoreArticleDuplicateSentences(t *testing.T) {
	plan := &models.ArticlePlan{
		Headline:      "h",
		TargetKeyword: "costa blanca property",
		SearchIntent:  "informational",
	}
	repeated := "This exact long sentence is repeated verbatim across the body of the article. "
	article := &models.ArticleDraft{
		Headline: "Costa Blanca Property Guide",
		BodyHTML: qualityBody("costa blanca property", 5, 25) + "<p>" + repeated + repeated + "</p>",
	}

	result := ScoreArticle(article, plan)
	assert.Equal(t, 80, result.Score)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0], "duplicated sentences")
}

func TestScoreArticleBelowThresholdStillScored(t *testing.T) {
	plan := &models.ArticlePlan{
		Headline:      "h",
		TargetKeyword: "costa blanca property",
		SearchIntent:  "informational",
	}
	article := &models.ArticleDraft{
		Headline: "Unrelated",
		BodyHTML: "<p>Too short. [PLACEHOLDER]</p>",
	}

	result := ScoreArticle(article, plan)
	assert.False(t, result.Valid)
	assert.Less(t, result.Score, QualityThreshold)
	assert.NotEmpty(t, result.Issues)
}

func TestKeywordCoverage(t *testing.T) {
	assert.Equal(t, 1.0, keywordCoverage("anything", ""))
	assert.Equal(t, 1.0, keywordCoverage("Costa Blanca Property Prices", "costa blanca property"))
	assert.InDelta(t, 1.0/3.0, keywordCoverage("Property Taxes Explained", "costa blanca property"), 1e-9)
	assert.Equal(t, 0.0, keywordCoverage("Moving Abroad", "costa blanca"))
}
