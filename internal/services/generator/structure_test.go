package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delsolprimehomes/clustergen/internal/models"
)

func validPlans() []models.ArticlePlan {
	stages := []models.FunnelStage{
		models.FunnelTOFU, models.FunnelTOFU, models.FunnelTOFU,
		models.FunnelMOFU, models.FunnelMOFU,
		models.FunnelBOFU,
	}
	plans := make([]models.ArticlePlan, len(stages))
	for i, stage := range stages {
		plans[i] = models.ArticlePlan{
			FunnelStage:   stage,
			Headline:      "Headline " + string(rune('A'+i)),
			TargetKeyword: "keyword",
			SearchIntent:  "informational",
			ContentAngle:  "angle",
		}
	}
	return plans
}

func TestValidateStructureAccepts(t *testing.T) {
	require.NoError(t, validateStructure(validPlans()))
}

func TestValidateStructureRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]models.ArticlePlan) []models.ArticlePlan
		wantErr string
	}{
		{
			name:    "too few plans",
			mutate:  func(p []models.ArticlePlan) []models.ArticlePlan { return p[:5] },
			wantErr: "expected 6",
		},
		{
			name: "too many plans",
			mutate: func(p []models.ArticlePlan) []models.ArticlePlan {
				return append(p, p[0])
			},
			wantErr: "expected 6",
		},
		{
			name: "missing headline",
			mutate: func(p []models.ArticlePlan) []models.ArticlePlan {
				p[2].Headline = ""
				return p
			},
			wantErr: "missing required field: headline",
		},
		{
			name: "missing target keyword",
			mutate: func(p []models.ArticlePlan) []models.ArticlePlan {
				p[0].TargetKeyword = ""
				return p
			},
			wantErr: "missing required field: target_keyword",
		},
		{
			name: "missing search intent",
			mutate: func(p []models.ArticlePlan) []models.ArticlePlan {
				p[4].SearchIntent = ""
				return p
			},
			wantErr: "missing required field: search_intent",
		},
		{
			name: "unknown funnel stage",
			mutate: func(p []models.ArticlePlan) []models.ArticlePlan {
				p[1].FunnelStage = "UNKNOWN"
				return p
			},
			wantErr: "unknown funnel stage",
		},
		{
			name: "wrong funnel split",
			mutate: func(p []models.ArticlePlan) []models.ArticlePlan {
				p[5].FunnelStage = models.FunnelMOFU
				return p
			},
			wantErr: "funnel split is 3/3/0",
		},
		{
			name: "inverted split still six plans",
			mutate: func(p []models.ArticlePlan) []models.ArticlePlan {
				p[0].FunnelStage = models.FunnelBOFU
				return p
			},
			wantErr: "funnel split is 2/2/2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStructure(tt.mutate(validPlans()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
