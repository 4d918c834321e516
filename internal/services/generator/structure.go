// -----------------------------------------------------------------------
// Structure Planner - Cluster structure planning stage
// -----------------------------------------------------------------------

package generator

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/models"
	"github.com/delsolprimehomes/clustergen/internal/services/llm"
)

const (
	tofuCount     = 3
	mofuCount     = 2
	bofuCount     = 1
	clusterLength = tofuCount + mofuCount + bofuCount
)

// Planner produces the 6-article cluster structure
type Planner struct {
	llmService interfaces.LLMService
	retryCfg   common.RetryConfig
	logger     arbor.ILogger
}

// NewPlanner creates a structure planner
func NewPlanner(llmService interfaces.LLMService, cfg *common.GenerationConfig, logger arbor.ILogger) *Planner {
	return &Planner{
		llmService: llmService,
		retryCfg: common.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   common.ParseDurationOr(cfg.RetryBaseDelay, 0),
			Backoff:     common.BackoffExponential,
			Timeout:     common.ParseDurationOr(cfg.StructureTimeout, 0),
			Retryable:   llm.IsRetryable,
		},
		logger: logger,
	}
}

type structureResponse struct {
	Articles []models.ArticlePlan `json:"articles"`
}

// PlanStructure asks the LLM for exactly 6 plans in the 3/2/1 funnel split.
// A structure with any incomplete plan or a wrong split is rejected whole;
// plans are never silently dropped or padded.
func (p *Planner) PlanStructure(ctx context.Context, topic, language, audience, keyword string) ([]models.ArticlePlan, error) {
	prompt := buildStructurePrompt(topic, language, audience, keyword)

	var plans []models.ArticlePlan
	err := common.Retry(ctx, p.logger, "structure planning", p.retryCfg, func(ctx context.Context) error {
		response, err := p.llmService.Chat(ctx, []interfaces.Message{
			{Role: "system", Content: "You are a content strategist for a real-estate publisher. Respond with JSON only."},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			return err
		}

		var parsed structureResponse
		strategy, err := llm.ExtractJSON(response, &parsed)
		if err != nil {
			return err
		}
		if strategy != llm.ParseDirect {
			p.logger.Debug().
				Str("strategy", string(strategy)).
				Msg("Structure response needed relaxed JSON extraction")
		}

		if err := validateStructure(parsed.Articles); err != nil {
			return err
		}
		plans = parsed.Articles
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Int("plans", len(plans)).
		Str("topic", topic).
		Msg("Cluster structure planned")
	return plans, nil
}

// validateStructure rejects the whole structure on any defect
func validateStructure(plans []models.ArticlePlan) error {
	if len(plans) != clusterLength {
		return fmt.Errorf("structure returned %d plans, expected %d", len(plans), clusterLength)
	}

	var tofu, mofu, bofu int
	for i := range plans {
		if err := plans[i].Validate(); err != nil {
			return fmt.Errorf("plan %d (%s): %w", i+1, plans[i].Headline, err)
		}
		switch plans[i].FunnelStage {
		case models.FunnelTOFU:
			tofu++
		case models.FunnelMOFU:
			mofu++
		case models.FunnelBOFU:
			bofu++
		default:
			return fmt.Errorf("plan %d has unknown funnel stage %q", i+1, plans[i].FunnelStage)
		}
	}

	if tofu != tofuCount || mofu != mofuCount || bofu != bofuCount {
		return fmt.Errorf("funnel split is %d/%d/%d, expected %d/%d/%d",
			tofu, mofu, bofu, tofuCount, mofuCount, bofuCount)
	}
	return nil
}
