package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
)

// ResolveAPIKey resolves an API key with KV-first ordering: the stored value
// wins, the config value is the fallback. Returns an error when neither is set.
func ResolveAPIKey(ctx context.Context, kv interfaces.KeyValueStorage, key, configValue string) (string, error) {
	if kv != nil {
		if stored, err := kv.Get(ctx, key); err == nil && stored != "" {
			return stored, nil
		}
	}
	if configValue != "" {
		return configValue, nil
	}
	return "", fmt.Errorf("no API key configured for %s", key)
}

// NewLLMService creates the text-generation provider selected by configuration
func NewLLMService(cfg *common.Config, kv interfaces.KeyValueStorage, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := cfg.LLM.Provider
	if provider == "" {
		provider = "claude"
	}

	logger.Info().Str("provider", provider).Msg("Initializing LLM service")

	var service interfaces.LLMService
	var err error
	switch provider {
	case "claude":
		service, err = NewClaudeService(&cfg.Claude, kv, logger)
	case "gemini":
		service, err = NewGeminiService(&cfg.Gemini, kv, cfg.Storage.Images.Dir, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider '%s': must be 'claude' or 'gemini'", provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.LLM.RequestsPerMinute > 0 {
		service = NewPacedService(service, cfg.LLM.RequestsPerMinute, logger)
	}

	return service, nil
}

// PacedService wraps an LLMService with a token-bucket limiter so the
// six-article generation loop doesn't trip provider rate limits gratuitously.
type PacedService struct {
	inner   interfaces.LLMService
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewPacedService creates a rate-limited wrapper around an LLM service
func NewPacedService(inner interfaces.LLMService, requestsPerMinute float64, logger arbor.ILogger) *PacedService {
	return &PacedService{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), 1),
		logger:  logger,
	}
}

// Chat waits for a limiter token, then delegates
func (p *PacedService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.inner.Chat(ctx, messages)
}

// HealthCheck delegates without pacing; probes should not queue behind work
func (p *PacedService) HealthCheck(ctx context.Context) error {
	return p.inner.HealthCheck(ctx)
}

// Close delegates to the wrapped service
func (p *PacedService) Close() error {
	return p.inner.Close()
}
