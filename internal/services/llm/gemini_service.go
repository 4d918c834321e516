package llm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
)

// GeminiService implements LLMService and ImageService using the Google
// Gemini API. Text generation is the fallback provider behind Claude; image
// generation (Imagen) backs the featured-image collaborator.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration

	// stagingDir receives raw generated image bytes; the images service
	// promotes them to durable storage.
	stagingDir string
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content
// format, extracting the first system message for SystemInstruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		geminiRole := genai.RoleUser
		if msg.Role == "assistant" {
			geminiRole = genai.RoleModel
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("at least one non-system message is required")
	}

	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini service instance
func NewGeminiService(geminiConfig *common.GeminiConfig, kv interfaces.KeyValueStorage, stagingDir string, logger arbor.ILogger) (*GeminiService, error) {
	ctx := context.Background()
	apiKey, err := ResolveAPIKey(ctx, kv, "gemini_api_key", geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Google API key is required for Gemini service (set via GEMINI_API_KEY or gemini.api_key in config): %w", err)
	}

	if geminiConfig.Model == "" {
		geminiConfig.Model = "gemini-2.0-flash"
	}
	if geminiConfig.ImageModel == "" {
		geminiConfig.ImageModel = "imagen-3.0-generate-002"
	}

	timeout := common.ParseDurationOr(geminiConfig.Timeout, 120*time.Second)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:     geminiConfig,
		logger:     logger,
		client:     client,
		timeout:    timeout,
		stagingDir: stagingDir,
	}

	logger.Debug().
		Str("chat_model", geminiConfig.Model).
		Str("image_model", geminiConfig.ImageModel).
		Str("timeout", timeout.String()).
		Msg("Gemini service initialized successfully")

	return service, nil
}

// Chat generates a completion response based on the conversation history
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, geminiContents, config)
	if err != nil {
		return "", Classify(fmt.Errorf("chat generation failed: %w", err))
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from chat model")
	}

	return response.String(), nil
}

// HealthCheck verifies the Gemini service is operational with a minimal probe
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("Gemini client is not initialized")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.Chat(probeCtx, []interfaces.Message{{Role: "user", Content: "ping"}})
	if err != nil {
		return Classify(err)
	}
	return nil
}

// GenerateImage produces a featured image for the given prompt and returns a
// local staging path. The URL is ephemeral in the same sense as a hosted
// provider's: the images service is expected to promote it to durable storage.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt, headline string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Models.GenerateImages(timeoutCtx, s.config.ImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return "", Classify(fmt.Errorf("image generation failed: %w", err))
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return "", fmt.Errorf("image model returned no images")
	}

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image staging directory: %w", err)
	}

	name := fmt.Sprintf("%s-%d.png", common.Slugify(headline), time.Now().UnixNano())
	path := filepath.Join(s.stagingDir, name)
	if err := os.WriteFile(path, resp.GeneratedImages[0].Image.ImageBytes, 0644); err != nil {
		return "", fmt.Errorf("failed to stage generated image: %w", err)
	}

	s.logger.Debug().
		Str("headline", headline).
		Str("path", path).
		Msg("Generated featured image")

	return path, nil
}

// Close releases resources. The genai client does not require explicit cleanup.
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini service")
	s.client = nil
	return nil
}
