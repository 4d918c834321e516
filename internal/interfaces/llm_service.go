package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService defines the interface for text-generation operations. The
// orchestrator treats the provider as opaque: it sends a conversation, gets
// text back, and classifies failures through the llm error helpers.
type LLMService interface {
	// Chat generates a completion response based on the conversation history.
	// The messages slice should contain the full conversation context in
	// chronological order.
	Chat(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the service is operational with a minimal probe.
	// Used by the orchestrator's credential-probe stage to fail fast on bad
	// keys before burning through article-level work.
	HealthCheck(ctx context.Context) error

	// Close releases resources and performs cleanup operations.
	Close() error
}

// ImageService generates featured images and diagrams. Failures here must
// never fail a generation job; callers fall back to placeholders.
type ImageService interface {
	// GenerateImage returns a URL (often ephemeral) for a generated image.
	GenerateImage(ctx context.Context, prompt, headline string) (string, error)

	// Close releases resources.
	Close() error
}
