package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Claude      ClaudeConfig      `toml:"claude"`
	Gemini      GeminiConfig      `toml:"gemini"`
	LLM         LLMConfig         `toml:"llm"`
	Generation  GenerationConfig  `toml:"generation"`
	Translation TranslationConfig `toml:"translation"`
	Recovery    RecoveryConfig    `toml:"recovery"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Images ImagesConfig `toml:"images"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ImagesConfig controls durable storage of generated featured images
type ImagesConfig struct {
	Dir         string `toml:"dir"`         // Local directory for re-uploaded images
	PublicBase  string `toml:"public_base"` // Public URL prefix for stored images
	Placeholder string `toml:"placeholder"` // Stock placeholder used when generation fails entirely
	FetchLimit  int    `toml:"fetch_limit"` // Max bytes to download from an ephemeral image URL
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"` // e.g. "120s"
}

// GeminiConfig contains Google Gemini API configuration (text fallback + image generation)
type GeminiConfig struct {
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`
	ImageModel string `toml:"image_model"`
	Timeout    string `toml:"timeout"`
}

// LLMConfig selects the text-generation provider
type LLMConfig struct {
	Provider          string  `toml:"provider"`            // "claude" (default) or "gemini"
	RequestsPerMinute float64 `toml:"requests_per_minute"` // Pacing for generation calls (0 = unlimited)
}

// GenerationConfig tunes the cluster-generation pipeline.
// Timeouts are per external call; the retry policy applies uniformly via common.Retry.
type GenerationConfig struct {
	StructureTimeout  string   `toml:"structure_timeout"`  // Structure planning call (default "120s")
	ArticleTimeout    string   `toml:"article_timeout"`    // Main article body call (default "120s")
	DiagramTimeout    string   `toml:"diagram_timeout"`    // Diagram generation (default "60s")
	CitationTimeout   string   `toml:"citation_timeout"`   // Per citation-discovery attempt (default "30s")
	FAQTimeout        string   `toml:"faq_timeout"`        // FAQ generation (default "45s")
	RepairTimeout     string   `toml:"repair_timeout"`     // Placeholder repair pass (default "90s")
	MaxRetries        int      `toml:"max_retries"`        // AI-call retry attempts (default 3)
	RetryBaseDelay    string   `toml:"retry_base_delay"`   // Base delay for exponential backoff (default "1s")
	CitationAttempts  int      `toml:"citation_attempts"`  // Citation discovery attempts per article (default 3)
	MinCitations      int      `toml:"min_citations"`      // Citations required per article (default 2)
	HeartbeatInterval string   `toml:"heartbeat_interval"` // Job row heartbeat period (default "30s")
	StallThreshold    string   `toml:"stall_threshold"`    // Heartbeat age that marks a job stalled (default "5m")
	ApprovedDomains   []string `toml:"approved_domains"`   // Citation domain allow-list
	QualityThreshold  int      `toml:"quality_threshold"`  // Advisory quality score floor (default 60)
}

// TranslationConfig tunes the Q&A translation completion state machine
type TranslationConfig struct {
	SourceLanguage  string   `toml:"source_language"`  // Default "en"
	TargetLanguages []string `toml:"target_languages"` // Languages driven to parity
	QAPerArticle    int      `toml:"qa_per_article"`   // Q&A items per article (default 4)
	BatchSize       int      `toml:"batch_size"`       // Items per translation batch (default 5)
	MaxBatches      int      `toml:"max_batches"`      // Safety cap per language (default 10)
	MaxConcurrent   int      `toml:"max_concurrent"`   // Languages in flight (default 3)
	BatchTimeout    string   `toml:"batch_timeout"`    // Per batch call (default "60s")
}

// RecoveryConfig controls the stalled-job sweeper
type RecoveryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule (default "*/2 * * * *")
}

// DefaultConfig returns a config populated with defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/clustergen",
			},
			Images: ImagesConfig{
				Dir:         "./data/images",
				PublicBase:  "/images",
				Placeholder: "/images/placeholder-villa.jpg",
				FetchLimit:  10 * 1024 * 1024,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout"},
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
			Timeout:   "120s",
		},
		Gemini: GeminiConfig{
			Model:      "gemini-2.0-flash",
			ImageModel: "imagen-3.0-generate-002",
			Timeout:    "120s",
		},
		LLM: LLMConfig{
			Provider:          "claude",
			RequestsPerMinute: 30,
		},
		Generation: GenerationConfig{
			StructureTimeout:  "120s",
			ArticleTimeout:    "120s",
			DiagramTimeout:    "60s",
			CitationTimeout:   "30s",
			FAQTimeout:        "45s",
			RepairTimeout:     "90s",
			MaxRetries:        3,
			RetryBaseDelay:    "1s",
			CitationAttempts:  3,
			MinCitations:      2,
			HeartbeatInterval: "30s",
			StallThreshold:    "5m",
			QualityThreshold:  60,
		},
		Translation: TranslationConfig{
			SourceLanguage:  "en",
			TargetLanguages: []string{"es", "de", "nl", "fr", "sv", "no", "da", "fi", "pl"},
			QAPerArticle:    4,
			BatchSize:       5,
			MaxBatches:      10,
			MaxConcurrent:   3,
			BatchTimeout:    "60s",
		},
		Recovery: RecoveryConfig{
			Enabled:  true,
			Schedule: "*/2 * * * *",
		},
	}
}

// LoadConfig loads configuration: defaults -> file -> environment overrides.
// An empty path skips the file layer.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies CLUSTERGEN_* environment variables on top of file config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CLUSTERGEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("CLUSTERGEN_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("CLUSTERGEN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CLUSTERGEN_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("CLUSTERGEN_CLAUDE_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("CLUSTERGEN_LLM_PROVIDER"); v != "" {
		config.LLM.Provider = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ParseDurationOr parses a duration string, falling back to a default on error or empty input
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
