package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrMissingConfiguration is matched by MissingConfigurationError
var ErrMissingConfiguration = errors.New("missing required configuration")

// MissingConfigurationError names the environment variables that are required
// for an operation but were not set
type MissingConfigurationError struct {
	Vars []string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("missing required environment variables (%s)", strings.Join(e.Vars, ", "))
}

func (e *MissingConfigurationError) Is(target error) bool {
	return target == ErrMissingConfiguration
}

// Config holds all configuration for the inquiry analyzer service
type Config struct {
	// Server configuration
	Port               string   `envconfig:"PORT" default:"8000"`
	GRPCHealthPort     string   `envconfig:"GRPC_HEALTH_PORT" default:"0"` // 0 disables the gRPC health server
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxUploadBytes     int64    `envconfig:"MAX_UPLOAD_BYTES" default:"104857600"` // 100MB
	TempDir            string   `envconfig:"TEMP_DIR" default:""`

	// Speech model configuration
	SpeechBackend    string `envconfig:"SPEECH_BACKEND" default:"whisper"`     // whisper or deepgram
	WhisperURL       string `envconfig:"WHISPER_URL" default:"http://localhost:9000/inference"`
	WhisperTimeout   int    `envconfig:"WHISPER_TIMEOUT" default:"120"`        // seconds per segment
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Segmentation configuration
	SegmentWorkers int    `envconfig:"SEGMENT_WORKERS" default:"4"`
	TiersFile      string `envconfig:"TIERS_FILE" default:""` // optional YAML override of the tier table
	WatchTiersFile bool   `envconfig:"WATCH_TIERS_FILE" default:"true"`

	// watsonx.ai configuration
	WatsonxAPIKey     string `envconfig:"WATSONX_API_KEY" default:""`
	WatsonxProjectID  string `envconfig:"WATSONX_PROJECT_ID" default:""`
	WatsonxModelID    string `envconfig:"WATSONX_MODEL_ID" default:""`
	WatsonxIAMURL     string `envconfig:"WATSONX_IAM_URL" default:"https://iam.cloud.ibm.com/identity/token"`
	WatsonxChatURL    string `envconfig:"WATSONX_CHAT_URL" default:"https://us-south.ml.cloud.ibm.com/ml/v1/text/chat"`
	WatsonxAPIVersion string `envconfig:"WATSONX_API_VERSION" default:"2023-05-29"`
	WatsonxMaxRetries int    `envconfig:"WATSONX_MAX_RETRIES" default:"2"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"2"`             // Attempts per segment on transient errors
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"250"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.SpeechBackend {
	case "whisper":
		if c.WhisperURL == "" {
			return &MissingConfigurationError{Vars: []string{"WHISPER_URL"}}
		}
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return &MissingConfigurationError{Vars: []string{"DEEPGRAM_API_KEY"}}
		}
	default:
		return fmt.Errorf("unsupported SPEECH_BACKEND %q (want whisper or deepgram)", c.SpeechBackend)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.SegmentWorkers <= 0 {
		return fmt.Errorf("SEGMENT_WORKERS must be positive, got %d", c.SegmentWorkers)
	}
	if c.WatsonxMaxRetries < 0 {
		return fmt.Errorf("WATSONX_MAX_RETRIES must not be negative, got %d", c.WatsonxMaxRetries)
	}
	return nil
}

// RemoteSettings reports whether the watsonx credentials and identifiers
// needed by intent recognition and resolution generation are present.
// Transcription does not need them, so their absence is only an error once a
// remote stage runs.
func (c *Config) RemoteSettings() error {
	var missing []string
	if c.WatsonxAPIKey == "" {
		missing = append(missing, "WATSONX_API_KEY")
	}
	if c.WatsonxProjectID == "" {
		missing = append(missing, "WATSONX_PROJECT_ID")
	}
	if c.WatsonxModelID == "" {
		missing = append(missing, "WATSONX_MODEL_ID")
	}
	if len(missing) > 0 {
		return &MissingConfigurationError{Vars: missing}
	}
	return nil
}
