// Package config defines the process configuration for the Earth insights
// backend. It is loaded once at start-up (or Lambda cold start) from the
// environment, optionally seeded by a .env file, and is immutable thereafter.
//
// Vendor credentials are optional at load time. A missing key disables the
// feature that needs it: the affected endpoint reports a configuration error
// or the source degrades to its fallback.
package config

import (
	"time"

	"github.com/Beez1/bounceinsights/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"earth-insights"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	NASA          NASAConfig
	OpenAI        OpenAIConfig
	Vision        VisionConfig
	Weather       WeatherConfig
	News          NewsConfig
	Email         EmailConfig
	Queue         QueueConfig
	Sources       SourcesConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// IsLocal reports whether the process runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"3000"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s" validate:"gt=0"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// NASAConfig covers APOD and EPIC.
type NASAConfig struct {
	APIKey         SecretString `envconfig:"NASA_API_KEY"`
	BaseURL        string       `envconfig:"NASA_BASE_URL" default:"https://api.nasa.gov" validate:"url"`
	EPICArchiveURL string       `envconfig:"NASA_EPIC_ARCHIVE_URL" default:"https://epic.gsfc.nasa.gov" validate:"url"`
}

// OpenAIConfig covers chat completions, both text and vision.
type OpenAIConfig struct {
	APIKey      SecretString `envconfig:"OPENAI_API_KEY"`
	BaseURL     string       `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1" validate:"url"`
	TextModel   string       `envconfig:"OPENAI_TEXT_MODEL" default:"gpt-4"`
	VisionModel string       `envconfig:"OPENAI_VISION_MODEL" default:"gpt-4-turbo"`
}

// VisionConfig covers Google Cloud Vision web and landmark detection.
type VisionConfig struct {
	APIKey  SecretString `envconfig:"GOOGLE_VISION_API_KEY"`
	BaseURL string       `envconfig:"GOOGLE_VISION_BASE_URL" default:"https://vision.googleapis.com/v1" validate:"url"`
}

// WeatherConfig covers the Open-Meteo archive. No credential is required.
type WeatherConfig struct {
	BaseURL string `envconfig:"OPEN_METEO_BASE_URL" default:"https://archive-api.open-meteo.com/v1" validate:"url"`
}

// NewsConfig covers GNews top headlines.
type NewsConfig struct {
	APIKey  SecretString `envconfig:"GNEWS_API_KEY"`
	BaseURL string       `envconfig:"GNEWS_BASE_URL" default:"https://gnews.io/api/v4" validate:"url"`
}

// EmailConfig holds SendGrid credentials and the sender identity.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY"`
	BaseURL        string       `envconfig:"SENDGRID_BASE_URL" default:"https://api.sendgrid.com" validate:"url"`
	FromAddress    string       `envconfig:"SENDER_EMAIL" validate:"omitempty,email"`
	FromName       string       `envconfig:"SENDER_NAME" default:"Earth Insights"`
}

// QueueConfig enables asynchronous briefings when BriefingQueueURL is set.
type QueueConfig struct {
	Region           string `envconfig:"AWS_REGION" default:"us-east-1"`
	BriefingQueueURL string `envconfig:"BRIEFING_QUEUE_URL" validate:"omitempty,url"`
	EndpointURL      string `envconfig:"AWS_ENDPOINT_URL"` // LocalStack only
}

// SourcesConfig is the single surface for per-source timeouts and retry
// policy. Timeouts bound one upstream attempt; retries apply to 429 and 5xx
// responses only.
type SourcesConfig struct {
	SatelliteAttemptTimeout time.Duration `envconfig:"SATELLITE_ATTEMPT_TIMEOUT" default:"10s" validate:"gt=0"`
	RecentScanTimeout       time.Duration `envconfig:"RECENT_SCAN_TIMEOUT" default:"5s" validate:"gt=0"`
	SatelliteBudget         time.Duration `envconfig:"SATELLITE_BUDGET" default:"25s" validate:"gt=0"`
	WeatherTimeout          time.Duration `envconfig:"WEATHER_TIMEOUT" default:"15s" validate:"gt=0"`
	NewsTimeout             time.Duration `envconfig:"NEWS_TIMEOUT" default:"5s" validate:"gt=0"`
	HistoricalTimeout       time.Duration `envconfig:"HISTORICAL_TIMEOUT" default:"15s" validate:"gt=0"`
	LLMTimeout              time.Duration `envconfig:"LLM_TIMEOUT" default:"60s" validate:"gt=0"`
	VisionTimeout           time.Duration `envconfig:"VISION_TIMEOUT" default:"15s" validate:"gt=0"`
	EmailTimeout            time.Duration `envconfig:"EMAIL_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxRetries              int           `envconfig:"UPSTREAM_MAX_RETRIES" default:"2" validate:"gte=0,lte=5"`
	Concurrency             int           `envconfig:"FANOUT_CONCURRENCY" default:"16" validate:"gte=1"`
	MaxTargets              int           `envconfig:"MAX_TARGETS" default:"5" validate:"gte=1"`
}

// ObservabilityConfig holds metrics settings. MetricsBackend selects the
// collector: CloudWatch in Lambda, Prometheus (scraped at /metrics) when
// running as a long-lived server.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"EarthInsights"`
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
