// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone so calendar dates never drift.
//  2. Load .env files via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// localEnv is the APP_ENV value for local development.
const localEnv = "local"

// loaderDeps holds the injectable dependencies for the loader.
type loaderDeps struct {
	loadDotenv func(files ...string) error
	files      []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{loadDotenv: godotenv.Load}
}

// LoadConfig loads and validates the configuration from the environment.
func LoadConfig() (*Config, error) {
	return loadConfigWithDeps(defaultDeps())
}

// LoadConfigFrom is LoadConfig with explicit .env files, used by the CLI's
// --env-file flag. Existing environment variables always win.
func LoadConfigFrom(files ...string) (*Config, error) {
	deps := defaultDeps()
	deps.files = files
	return loadConfigWithDeps(deps)
}

func loadConfigWithDeps(deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv does NOT override variables that are already set. A missing
	// default .env is fine; a missing explicitly named file is not.
	if err := deps.loadDotenv(deps.files...); err != nil {
		if len(deps.files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{
				Type:    ErrParsing,
				Message: "failed to load dotenv file",
				Err:     err,
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// MissingCredentials lists the env vars of unset vendor keys, for a start-up
// warning. Missing keys are not fatal.
func (c *Config) MissingCredentials() []string {
	var missing []string
	check := func(name string, s SecretString) {
		if !s.IsSet() {
			missing = append(missing, name)
		}
	}
	check("NASA_API_KEY", c.NASA.APIKey)
	check("OPENAI_API_KEY", c.OpenAI.APIKey)
	check("GOOGLE_VISION_API_KEY", c.Vision.APIKey)
	check("GNEWS_API_KEY", c.News.APIKey)
	check("SENDGRID_API_KEY", c.Email.SendGridAPIKey)
	if strings.TrimSpace(c.Email.FromAddress) == "" {
		missing = append(missing, "SENDER_EMAIL")
	}
	return missing
}
