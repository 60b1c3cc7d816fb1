package external

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Beez1/bounceinsights/internal/config"
	"github.com/Beez1/bounceinsights/internal/security"
)

// userAgent identifies this service to every vendor.
const userAgent = "EarthInsights/1.0"

// ClientRegistry holds every vendor client. A nil field means the vendor's
// credential is not configured; callers degrade or fail per feature. Weather
// and Prober need no credential and are always set.
type ClientRegistry struct {
	EPIC    EPICClient
	APOD    APODClient
	Weather WeatherArchive
	News    NewsClient
	LLM     TextGenerator
	Vision  CountryDetector
	Prober  ImageProber
	Email   EmailProvider
}

// RegistryOption is a functional option for configuring a ClientRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	httpClient *http.Client
	stubEmail  bool
	sleepFn    SleepFunc
}

// WithHTTPClient routes every vendor through hc. Used by tests pointing all
// vendors at one httptest server.
func WithHTTPClient(hc *http.Client) RegistryOption {
	return func(rc *registryConfig) {
		rc.httpClient = hc
	}
}

// WithStubEmail replaces SendGrid with a provider that only logs. Used for
// dry runs of the briefing pipeline.
func WithStubEmail() RegistryOption {
	return func(rc *registryConfig) {
		rc.stubEmail = true
	}
}

// WithRetrySleep overrides the retry sleep on every BaseClient.
func WithRetrySleep(fn SleepFunc) RegistryOption {
	return func(rc *registryConfig) {
		rc.sleepFn = fn
	}
}

func baseOpts(rc *registryConfig) []BaseClientOption {
	if rc.sleepFn == nil {
		return nil
	}
	return []BaseClientOption{WithSleepFunc(rc.sleepFn)}
}

// NewClientRegistry builds one BaseClient (and so one circuit breaker) per
// vendor and wires the real clients whose credentials are present.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger, opts ...RegistryOption) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rc := &registryConfig{}
	for _, opt := range opts {
		opt(rc)
	}

	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.Sources.MaxRetries

	newBase := func(name string, timeout time.Duration) *BaseClient {
		hc := rc.httpClient
		if hc == nil {
			hc = &http.Client{Timeout: timeout}
		}
		return NewBaseClient(hc, name, policy, userAgent, baseOpts(rc)...)
	}

	reg := &ClientRegistry{}

	if cfg.NASA.APIKey.IsSet() {
		nasa := NewNASAClient(newBase("nasa", cfg.Sources.HistoricalTimeout), NASAClientConfig{
			APIKey:         cfg.NASA.APIKey.Unmask(),
			BaseURL:        cfg.NASA.BaseURL,
			EPICArchiveURL: cfg.NASA.EPICArchiveURL,
			Logger:         logger.With("client", "nasa"),
		})
		reg.EPIC = nasa
		reg.APOD = nasa
	}

	reg.Weather = NewOpenMeteoClient(newBase("open-meteo", cfg.Sources.WeatherTimeout),
		cfg.Weather.BaseURL, logger.With("client", "open-meteo"))

	if cfg.News.APIKey.IsSet() {
		reg.News = NewGNewsClient(newBase("gnews", cfg.Sources.NewsTimeout),
			cfg.News.APIKey.Unmask(), cfg.News.BaseURL, logger.With("client", "gnews"))
	}

	if cfg.OpenAI.APIKey.IsSet() {
		reg.LLM = NewOpenAIClient(newBase("openai", cfg.Sources.LLMTimeout),
			cfg.OpenAI.APIKey.Unmask(), cfg.OpenAI.BaseURL, logger.With("client", "openai"))
	}

	if cfg.Vision.APIKey.IsSet() {
		reg.Vision = NewGoogleVisionClient(newBase("google-vision", cfg.Sources.VisionTimeout),
			cfg.Vision.APIKey.Unmask(), cfg.Vision.BaseURL, logger.With("client", "google-vision"))
	}

	// Probes follow caller-supplied URLs, so they dial through the SSRF guard.
	probeBase := newBase("image-probe", cfg.Sources.VisionTimeout)
	if rc.httpClient == nil {
		safe, err := security.NewSafeHTTPClient(cfg.Sources.VisionTimeout, security.DefaultMaxRedirects)
		if err != nil {
			return nil, fmt.Errorf("building image probe client: %w", err)
		}
		probeBase = NewBaseClient(safe, "image-probe", policy, userAgent, baseOpts(rc)...)
	}
	reg.Prober = NewHTTPImageProber(probeBase)

	switch {
	case rc.stubEmail:
		reg.Email = NewStubEmailProvider(logger.With("mode", "stub"))
	case cfg.Email.SendGridAPIKey.IsSet():
		reg.Email = NewSendGridClient(newBase("sendgrid", cfg.Sources.EmailTimeout), SendGridClientConfig{
			APIKey:  cfg.Email.SendGridAPIKey.Unmask(),
			BaseURL: cfg.Email.BaseURL,
			Logger:  logger.With("client", "sendgrid"),
		})
	}

	logger.Info("external clients initialized",
		"environment", cfg.Environment,
		"nasa", reg.EPIC != nil,
		"news", reg.News != nil,
		"openai", reg.LLM != nil,
		"vision", reg.Vision != nil,
		"email", reg.Email != nil,
	)
	return reg, nil
}
