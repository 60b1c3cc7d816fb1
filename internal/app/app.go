// Package app assembles the service graph shared by the API, the briefing
// worker and the operator CLI: vendor clients, the telemetry backend, the
// resolver and interpreter, the source adapters behind the orchestrator, the
// synthesizer, the briefing dispatcher and the optional SQS publisher.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/Beez1/bounceinsights/internal/briefing"
	"github.com/Beez1/bounceinsights/internal/config"
	"github.com/Beez1/bounceinsights/internal/core"
	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/fallback"
	"github.com/Beez1/bounceinsights/internal/gazetteer"
	"github.com/Beez1/bounceinsights/internal/insights"
	"github.com/Beez1/bounceinsights/internal/interpreter"
	"github.com/Beez1/bounceinsights/internal/orchestrator"
	"github.com/Beez1/bounceinsights/internal/queue"
	"github.com/Beez1/bounceinsights/internal/resolver"
	"github.com/Beez1/bounceinsights/internal/sources"
	"github.com/Beez1/bounceinsights/internal/synthesis"
	"github.com/Beez1/bounceinsights/internal/telemetry"
	"github.com/Beez1/bounceinsights/internal/types"
)

// metricsFlushInterval is how often buffered CloudWatch metrics are sent by
// long-running processes.
const metricsFlushInterval = 30 * time.Second

// App is the assembled service graph.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clients *external.ClientRegistry

	Metrics telemetry.Collector
	// MetricsHandler serves the Prometheus registry; nil for other backends.
	MetricsHandler http.Handler

	Resolver    *resolver.Resolver
	Interpreter *interpreter.Interpreter
	Insights    *insights.Service

	HealthProbes []core.HealthProbe

	cloudwatch *telemetry.CloudWatchCollector
}

// Option customizes Build.
type Option func(*options)

type options struct {
	publish       bool
	clientOptions []external.RegistryOption
	awsConfig     *aws.Config
}

// WithPublisher enqueues briefings on the SQS queue when one is configured.
// Only the API enables it; the worker must deliver what it dequeues.
func WithPublisher() Option {
	return func(o *options) { o.publish = true }
}

// WithClientOptions passes options through to the vendor client registry.
func WithClientOptions(opts ...external.RegistryOption) Option {
	return func(o *options) { o.clientOptions = append(o.clientOptions, opts...) }
}

// WithAWSConfig supplies a preloaded AWS configuration.
func WithAWSConfig(cfg aws.Config) Option {
	return func(o *options) { o.awsConfig = &cfg }
}

// Build wires every component from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg, Logger: logger}

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		logger.Warn("vendor credentials not configured; affected features degrade",
			"missing", missing)
	}

	needAWS := cfg.Observability.MetricsBackend == "cloudwatch" ||
		(o.publish && cfg.Queue.BriefingQueueURL != "")
	var awsCfg aws.Config
	if needAWS {
		if o.awsConfig != nil {
			awsCfg = *o.awsConfig
		} else {
			loaded, err := queue.LoadAWSConfig(ctx, cfg.Queue)
			if err != nil {
				return nil, err
			}
			awsCfg = loaded
		}
	}

	a.buildTelemetry(awsCfg)

	clients, err := external.NewClientRegistry(cfg, logger, o.clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("building vendor clients: %w", err)
	}
	a.Clients = clients

	gaz := gazetteer.Default()
	a.Resolver = resolver.New(gaz, clients.Vision, logger.With("component", "resolver"))

	interpCfg := interpreter.DefaultConfig()
	interpCfg.Model = cfg.OpenAI.TextModel
	a.Interpreter = interpreter.New(clients.LLM, gaz, interpCfg, logger.With("component", "interpreter"))

	chain := fallback.NewChain(clients.EPIC, clients.APOD, fallback.Config{
		AttemptTimeout: cfg.Sources.SatelliteAttemptTimeout,
		ScanTimeout:    cfg.Sources.RecentScanTimeout,
		Budget:         cfg.Sources.SatelliteBudget,
	}, a.Metrics, logger.With("component", "fallback"))

	adapters := sources.Set{
		Satellite:  sources.NewSatellite(chain),
		Weather:    sources.NewWeather(clients.Weather, gaz, logger.With("source", "weather")),
		News:       sources.NewNews(clients.News, logger.With("source", "news")),
		Historical: sources.NewHistorical(clients.APOD, logger.With("source", "historical")),
	}
	gatherer := orchestrator.New(adapters.Map(), orchestrator.Config{
		Timeouts: map[types.DataType]time.Duration{
			types.DataWeather:    cfg.Sources.WeatherTimeout,
			types.DataNews:       cfg.Sources.NewsTimeout,
			types.DataHistorical: cfg.Sources.HistoricalTimeout,
		},
		Concurrency: cfg.Sources.Concurrency,
		MaxTargets:  cfg.Sources.MaxTargets,
	}, a.Metrics, logger.With("component", "orchestrator"))

	renderer, err := briefing.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("building briefing renderer: %w", err)
	}
	dispatcher := briefing.NewDispatcher(clients.Email, external.SenderIdentity{
		Address: cfg.Email.FromAddress,
		Name:    cfg.Email.FromName,
	}, renderer, a.Metrics, logger.With("component", "briefing"))

	deps := insights.Deps{
		Resolver:    a.Resolver,
		Interpreter: a.Interpreter,
		Gatherer:    gatherer,
		Synthesizer: synthesis.New(clients.LLM, cfg.OpenAI.TextModel, logger.With("component", "synthesis")),
		Codes:       gaz,
		EPIC:        clients.EPIC,
		APOD:        clients.APOD,
		Weather:     clients.Weather,
		News:        clients.News,
		Vision:      clients.LLM,
		Prober:      clients.Prober,
		Briefings:   dispatcher,
	}

	if o.publish && cfg.Queue.BriefingQueueURL != "" {
		sqsClient := queue.NewSQSClient(awsCfg, cfg.Queue)
		deps.Publisher = queue.NewBriefingPublisher(sqsClient, cfg.Queue, logger.With("component", "queue"))
		queueURL := cfg.Queue.BriefingQueueURL
		a.HealthProbes = append(a.HealthProbes, core.ProbeFunc{
			ProbeName: "briefing-queue",
			Fn: func(ctx context.Context) error {
				return queue.CheckQueue(ctx, sqsClient, queueURL)
			},
		})
		logger.Info("asynchronous briefings enabled", "queue_url", queueURL)
	}

	a.Insights = insights.New(deps, insights.Config{
		VisionModel: cfg.OpenAI.VisionModel,
		MaxTargets:  cfg.Sources.MaxTargets,
	}, logger.With("component", "insights"))

	return a, nil
}

func (a *App) buildTelemetry(awsCfg aws.Config) {
	ns := a.Config.Observability.MetricNamespace
	switch a.Config.Observability.MetricsBackend {
	case "cloudwatch":
		cw := telemetry.NewCloudWatchCollector(cloudwatch.NewFromConfig(awsCfg), ns, a.Logger.With("component", "metrics"))
		a.cloudwatch = cw
		a.Metrics = cw
	case "none":
		a.Metrics = telemetry.Nop{}
	default:
		prom := telemetry.NewPrometheusCollector(ns)
		a.Metrics = prom
		a.MetricsHandler = prom.Handler()
	}
}

// RunMetrics flushes buffered metrics periodically until ctx is done. It is
// a no-op for backends that do not buffer.
func (a *App) RunMetrics(ctx context.Context) {
	if a.cloudwatch != nil {
		a.cloudwatch.Run(ctx, metricsFlushInterval)
	}
}

// Flush sends buffered metrics. Lambda handlers call it before returning.
func (a *App) Flush(ctx context.Context) error {
	if a.cloudwatch == nil {
		return nil
	}
	return a.cloudwatch.Flush(ctx)
}
