// Package orchestrator fans a request out to every (target, source) pair,
// bounds each call with its own timeout and folds the outcomes into a
// complete, ordered result list. No single source can fail the request.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	// DefaultConcurrency bounds the number of in-flight adapter calls.
	DefaultConcurrency = 16
	// MaxTargets caps how many resolved targets one request may fan out to.
	MaxTargets = 5
)

// Fetcher is one source adapter. Implementations always return a result;
// internal errors become a types.SourceFailure.
type Fetcher interface {
	Fetch(ctx context.Context, target types.GeoTarget, tf types.Timeframe) types.SourceResult
}

// SourceMetrics receives one observation per adapter call.
type SourceMetrics interface {
	RecordSource(source types.DataType, outcome string, duration time.Duration)
}

// Config configures an Orchestrator.
type Config struct {
	// Timeouts bounds each call per source. A zero entry leaves the call
	// bounded only by the request context, which suits adapters that manage
	// their own deadlines; their results are kept exactly as returned.
	Timeouts    map[types.DataType]time.Duration
	Concurrency int
	MaxTargets  int
}

// Orchestrator dispatches adapters concurrently in all-settle mode.
type Orchestrator struct {
	adapters map[types.DataType]Fetcher
	cfg      Config
	metrics  SourceMetrics
	logger   *slog.Logger
}

// New creates an Orchestrator. metrics may be nil.
func New(adapters map[types.DataType]Fetcher, cfg Config, metrics SourceMetrics, logger *slog.Logger) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxTargets < 1 {
		cfg.MaxTargets = MaxTargets
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		adapters: adapters,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// CapTargets truncates targets to the configured maximum.
func (o *Orchestrator) CapTargets(targets []types.GeoTarget) []types.GeoTarget {
	if len(targets) > o.cfg.MaxTargets {
		return targets[:o.cfg.MaxTargets]
	}
	return targets
}

// Gather runs every (target, dataType) pair and returns exactly
// len(targets) * len(dataTypes) results (after capping targets), ordered by
// target then data type in request order. Unknown data types, timeouts and
// panics all surface as SourceFailure entries.
func (o *Orchestrator) Gather(ctx context.Context, targets []types.GeoTarget, dataTypes []types.DataType, tf types.Timeframe) []types.SourceResult {
	targets = o.CapTargets(targets)
	results := make([]types.SourceResult, len(targets)*len(dataTypes))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	for ti, target := range targets {
		for di, dt := range dataTypes {
			idx := ti*len(dataTypes) + di
			g.Go(func() error {
				// Error isolation: each slot is written exactly once and the
				// goroutine never returns an error to the group.
				results[idx] = o.fetchOne(gCtx, target, dt, tf)
				return nil
			})
		}
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) fetchOne(ctx context.Context, target types.GeoTarget, dt types.DataType, tf types.Timeframe) (res types.SourceResult) {
	start := time.Now()
	logger := types.LoggerFromContext(ctx, o.logger)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "source adapter panicked",
				"source", dt,
				"target", target.Name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			res = types.SourceFailure{
				Source: dt,
				Target: target.Name,
				Error:  "internal error in source adapter",
				Code:   types.ErrCodeInternalUnexpected,
			}
		}
		o.observe(dt, res, time.Since(start))
	}()

	adapter, ok := o.adapters[dt]
	if !ok || adapter == nil {
		return types.SourceFailure{
			Source: dt,
			Target: target.Name,
			Error:  fmt.Sprintf("unsupported data type %q", dt),
			Code:   types.ErrCodeValidationInvalidRequest,
		}
	}

	timeout := o.cfg.Timeouts[dt]
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res = adapter.Fetch(ctx, target, tf)
	if res == nil {
		return types.SourceFailure{
			Source: dt,
			Target: target.Name,
			Error:  "source adapter returned no result",
			Code:   types.ErrCodeInternalUnexpected,
		}
	}

	// An adapter that overran the deadline set here still reports a timeout.
	if timeout > 0 && res.OK() && ctx.Err() != nil {
		return types.NewFailure(dt, target.Name, ctx.Err())
	}
	return res
}

func (o *Orchestrator) observe(dt types.DataType, res types.SourceResult, d time.Duration) {
	if o.metrics == nil || res == nil {
		return
	}
	outcome := "success"
	if !res.OK() {
		outcome = "failure"
	}
	o.metrics.RecordSource(dt, outcome, d)
}
