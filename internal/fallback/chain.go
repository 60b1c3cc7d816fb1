// Package fallback produces satellite imagery for a target through a fixed,
// forward-only chain of stages. A run always ends with a payload: when no
// network stage yields imagery the demo stage synthesises one.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/orchestrator"
	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	satelliteEPIC   = "DSCOVR EPIC"
	resolutionEPIC  = "Full Earth disk (2048x2048)"
	maxPrimaryImgs  = 5
	demoSatellite   = "Demo Earth Observatory"
	demoResolution  = "2048x2048 (NASA Earth Observatory)"
	demoSource      = "https://earthobservatory.nasa.gov/"
	demoDisclaimer  = "These are sample Earth observation images, not specific to the queried timeframe"
	noteKeyMissing  = "Demo satellite imagery using NASA Earth Observatory data - Configure NASA_API_KEY for real-time EPIC data"
	noteExhausted   = "Demo satellite imagery using NASA Earth Observatory data - No EPIC or APOD imagery was available"
	noteApod        = "NASA APOD Earth imagery - EPIC satellite data not available for this date"
	apodIdentifier  = "nasa_apod_earth_fallback"
	apodSatellite   = "NASA APOD"
	apodResolution  = "High resolution"
	primarySamples  = 10
	recentScanDepth = 30
	defaultBudget   = 25 * time.Second
)

// demoImageURLs are full-disk Earth Observatory composites.
var demoImageURLs = [3]string{
	"https://earthobservatory.nasa.gov/ContentWOC/images/decadal/land_shallow_topo_2048.jpg",
	"https://earthobservatory.nasa.gov/ContentWOC/images/decadal/land_ocean_ice_cloud_2048.jpg",
	"https://earthobservatory.nasa.gov/ContentWOC/images/decadal/temperature_3d_2048.jpg",
}

// earthKeywords mark an APOD entry as Earth imagery.
var earthKeywords = []string{"earth", "planet", "blue marble", "satellite", "iss", "space station"}

// StageMetrics receives the terminal stage of each run.
type StageMetrics interface {
	RecordFallbackStage(stage types.FallbackStage)
}

// Config tunes the chain. Zero values take the defaults below.
type Config struct {
	AttemptTimeout time.Duration // per EPIC/APOD call in the primary and APOD stages
	ScanTimeout    time.Duration // per EPIC call while scanning recent days
	Budget         time.Duration // all network stages of one run together
	SampleSize     int
	ScanDays       int
	Now            func() time.Time
}

// Chain runs the satellite stages. A nil EPIC client means no NASA key is
// configured and every run goes straight to demo imagery.
type Chain struct {
	epic    external.EPICClient
	apod    external.APODClient
	cfg     Config
	metrics StageMetrics
	logger  *slog.Logger
}

// NewChain creates a Chain. epic, apod and metrics may be nil.
func NewChain(epic external.EPICClient, apod external.APODClient, cfg Config, metrics StageMetrics, logger *slog.Logger) *Chain {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 5 * time.Second
	}
	if cfg.Budget <= 0 {
		cfg.Budget = defaultBudget
	}
	if cfg.SampleSize < 1 {
		cfg.SampleSize = primarySamples
	}
	if cfg.ScanDays < 1 {
		cfg.ScanDays = recentScanDepth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{epic: epic, apod: apod, cfg: cfg, metrics: metrics, logger: logger}
}

// run is the mutable state of one traversal.
type run struct {
	target  types.GeoTarget
	tf      types.Timeframe
	tried   []types.FallbackStage
	payload *types.SatellitePayload
}

// next is the single transition function. It only ever moves forward, and
// every stage other than demo may fall through.
func (c *Chain) next(ctx context.Context, s types.FallbackStage) types.FallbackStage {
	if c.epic == nil || ctx.Err() != nil {
		return types.StageDemoFallback
	}
	switch s {
	case "":
		return types.StagePrimaryAttempt
	case types.StagePrimaryAttempt:
		if c.apod == nil {
			return types.StageRecentScan
		}
		return types.StageApodCheck
	case types.StageApodCheck:
		return types.StageRecentScan
	default:
		return types.StageDemoFallback
	}
}

// Run walks the chain until a stage yields imagery. It never fails. The
// network stages share cfg.Budget; once it is spent the run moves straight
// to demo imagery, which needs no I/O.
func (c *Chain) Run(ctx context.Context, target types.GeoTarget, tf types.Timeframe) types.SatellitePayload {
	logger := types.LoggerFromContext(ctx, c.logger).With("component", "fallback", "target", target.Name)
	r := &run{target: target, tf: tf}

	netCtx, cancel := context.WithTimeout(ctx, c.cfg.Budget)
	defer cancel()

	for stage := c.next(netCtx, ""); ; stage = c.next(netCtx, stage) {
		r.tried = append(r.tried, stage)

		switch stage {
		case types.StagePrimaryAttempt:
			r.payload = c.primary(netCtx, r, logger)
		case types.StageApodCheck:
			r.payload = c.apodCheck(netCtx, r, logger)
		case types.StageRecentScan:
			r.payload = c.recentScan(netCtx, r, logger)
		case types.StageDemoFallback:
			r.payload = c.demo(r)
		}

		if r.payload != nil {
			r.payload.Stage = stage
			r.payload.StagesTried = r.tried
			if c.metrics != nil {
				c.metrics.RecordFallbackStage(stage)
			}
			if stage != types.StagePrimaryAttempt {
				logger.InfoContext(ctx, "satellite imagery served from fallback stage", "stage", stage, "stages_tried", len(r.tried))
			}
			return *r.payload
		}
	}
}

func (c *Chain) basePayload(r *run) *types.SatellitePayload {
	return &types.SatellitePayload{
		Location:      r.target.Name,
		Coordinates:   r.target.Coordinates(),
		RequestedDate: r.tf.Start.String(),
	}
}

func (c *Chain) primary(ctx context.Context, r *run, logger *slog.Logger) *types.SatellitePayload {
	for _, date := range orchestrator.SampleDates(r.tf.Start, r.tf.End, c.cfg.SampleSize) {
		if ctx.Err() != nil {
			return nil
		}
		images, err := c.natural(ctx, date, c.cfg.AttemptTimeout)
		if err != nil {
			logger.DebugContext(ctx, "no EPIC imagery for date", "date", date.String(), "error", err)
			continue
		}
		if len(images) == 0 {
			continue
		}
		if len(images) > maxPrimaryImgs {
			images = images[:maxPrimaryImgs]
		}

		p := c.basePayload(r)
		p.ActualDate = date.String()
		p.Satellite = satelliteEPIC
		p.Resolution = resolutionEPIC
		for _, img := range images {
			caption := img.Caption
			if caption == "" {
				caption = fmt.Sprintf("EPIC view of Earth - %s", date)
			}
			coords := img.Centroid
			if coords.Lat == 0 {
				coords.Lat = r.target.Lat
			}
			if coords.Lon == 0 {
				coords.Lon = r.target.Lon
			}
			p.Images = append(p.Images, types.SatelliteImage{
				Identifier:   img.Identifier,
				Caption:      caption,
				Date:         img.Date,
				ImageURL:     c.epic.ImageURL(date, img.Image),
				ThumbnailURL: c.epic.ThumbnailURL(date, img.Image),
				Coordinates:  &coords,
			})
		}
		return p
	}
	return nil
}

func (c *Chain) apodCheck(ctx context.Context, r *run, logger *slog.Logger) *types.SatellitePayload {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	entry, err := c.apod.APOD(attemptCtx, r.tf.Start)
	if err != nil {
		logger.DebugContext(ctx, "APOD fallback failed", "error", err)
		return nil
	}
	if !IsEarthImagery(entry) {
		return nil
	}

	coords := r.target.Coordinates()
	p := c.basePayload(r)
	p.ActualDate = entry.Date
	p.Satellite = apodSatellite
	p.Resolution = apodResolution
	p.Note = noteApod
	p.Images = []types.SatelliteImage{{
		Identifier:   apodIdentifier,
		Caption:      "NASA Earth View: " + entry.Title,
		Date:         entry.Date,
		ImageURL:     entry.URL,
		ThumbnailURL: entry.URL,
		Coordinates:  &coords,
		Explanation:  entry.Explanation,
	}}
	return p
}

// IsEarthImagery reports whether an APOD entry is a still image of Earth.
func IsEarthImagery(entry types.ApodEntry) bool {
	if entry.MediaType != "image" {
		return false
	}
	title := strings.ToLower(entry.Title)
	explanation := strings.ToLower(entry.Explanation)
	for _, kw := range earthKeywords {
		if strings.Contains(title, kw) || strings.Contains(explanation, kw) {
			return true
		}
	}
	return false
}

func (c *Chain) recentScan(ctx context.Context, r *run, logger *slog.Logger) *types.SatellitePayload {
	day := types.NewDate(c.cfg.Now())
	for i := 0; i < c.cfg.ScanDays; i++ {
		if ctx.Err() != nil {
			return nil
		}
		day = day.AddDays(-1)
		images, err := c.natural(ctx, day, c.cfg.ScanTimeout)
		if err != nil || len(images) == 0 {
			continue
		}

		img := images[0]
		coords := r.target.Coordinates()
		dateStr := day.String()
		p := c.basePayload(r)
		p.ActualDate = dateStr
		p.Satellite = satelliteEPIC
		p.Resolution = resolutionEPIC
		p.Note = fmt.Sprintf("Recent EPIC imagery from %s - No data available for requested timeframe %s", dateStr, r.tf.Start)
		p.Images = []types.SatelliteImage{{
			Identifier:   "epic_recent_" + dateStr,
			Caption:      fmt.Sprintf("Recent EPIC view of Earth (closest available to %s)", r.tf.Start),
			Date:         img.Date,
			ImageURL:     c.epic.ImageURL(day, img.Image),
			ThumbnailURL: c.epic.ThumbnailURL(day, img.Image),
			Coordinates:  &coords,
		}}
		return p
	}
	logger.DebugContext(ctx, "no recent EPIC imagery found", "days_scanned", c.cfg.ScanDays)
	return nil
}

func (c *Chain) natural(ctx context.Context, date types.Date, timeout time.Duration) ([]external.EPICImage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.epic.Natural(attemptCtx, date)
}

func (c *Chain) demo(r *run) *types.SatellitePayload {
	hash := locationHash(r.target.Name)
	idx := 0
	if hash != "" {
		idx = int([]rune(hash)[0]) % len(demoImageURLs)
	}
	start := r.tf.Start.String()
	coords := r.target.Coordinates()

	p := c.basePayload(r)
	p.Satellite = demoSatellite
	p.Resolution = demoResolution
	p.Disclaimer = demoDisclaimer
	p.Note = noteExhausted
	if c.epic == nil {
		p.Note = noteKeyMissing
	}
	p.Images = []types.SatelliteImage{
		{
			Identifier:   fmt.Sprintf("demo_satellite_%s_1", hash),
			Caption:      fmt.Sprintf("Satellite view of %s - True color composite (%s)", r.target.Name, start),
			Date:         start,
			ImageURL:     demoImageURLs[idx],
			ThumbnailURL: demoImageURLs[idx],
			Coordinates:  &coords,
			Source:       demoSource,
			Sensor:       "Demo Earth Observation",
		},
		{
			Identifier:   fmt.Sprintf("demo_satellite_%s_2", hash),
			Caption:      fmt.Sprintf("%s region - Multi-spectral satellite imagery (%s)", r.target.Name, start),
			Date:         start,
			ImageURL:     demoImageURLs[(idx+1)%len(demoImageURLs)],
			ThumbnailURL: demoImageURLs[(idx+1)%len(demoImageURLs)],
			Coordinates:  &coords,
			Source:       demoSource,
			Sensor:       "Demo Multi-spectral",
		},
	}
	return p
}

// locationHash lowercases name and strips all whitespace.
func locationHash(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(name))
}
