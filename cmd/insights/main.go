// Command insights is the operator CLI. It runs the same service graph as
// the API against the configured vendors and prints JSON to stdout.
//
//	insights search "weather in Tokyo last week"
//	insights time-travel --place Paris --range 1month --types weather,news
//	insights resolve --lat 48.85 --lon 2.35
//	insights version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Beez1/bounceinsights/internal/app"
	"github.com/Beez1/bounceinsights/internal/config"
	"github.com/Beez1/bounceinsights/internal/gazetteer"
	"github.com/Beez1/bounceinsights/internal/insights"
	"github.com/Beez1/bounceinsights/internal/resolver"
	"github.com/Beez1/bounceinsights/internal/types"
)

type rootFlags struct {
	envFiles []string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "insights",
		Short:        "Query the Earth insights service graph from the command line",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "dotenv files to load (repeatable)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		searchCmd(flags),
		timeTravelCmd(flags),
		resolveCmd(flags),
		versionCmd(),
	)
	return root
}

// buildApp loads configuration and wires the service graph. Metrics are
// disabled so a CLI run never needs AWS credentials.
func buildApp(cmd *cobra.Command, flags *rootFlags) (*app.App, error) {
	cfg, err := config.LoadConfigFrom(flags.envFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	cfg.Observability.MetricsBackend = "none"
	return app.Build(cmd.Context(), cfg, newLogger(cmd.ErrOrStderr(), flags.logLevel))
}

func searchCmd(flags *rootFlags) *cobra.Command {
	var (
		maxResults int
		noAnalysis bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a natural-language search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd, flags)
			if err != nil {
				return err
			}
			include := !noAnalysis
			resp, err := a.Insights.Search(cmd.Context(), insights.SearchRequest{
				Query:           strings.Join(args, " "),
				MaxResults:      maxResults,
				IncludeAnalysis: &include,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().IntVar(&maxResults, "max", 0, "maximum number of locations (default from config)")
	cmd.Flags().BoolVar(&noAnalysis, "no-analysis", false, "skip the narrative")
	return cmd
}

func timeTravelCmd(flags *rootFlags) *cobra.Command {
	var (
		place      string
		lat, lon   float64
		timeRange  string
		start, end string
		dataTypes  []string
	)
	cmd := &cobra.Command{
		Use:   "time-travel",
		Short: "Gather the history of one location",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := locationFromFlags(cmd, place, lat, lon)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd, flags)
			if err != nil {
				return err
			}
			resp, err := a.Insights.TimeTravel(cmd.Context(), insights.TimeTravelRequest{
				Location:  loc,
				TimeRange: timeRange,
				StartDate: start,
				EndDate:   end,
				DataTypes: dataTypes,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&place, "place", "", "place name")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().StringVar(&timeRange, "range", "", "1month, 6months, 1year or 5years")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&dataTypes, "types", nil, "data types to gather")
	cmd.MarkFlagsMutuallyExclusive("place", "lat")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	return cmd
}

// resolveCmd runs against the bundled gazetteer only.
func resolveCmd(flags *rootFlags) *cobra.Command {
	var lat, lon float64
	cmd := &cobra.Command{
		Use:   "resolve [place]",
		Short: "Resolve a place name or coordinates against the gazetteer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			place := strings.Join(args, " ")
			loc, err := locationFromFlags(cmd, place, lat, lon)
			if err != nil {
				return err
			}
			r := resolver.New(gazetteer.Default(), nil, newLogger(cmd.ErrOrStderr(), flags.logLevel))

			var target types.GeoTarget
			if loc.Coordinates != nil {
				target, err = r.FromCoordinates(*loc.Coordinates)
			} else {
				target, err = r.FromName(loc.Name)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), target)
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			b := config.NewBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "insights %s (commit: %s, built: %s)\n", b.Version, b.Commit, b.BuildTime)
		},
	}
}

// locationFromFlags prefers coordinates when --lat was given.
func locationFromFlags(cmd *cobra.Command, place string, lat, lon float64) (insights.LocationInput, error) {
	if cmd.Flags().Changed("lat") {
		return insights.LocationInput{Coordinates: &types.LatLon{Lat: lat, Lon: lon}}, nil
	}
	if strings.TrimSpace(place) == "" {
		return insights.LocationInput{}, fmt.Errorf("a place or --lat/--lon is required")
	}
	return insights.LocationInput{Name: place}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
