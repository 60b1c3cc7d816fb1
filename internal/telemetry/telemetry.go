// Package telemetry implements the metric sinks used by the API, the
// orchestrator, the fallback chain and the briefing dispatcher.
package telemetry

import (
	"time"

	"github.com/Beez1/bounceinsights/internal/types"
)

// Collector is the union of every metric hook in the service.
type Collector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordSource(source types.DataType, outcome string, duration time.Duration)
	RecordFallbackStage(stage types.FallbackStage)
	RecordBriefing(outcome string)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordRequest(string, string, string, time.Duration) {}
func (Nop) RecordSource(types.DataType, string, time.Duration) {}
func (Nop) RecordFallbackStage(types.FallbackStage) {}
func (Nop) RecordBriefing(string) {}

var _ Collector = Nop{}
