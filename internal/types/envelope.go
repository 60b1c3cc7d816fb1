package types

import "time"

// SourceCounts tallies outcomes for one source family.
type SourceCounts struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// EnvelopeMetadata reports the shape of a gathered response.
type EnvelopeMetadata struct {
	TotalRequested   int                       `json:"totalRequested"`
	SuccessCount     int                       `json:"successCount"`
	FailureCount     int                       `json:"failureCount"`
	PerSource        map[DataType]SourceCounts `json:"perSource"`
	ProcessingTimeMs int64                     `json:"processingTimeMs"`
	Timestamp        time.Time                 `json:"timestamp"`
}

// ResponseEnvelope is the reconciled result of one multi-source request.
// Synthesis is nil when no narrative was requested or it failed; in the
// latter case SynthesisNote explains why.
type ResponseEnvelope struct {
	OriginalInput   any              `json:"originalInput"`
	ResolvedTargets []GeoTarget      `json:"resolvedTargets"`
	Results         []SourceResult   `json:"results"`
	Summary         []string         `json:"summary,omitempty"`
	Synthesis       *string          `json:"synthesis"`
	SynthesisNote   string           `json:"synthesisNote,omitempty"`
	Narrative       *NarrativeMeta   `json:"narrative,omitempty"`
	Metadata        EnvelopeMetadata `json:"metadata"`
}

// NarrativeMeta describes a generated synthesis.
type NarrativeMeta struct {
	Model       string     `json:"model"`
	TokensUsed  int        `json:"tokensUsed"`
	Sources     []DataType `json:"dataSourcesUsed"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// CountResults tallies results per source.
func CountResults(results []SourceResult) EnvelopeMetadata {
	meta := EnvelopeMetadata{
		TotalRequested: len(results),
		PerSource:      make(map[DataType]SourceCounts),
	}
	for _, r := range results {
		c := meta.PerSource[r.SourceType()]
		if r.OK() {
			meta.SuccessCount++
			c.Success++
		} else {
			meta.FailureCount++
			c.Failure++
		}
		meta.PerSource[r.SourceType()] = c
	}
	return meta
}

// BriefingJob is the SQS message body for an asynchronous email briefing.
type BriefingJob struct {
	JobID          string   `json:"job_id"`
	RecipientEmail string   `json:"recipient_email"`
	ImageURL       string   `json:"image_url"`
	Date           string   `json:"date"`
	Countries      []string `json:"countries,omitempty"`
	RequestID      string   `json:"request_id,omitempty"`
	RetryCount     int      `json:"retry_count"`
}

// RegionContext is the per-country context attached to an image: the
// capital's weather on one day and current headlines.
type RegionContext struct {
	Country string    `json:"country"`
	Capital string    `json:"capital"`
	Lat     float64   `json:"lat"`
	Lon     float64   `json:"lon"`
	Weather string    `json:"weather"`
	News    []Article `json:"news"`
}
