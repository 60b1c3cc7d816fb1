package types

// Metric names and dimensions shared by the CloudWatch and Prometheus
// collectors. All components MUST use these constants.
const (
	MetricAPILatency         = "APILatency"
	MetricAPIRequest         = "APIRequest"
	MetricSourceResult       = "SourceResult"
	MetricSourceLatency      = "SourceLatency"
	MetricFallbackStage      = "FallbackStage"
	MetricExternalAPIFailure = "ExternalAPIFailure"
	MetricBriefingSent       = "BriefingSent"
	MetricBriefingFailed     = "BriefingFailed"

	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"
	DimSource   = "Source"
	DimOutcome  = "Outcome"
	DimStage    = "Stage"
	DimProvider = "Provider"

	MetricNamespace = "EarthInsights"
)
