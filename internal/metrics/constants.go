package metrics

// Metric names
const (
	MetricNameHTTPRequestsTotal    = "http_requests_total"
	MetricNameHTTPRequestDuration  = "http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "http_requests_in_flight"

	MetricNameUnboxesTotal         = "unboxes_total"
	MetricNameUnboxPersistFailures = "unbox_persist_failures_total"
	MetricNameUnboxesRateLimited   = "unboxes_rate_limited_total"
)

// Help text
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Current number of HTTP requests being served"

	HelpTextUnboxesTotal         = "Total number of items drawn, by rarity"
	HelpTextUnboxPersistFailures = "Total number of unbox results that could not be stored"
	HelpTextUnboxesRateLimited   = "Total number of unbox requests rejected by the rate limiter"
)

// Labels
const (
	LabelMethod = "method"
	LabelPath   = "path"
	LabelStatus = "status"
	LabelRarity = "rarity"
	LabelStage  = "stage"
)

// Persist failure stages.
const (
	StageEnqueue  = "enqueue"
	StageInsert   = "insert"
	StageShutdown = "shutdown"
)

// HTTPLatencyBuckets covers fast JSON reads up to slow batch inserts.
var HTTPLatencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
