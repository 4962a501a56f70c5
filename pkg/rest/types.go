// Package rest holds the wire types and HTTP client for the metrics
// submission endpoint. The types mirror the service's OpenAPI document.
package rest

// KeyValue is a single attribute pair on a metrics or target record.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TargetData describes one non-anonymous target observed during an interval.
type TargetData struct {
	Identifier string     `json:"identifier"`
	Name       string     `json:"name"`
	Attributes []KeyValue `json:"attributes"`
}

// MetricsData is one aggregated (flag, variation) usage record.
type MetricsData struct {
	Timestamp   int64      `json:"timestamp"`
	Count       int64      `json:"count"`
	MetricsType string     `json:"metricsType"`
	Attributes  []KeyValue `json:"attributes"`
}

// Metrics is the full submission payload for one flush interval.
type Metrics struct {
	TargetData  []TargetData  `json:"targetData,omitempty"`
	MetricsData []MetricsData `json:"metricsData,omitempty"`
}

// MetricsTypeFFMetrics is the only metrics record type this SDK emits.
const MetricsTypeFFMetrics = "FFMETRICS"
