package collection

import "time"

// Metrics receives the outcome of settled mutations and bulk runs.
type Metrics interface {
	ObserveMutation(collection, op, outcome string, d time.Duration)
	ObserveBulkRun(s Summary)
}

type noopMetrics struct{}

func (noopMetrics) ObserveMutation(string, string, string, time.Duration) {}
func (noopMetrics) ObserveBulkRun(Summary)                                {}
