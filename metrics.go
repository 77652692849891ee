package cdoc

// MetricsRecorder observes parser calls. Implementations must be safe for
// concurrent use.
type MetricsRecorder interface {
	// RecordParse records one completed call. format is "" when the
	// container generation could not be determined.
	RecordParse(operation string, format string, err error)
}

// NoopMetricsRecorder discards all observations.
type NoopMetricsRecorder struct{}

// RecordParse does nothing.
func (NoopMetricsRecorder) RecordParse(string, string, error) {}
