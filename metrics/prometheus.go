// Package metrics provides a Prometheus implementation of
// cdoc.MetricsRecorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leifj/cdoc"
)

// PrometheusRecorder records parser calls using Prometheus.
type PrometheusRecorder struct {
	parseTotal *prometheus.CounterVec
}

var _ cdoc.MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a recorder using the default Prometheus
// registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return NewPrometheusRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWithRegistry creates a recorder with a custom
// registry. Use this for testing.
func NewPrometheusRecorderWithRegistry(reg prometheus.Registerer) *PrometheusRecorder {
	parseTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdoc_parse_total",
		Help: "Total container parse calls by operation, detected format and result",
	}, []string{"operation", "format", "result"})

	reg.MustRegister(parseTotal)

	return &PrometheusRecorder{parseTotal: parseTotal}
}

// RecordParse records one parser call. The result label is "success" or the
// error code of the failure.
func (p *PrometheusRecorder) RecordParse(operation, format string, err error) {
	result := "success"
	if err != nil {
		result = string(cdoc.CodeOf(err))
		if result == "" {
			result = "error"
		}
	}
	if format == "" {
		format = "unknown"
	}
	p.parseTotal.WithLabelValues(operation, format, result).Inc()
}
