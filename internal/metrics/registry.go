package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/buildplan/internal/errors"
)

// NewRegistry creates a new Prometheus registry with metrics
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	return reg, m
}

// WriteTextfile writes everything g gathers to path in the text
// exposition format, for a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewFileWriteError(path, err)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return errors.NewFileWriteError(path, err)
	}
	return nil
}
