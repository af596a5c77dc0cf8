package cli

import (
	"heartprep/internal/config"
	"heartprep/internal/metrics"
	"heartprep/internal/metrics/datadog"
	"heartprep/internal/metrics/prompush"

	"go.uber.org/zap"
)

// setupMetrics installs the configured backend and returns the flush func to
// defer. Unknown backends and construction failures only disable metrics.
func setupMetrics(m config.Metrics, log *zap.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(serviceName, m.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:      m.DatadogAddr,
			Namespace: serviceName + ".",
		})
	default:
		return func() {}
	}
	if err != nil {
		log.Warn("metrics: backend disabled", zap.String("backend", m.Backend), zap.Error(err))
		return func() {}
	}
	metrics.SetBackend(b)
	log.Debug("metrics: backend installed", zap.String("backend", m.Backend))
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush failed", zap.String("backend", m.Backend), zap.Error(err))
		}
	}
}
