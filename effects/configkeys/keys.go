// Package configkeys names the configuration keys read by cmd/effectd.
package configkeys

const delimiter = "."

const (
	LogPrefix     = "log"
	LogLevel      = LogPrefix + delimiter + "level"
	LogBufferSize = LogPrefix + delimiter + "buffer_size"
	LogNumWorkers = LogPrefix + delimiter + "num_workers"

	TracingPrefix      = "tracing"
	TracingEnabled     = TracingPrefix + delimiter + "enabled"
	TracingServiceName = TracingPrefix + delimiter + "service_name"
	TracingExporter    = TracingPrefix + delimiter + "exporter"

	GracefulPrefix  = "graceful"
	GracefulTimeout = GracefulPrefix + delimiter + "timeout"

	HTTPPrefix = "http"
	HTTPHost   = HTTPPrefix + delimiter + "host"
	HTTPPort   = HTTPPrefix + delimiter + "port"

	MetricsPrefix = "metrics"
	MetricsPath   = MetricsPrefix + delimiter + "path"
)

// All lists every leaf key.
func All() []string {
	return []string{
		LogLevel, LogBufferSize, LogNumWorkers,
		TracingEnabled, TracingServiceName, TracingExporter,
		GracefulTimeout,
		HTTPHost, HTTPPort,
		MetricsPath,
	}
}
