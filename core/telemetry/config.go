package telemetry

// Config holds configuration for tracing.
type Config struct {
	// Endpoint is the OTLP gRPC collector address. Empty disables tracing.
	Endpoint string `mapstructure:"endpoint" default:""`
	// ServiceName is reported on every span.
	ServiceName string `mapstructure:"service_name" default:"trust-ledger"`
}
