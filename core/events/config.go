package events

// Config holds configuration for the message broker.
type Config struct {
	// URL is the AMQP connection string. Empty disables publishing.
	URL string `mapstructure:"url" default:""`
	// TimeoutSeconds bounds a single publish.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"5"`
}
