package payments

// Config holds configuration for the payment platform API.
type Config struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string `mapstructure:"base_url" default:"https://api.stripe.com/v1"`
	// Currency is the account currency used for holdback lookups.
	Currency string `mapstructure:"currency" default:"usd"`
	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
