package booking

// Config holds configuration for the booking platform API.
type Config struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string `mapstructure:"base_url" default:"https://open-api.guesty.com/v1"`
	// TokenURL is the OAuth2 client-credentials endpoint.
	TokenURL string `mapstructure:"token_url" default:"https://open-api.guesty.com/oauth2/token"`
	// Scope is requested with every token.
	Scope string `mapstructure:"scope" default:"open-api"`
	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
