package secrets

// Config holds configuration for the secure credential store.
type Config struct {
	// Key is an optional 32-byte sealing key, hex or base64 encoded.
	// When empty, values are stored as given.
	Key string `mapstructure:"key" default:""`
}
