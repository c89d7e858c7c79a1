package server

import "fmt"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// BodyLimitKB bounds request bodies.
	BodyLimitKB int `mapstructure:"body_limit_kb" default:"64"`
}

// Address returns the listen address.
func (c Config) Address() string {
	return ":" + c.Port
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.ApiKey == "" {
		return fmt.Errorf("server api key is required")
	}
	return nil
}

// BodyLimit returns the body limit in bytes.
func (c Config) BodyLimit() int {
	if c.BodyLimitKB <= 0 {
		return 64 * 1024
	}
	return c.BodyLimitKB * 1024
}
