package retry

import "time"

// Config holds the retry policy applied to every external network call.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int `mapstructure:"max_attempts" default:"3"`
	// InitialDelayMS is the delay before the second attempt, in milliseconds.
	InitialDelayMS int `mapstructure:"initial_delay_ms" default:"1000"`
	// MaxDelayMS caps the computed backoff delay, in milliseconds.
	MaxDelayMS int `mapstructure:"max_delay_ms" default:"30000"`
	// Multiplier is the exponential backoff factor.
	Multiplier float64 `mapstructure:"multiplier" default:"2"`
	// Jitter adds up to 25% of random delay on top of the backoff.
	Jitter bool `mapstructure:"jitter" default:"true"`
}

func (c Config) initialDelay() time.Duration {
	return time.Duration(c.InitialDelayMS) * time.Millisecond
}

func (c Config) maxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}
