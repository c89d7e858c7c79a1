package config

import (
	"reflect"
	"strings"

	"trust-ledger/core/database"
	"trust-ledger/core/events"
	"trust-ledger/core/logger"
	"trust-ledger/core/retry"
	"trust-ledger/core/runguard"
	"trust-ledger/core/secrets"
	"trust-ledger/core/server"
	"trust-ledger/core/storage"
	"trust-ledger/core/telemetry"
	"trust-ledger/feature/booking"
	"trust-ledger/feature/payments"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations owned by the packages that use them.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the snapshot archive.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Secrets holds configuration for the credential store.
	Secrets secrets.Config `mapstructure:"secrets"`
	// Retry holds the backoff policy for external requests.
	Retry retry.Config `mapstructure:"retry"`
	// Booking holds configuration for the booking platform API.
	Booking booking.Config `mapstructure:"booking"`
	// Payments holds configuration for the payment platform API.
	Payments payments.Config `mapstructure:"payments"`
	// Guard holds configuration for the run guard.
	Guard runguard.Config `mapstructure:"guard"`
	// Broker holds configuration for event publishing.
	Broker events.Config `mapstructure:"broker"`
	// Telemetry holds configuration for tracing.
	Telemetry telemetry.Config `mapstructure:"telemetry"`
}

// LoadConfig loads configuration from environment variables and an optional .env file in path.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Missing .env is normal in production.
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues walks the struct and registers every mapstructure key with its 'default' tag.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
