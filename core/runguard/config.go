package runguard

// Config holds configuration for the run guard.
type Config struct {
	// RedisAddr is host:port of the Redis server. Empty selects the in-process guard.
	RedisAddr string `mapstructure:"redis_addr" default:""`
	// RedisPassword is the optional Redis password.
	RedisPassword string `mapstructure:"redis_password" default:""`
	// RedisDB is the Redis database number.
	RedisDB int `mapstructure:"redis_db" default:"0"`
	// KeyPrefix namespaces lock keys.
	KeyPrefix string `mapstructure:"key_prefix" default:"trust-ledger:run:"`
	// TTLSeconds bounds how long a crashed run can hold a lock.
	TTLSeconds int `mapstructure:"ttl_seconds" default:"900"`
}
