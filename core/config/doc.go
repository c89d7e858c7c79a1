// Package config loads the application configuration.
//
// Every package owns a Config struct whose fields carry mapstructure and default tags.
// LoadConfig walks the aggregate Config by reflection, registers every key with its
// default in Viper and then reads environment variables, optionally seeded from a .env
// file. Nested keys map to upper-case environment names joined by underscores:
// booking.client_id is BOOKING_CLIENT_ID, retry.max_attempts is RETRY_MAX_ATTEMPTS.
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Server.Port)
package config
