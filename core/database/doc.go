// Package database opens the application database.
//
// It wraps GORM and selects the dialect from configuration:
//
//   - mysql: production. The DSN carries connect/read/write timeouts and the pool is tuned.
//   - sqlite: local runs and tests. ":memory:" databases are pinned to a single connection
//     so every query sees the same schema.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
