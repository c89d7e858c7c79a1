// Package logger builds the application's zap logger.
//
// Level selects the minimum level (debug, info, warn, error) and Format selects json
// (production) or console (development) encoding.
//
// WithRayID attaches the request id stored by the rayid middleware so every line logged
// while serving a request can be correlated.
//
//	log, _ := logger.New(&cfg.Log)
//	log.Info("Server started")
//
//	l := logger.WithRayID(log, c)
//	l.Error("Handler failed", zap.Error(err))
package logger
