// Package loader provides the feature loading system for the HTTP API.
//
// Each feature implements the Feature interface, which names it, reports whether it is
// enabled and registers its routes.
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// The Manager keeps the registry. Register adds a feature and LoadAll loads every enabled
// one in registration order, stopping at the first error.
package loader
