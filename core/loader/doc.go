// Package loader registers HTTP features and loads the enabled ones.
//
// Each feature implements Feature:
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// The start command registers the entitlements and integrity features with a
// Manager and calls LoadAll once the middleware chain is in place.
package loader
