// Package domain holds the core entities, derived views, and ports of the
// polling engine. Repositories and transports depend on this package, never
// the other way around.
package domain
