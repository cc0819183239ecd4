// Package flags groups urfave/cli flag categories shared across the
// bundler's command-line surface.
package flags

const (
	LoggingCategory = "LOGGING AND DEBUGGING"
	PoolCategory    = "OPERATION POOL"
	TrackerCategory = "TRANSACTION TRACKER"
)
