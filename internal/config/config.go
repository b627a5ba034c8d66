// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Keep fields koanf-tagged and provide New() defaults.
// - Layer defaults -> optional YAML file -> KLSI_-prefixed env vars.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration for the scoring engine.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DBDSN is the sqlite DSN for the result store. Empty uses the
	// store's default on-disk database.
	DBDSN string `koanf:"db_dsn"`

	// CatalogPath points at a reference catalog YAML. Empty uses the
	// embedded KLSI 4.0 catalog.
	CatalogPath string `koanf:"catalog_path"`

	// ConcurrentScales computes the four basic-mode sums in parallel.
	ConcurrentScales bool `koanf:"concurrent_scales"`

	// LockSessions requests a per-session lock from the store before
	// scoring, serializing concurrent rescoring of the same session.
	LockSessions bool `koanf:"lock_sessions"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		DBDSN:            "",
		CatalogPath:      "",
		ConcurrentScales: false,
		LockSessions:     true,
	}
}
