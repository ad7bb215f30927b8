package store

// Config holds configuration for the Store.
type Config struct {
	// TablePrefix is prepended to every logical table name (entity tables and
	// the unique table). Useful for per-environment isolation.
	// Default: "" (no prefix)
	TablePrefix string

	// UniqueTable is the logical name of the unique constraints table.
	// Default: "unique_constraints"
	UniqueTable string

	// MaxBatchRetries bounds how many times unprocessed items of a batch
	// delete are resubmitted before the delete fails.
	// Default: 5
	// Max: 20
	MaxBatchRetries int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UniqueTable:     "unique_constraints",
		MaxBatchRetries: 5,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.UniqueTable == "" {
		c.UniqueTable = "unique_constraints"
	}
	if c.MaxBatchRetries < 1 {
		c.MaxBatchRetries = 5
	}
	if c.MaxBatchRetries > 20 {
		c.MaxBatchRetries = 20
	}
}
