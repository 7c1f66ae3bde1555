package metrics

import (
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/ipmifanctl/metrics.db"
	defaultBatchSize    = 10
	defaultBatchTimeout = 5 * time.Minute
	defaultMaxBuffered  = 1000
)

type Config struct {
	DBPath  string
	Enabled bool
	// BackupDir receives a copy of the database before an incompatible
	// schema is replaced. Empty means next to DBPath.
	BackupDir    string
	BatchSize    int
	BatchTimeout time.Duration
	// MaxBuffered bounds the records kept while flushes fail; the oldest
	// are dropped first. Zero means the default, never less than BatchSize.
	MaxBuffered int
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		Enabled:      false, // Disabled by default
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if metrics is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 || c.MaxBuffered < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout time.Duration
			MaxBuffered  int
		}{c.BatchSize, c.BatchTimeout, c.MaxBuffered})
	}

	return nil
}

func (c Config) bufferLimit() int {
	limit := c.MaxBuffered
	if limit == 0 {
		limit = defaultMaxBuffered
	}

	return max(limit, c.BatchSize, 1)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
