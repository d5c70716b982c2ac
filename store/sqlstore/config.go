package sqlstore

import "time"

// Config holds connection settings. The env tags name the variables
// cmd/cachectl reads for the postgres backend; envDefault matches DefaultConfig.
type Config struct {
	ConnectionString string `env:"DATABASE_URL,required"`

	// Table must match the shape created by Migrate. Migrate only creates the default table.
	Table           string `env:"ASIDECACHE_TABLE" envDefault:"asidecache_entries"`
	MigrationsTable string `env:"ASIDECACHE_MIGRATIONS_TABLE" envDefault:"asidecache_migrations"`

	HealthCheckPeriod time.Duration `env:"DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"1s"`

	MaxOpenConns int32 `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	MinConns     int32 `env:"DATABASE_MIN_CONNS" envDefault:"1"`
}

// DefaultConfig returns the envDefault values with the given connection string.
func DefaultConfig(conn string) Config {
	return Config{
		ConnectionString:  conn,
		Table:             DefaultTable,
		MigrationsTable:   "asidecache_migrations",
		HealthCheckPeriod: time.Minute,
		MaxConnIdleTime:   10 * time.Minute,
		MaxConnLifetime:   30 * time.Minute,
		RetryAttempts:     3,
		RetryInterval:     time.Second,
		MaxOpenConns:      10,
		MinConns:          1,
	}
}
