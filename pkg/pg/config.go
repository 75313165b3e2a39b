package pg

import "time"

// Config holds PostgreSQL connection settings loaded from the environment.
type Config struct {
	ConnString      string        `env:"PG_CONN_STRING,required"`
	MaxConns        int32         `env:"PG_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"PG_MIN_CONNS" envDefault:"0"`
	MaxConnLifetime time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	ConnectTimeout  time.Duration `env:"PG_CONNECT_TIMEOUT" envDefault:"10s"`
	RetryAttempts   int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval   time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"2s"`
}
