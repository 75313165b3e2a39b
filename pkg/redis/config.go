package redis

import "time"

// Config holds Redis connection settings loaded from the environment.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"5s"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
}
