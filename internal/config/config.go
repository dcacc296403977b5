package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN    string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL    string `env:"RABBITMQ_URL,required=true"`
	RedisURL       string `env:"REDIS_URL,required=true"`
	StillingAPIURL string `env:"STILLING_API_URL,required=true"`

	VarselExchange         string `env:"VARSEL_EXCHANGE,default=min-side.brukervarsel"`
	VarselRoutingKey       string `env:"VARSEL_ROUTING_KEY,default=opprett"`
	VarselHendelseExchange string `env:"VARSEL_HENDELSE_EXCHANGE,default=min-side.brukervarsel-hendelse"`
	VarselHendelseQueue    string `env:"VARSEL_HENDELSE_QUEUE,default=kandidatvarsel.varsel-hendelse"`
	RapidExchange          string `env:"RAPID_EXCHANGE,default=toi.rapid"`
	RapidQueuePrefix       string `env:"RAPID_QUEUE_PREFIX,default=kandidatvarsel"`

	StillingLinkBaseURL string `env:"STILLING_LINK_BASE_URL,default=https://www.nav.no/arbeid/stilling"`
	TreffLinkBaseURL    string `env:"TREFF_LINK_BASE_URL,default=https://www.nav.no/rekrutteringstreff"`
	VarselActiveDays    int    `env:"VARSEL_ACTIVE_DAYS,default=28"`

	NaisClusterName string `env:"NAIS_CLUSTER_NAME,default=local"`
	NaisNamespace   string `env:"NAIS_NAMESPACE,default=toi"`
	NaisAppName     string `env:"NAIS_APP_NAME,default=rekrutteringsbistand-kandidatvarsel-api"`

	DispatcherConcurrency  int `env:"DISPATCHER_CONCURRENCY,default=1"`
	DispatchRatePerSec     int `env:"DISPATCH_RATE_PER_SEC,default=50"`
	DispatchIdleBackoffMS  int `env:"DISPATCH_IDLE_BACKOFF_MS,default=1000"`
	DispatchErrorBackoffMS int `env:"DISPATCH_ERROR_BACKOFF_MS,default=5000"`

	StatusPollWaitMS   int `env:"STATUS_POLL_WAIT_MS,default=1000"`
	StatusPollMaxBatch int `env:"STATUS_POLL_MAX_BATCH,default=100"`

	StillingCacheTTLSeconds int `env:"STILLING_CACHE_TTL_SECONDS,default=300"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"VARSEL_ACTIVE_DAYS", c.VarselActiveDays},
		{"DISPATCHER_CONCURRENCY", c.DispatcherConcurrency},
		{"DISPATCH_RATE_PER_SEC", c.DispatchRatePerSec},
		{"DISPATCH_IDLE_BACKOFF_MS", c.DispatchIdleBackoffMS},
		{"DISPATCH_ERROR_BACKOFF_MS", c.DispatchErrorBackoffMS},
		{"STATUS_POLL_WAIT_MS", c.StatusPollWaitMS},
		{"STATUS_POLL_MAX_BATCH", c.StatusPollMaxBatch},
		{"STILLING_CACHE_TTL_SECONDS", c.StillingCacheTTLSeconds},
		{"API_PORT", c.APIPort},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	return nil
}

func (c *Config) VarselActiveFor() time.Duration {
	return time.Duration(c.VarselActiveDays) * 24 * time.Hour
}

func (c *Config) DispatchIdleBackoff() time.Duration {
	return time.Duration(c.DispatchIdleBackoffMS) * time.Millisecond
}

func (c *Config) DispatchErrorBackoff() time.Duration {
	return time.Duration(c.DispatchErrorBackoffMS) * time.Millisecond
}

func (c *Config) StatusPollWait() time.Duration {
	return time.Duration(c.StatusPollWaitMS) * time.Millisecond
}

func (c *Config) StillingCacheTTL() time.Duration {
	return time.Duration(c.StillingCacheTTLSeconds) * time.Second
}
