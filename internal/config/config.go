package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr          string        `envconfig:"KURATOR_ADDR" default:":8080"`
	AdminAddr     string        `envconfig:"ADMIN_ADDR" default:"localhost:8081"`
	DBFile        string        `envconfig:"KURATOR_DB" default:"kurator.db"`
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	TokenCacheTTL time.Duration `envconfig:"TOKEN_CACHE_TTL" default:"5m"`
	PresenceTTL   time.Duration `envconfig:"PRESENCE_TTL" default:"90s"`
	PresenceSweep time.Duration `envconfig:"PRESENCE_SWEEP" default:"30s"`
	// SEND_BUFFER is the per-connection outbound queue; events beyond it drop.
	SendBuffer int `envconfig:"SEND_BUFFER" default:"64"`
}

func Load(cliMode bool) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(cliMode); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate(cliMode bool) error {
	if c.JWTSecret == "" && !cliMode {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.PresenceTTL <= 0 {
		return fmt.Errorf("PRESENCE_TTL must be greater than 0")
	}

	if c.PresenceSweep <= 0 {
		return fmt.Errorf("PRESENCE_SWEEP must be greater than 0")
	}

	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be greater than 0")
	}

	return nil
}
