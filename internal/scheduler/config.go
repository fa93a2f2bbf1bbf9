package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/vaultline/internal/config"
)

// Config controls the cron schedule and per-job limits.
type Config struct {
	Enabled    bool
	Schedule   string
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Schedule:   "15 0 1 * *",
		JobTimeout: 2 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	if s := strings.TrimSpace(cfg.BillingCron); s != "" {
		c.Schedule = s
	}
	if strings.EqualFold(c.Schedule, "off") {
		c.Enabled = false
	}
	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.Schedule) == "" {
		c.Schedule = defaults.Schedule
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
