package config

import (
	"strings"
	"time"

	"github.com/danmuck/matrixctl/internal/protocol/session"
)

// SessionConfig maps file settings onto session defaults. Unset durations
// keep the default value.
func (c ClientConfig) SessionConfig() (session.Config, error) {
	cfg := session.DefaultConfig()
	set := []struct {
		raw string
		dst *time.Duration
	}{
		{c.ConnectTimeout, &cfg.ConnectTimeout},
		{c.ReadTimeout, &cfg.ReadTimeout},
		{c.WriteTimeout, &cfg.WriteTimeout},
		{c.PollInterval, &cfg.Poll.InitialDelay},
		{c.PollMaxInterval, &cfg.Poll.MaxDelay},
		{c.PollTimeout, &cfg.PollTimeout},
	}
	for _, s := range set {
		if strings.TrimSpace(s.raw) == "" {
			continue
		}
		d, err := ParseDuration(s.raw)
		if err != nil {
			return session.Config{}, err
		}
		*s.dst = d
	}
	if c.PollMultiplier > 0 {
		cfg.Poll.Multiplier = c.PollMultiplier
	}
	cfg.Poll.Jitter = c.PollJitter
	cfg.MaxPolls = c.MaxPolls
	cfg.StrictAcks = c.StrictAcks
	return cfg, cfg.Validate()
}
