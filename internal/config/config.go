package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultAddress  = "127.0.0.1:7878"
	DefaultValueMin = 0
	DefaultValueMax = 9
)

// ClientConfig is the on-disk matrixctl config. Durations are Go duration
// strings; empty means unset.
type ClientConfig struct {
	Address         string  `toml:"address"`
	ConnectTimeout  string  `toml:"connect_timeout"`
	ReadTimeout     string  `toml:"read_timeout"`
	WriteTimeout    string  `toml:"write_timeout"`
	PollInterval    string  `toml:"poll_interval"`
	PollMultiplier  float64 `toml:"poll_multiplier"`
	PollMaxInterval string  `toml:"poll_max_interval"`
	PollJitter      bool    `toml:"poll_jitter"`
	MaxPolls        int     `toml:"max_polls"`
	PollTimeout     string  `toml:"poll_timeout"`
	StrictAcks      bool    `toml:"strict_acks"`
	ValueMin        int32   `toml:"value_min"`
	ValueMax        int32   `toml:"value_max"`
	MetricsAddr     string  `toml:"metrics_addr"`
}

// DefaultClientConfig is the file schema with every unset key at its default.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Address:  DefaultAddress,
		ValueMin: DefaultValueMin,
		ValueMax: DefaultValueMax,
	}
}

func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	return FinalizeClientConfig(cfg)
}

// FinalizeClientConfig fills an empty address and validates the result.
func FinalizeClientConfig(cfg ClientConfig) (ClientConfig, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	cfg.MetricsAddr = strings.TrimSpace(cfg.MetricsAddr)
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	addr := strings.TrimSpace(cfg.Address)
	if addr == "" {
		return fmt.Errorf("client config missing address")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("client config address invalid: %w", err)
	}
	durations := []struct {
		key string
		raw string
	}{
		{"connect_timeout", cfg.ConnectTimeout},
		{"read_timeout", cfg.ReadTimeout},
		{"write_timeout", cfg.WriteTimeout},
		{"poll_interval", cfg.PollInterval},
		{"poll_max_interval", cfg.PollMaxInterval},
		{"poll_timeout", cfg.PollTimeout},
	}
	for _, d := range durations {
		if _, err := ParseDuration(d.raw); err != nil {
			return fmt.Errorf("client config %s invalid: %w", d.key, err)
		}
	}
	if cfg.PollMultiplier < 0 {
		return fmt.Errorf("client config poll_multiplier must not be negative")
	}
	if cfg.MaxPolls < 0 {
		return fmt.Errorf("client config max_polls must not be negative")
	}
	if cfg.ValueMax <= cfg.ValueMin {
		return fmt.Errorf("client config value_max must exceed value_min")
	}
	return nil
}

// ParseDuration accepts an empty string as zero and rejects negative values.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}
