package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/matrixctl/internal/compute"
	"github.com/danmuck/matrixctl/internal/config"
)

// runConfig is everything one matrixctl invocation needs beyond its
// positional arguments.
type runConfig struct {
	Client      compute.ClientConfig
	ValueMin    int32
	ValueMax    int32
	MetricsAddr string
}

func defaultRunConfig() runConfig {
	return runConfig{
		Client:   compute.DefaultClientConfig(),
		ValueMin: config.DefaultValueMin,
		ValueMax: config.DefaultValueMax,
	}
}

// loadRunConfig decodes path over the file defaults and runs the same
// validation and session mapping as configgen -validate.
func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	raw := config.DefaultClientConfig()
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load matrixctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return runConfig{}, fmt.Errorf("unknown matrixctl config keys: %v", undecoded)
	}

	file, err := config.FinalizeClientConfig(raw)
	if err != nil {
		return runConfig{}, err
	}
	sess, err := file.SessionConfig()
	if err != nil {
		return runConfig{}, err
	}
	cfg.Client.Address = file.Address
	cfg.Client.Session = sess
	cfg.ValueMin = file.ValueMin
	cfg.ValueMax = file.ValueMax
	cfg.MetricsAddr = file.MetricsAddr
	return cfg, nil
}
