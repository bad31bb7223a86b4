package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "matrixctl", "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `# compute service endpoint
address = "127.0.0.1:7878"

# "0s" blocks without a deadline
connect_timeout = "5s"
read_timeout = "0s"
write_timeout = "0s"

# poll pacing; poll_interval = "0s" polls back-to-back
poll_interval = "0s"
poll_multiplier = 1.0
poll_max_interval = "0s"
poll_jitter = false

# 0 disables the cap
max_polls = 0
poll_timeout = "0s"

strict_acks = false

# generated cells are drawn from [value_min, value_max)
value_min = 0
value_max = 9

metrics_addr = ""
`
