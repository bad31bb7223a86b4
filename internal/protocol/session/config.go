package session

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("session: invalid config")

// BackoffConfig paces repeated polls. A zero InitialDelay polls back-to-back.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines transport/session reliability settings.
// Zero timeouts block without a deadline.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Poll           BackoffConfig
	// MaxPolls caps poll-loop iterations; 0 is unbounded.
	MaxPolls int
	// PollTimeout bounds the whole poll phase; 0 is unbounded.
	PollTimeout time.Duration
	// StrictAcks rejects acknowledgements that do not match the command sent.
	StrictAcks bool
}

// DefaultConfig keeps wire behavior of the reference client: no I/O
// deadlines, busy polling, no cap, acks unchecked.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		Poll: BackoffConfig{
			Multiplier: 1.0,
		},
	}
}

func (c Config) WithDefaults() Config {
	if c.Poll.Multiplier <= 0 {
		c.Poll.Multiplier = 1.0
	}
	return c
}

func (c Config) Validate() error {
	switch {
	case c.ConnectTimeout < 0:
		return fmt.Errorf("%w: negative connect timeout", ErrInvalidConfig)
	case c.ReadTimeout < 0:
		return fmt.Errorf("%w: negative read timeout", ErrInvalidConfig)
	case c.WriteTimeout < 0:
		return fmt.Errorf("%w: negative write timeout", ErrInvalidConfig)
	case c.PollTimeout < 0:
		return fmt.Errorf("%w: negative poll timeout", ErrInvalidConfig)
	case c.MaxPolls < 0:
		return fmt.Errorf("%w: negative max polls", ErrInvalidConfig)
	case c.Poll.InitialDelay < 0 || c.Poll.MaxDelay < 0:
		return fmt.Errorf("%w: negative poll delay", ErrInvalidConfig)
	}
	return nil
}
