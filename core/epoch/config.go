package epoch

import (
	"fmt"
	"strings"
	"time"
)

const (
	// SourceManual advances epochs only through explicit operator calls.
	SourceManual = "manual"
	// SourceTime derives the epoch from wall-clock time since genesis.
	SourceTime = "time"
)

// Config describes where the pool reads the canonical epoch from.
type Config struct {
	// Source selects the clock implementation: "manual" or "time".
	Source string

	// Length is the wall-clock duration of one epoch. Only used by the time
	// source and must be greater than zero there.
	Length time.Duration

	// Genesis is the instant epoch zero began. Only used by the time source.
	Genesis time.Time
}

// DefaultConfig returns a manual clock configuration.
func DefaultConfig() Config {
	return Config{
		Source: SourceManual,
		Length: 24 * time.Hour,
	}
}

// Validate ensures the configuration is self-consistent.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Source)) {
	case "", SourceManual:
		return nil
	case SourceTime:
		if c.Length <= 0 {
			return fmt.Errorf("epoch length must be greater than zero")
		}
		if c.Genesis.IsZero() {
			return fmt.Errorf("epoch genesis must be set for the time source")
		}
		return nil
	default:
		return fmt.Errorf("unknown epoch source %q", c.Source)
	}
}
