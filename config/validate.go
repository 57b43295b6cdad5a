package config

import (
	"fmt"
	"strings"
)

// ValidateConfig checks every section that can be verified without opening
// the data directory.
func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config must not be nil")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if strings.TrimSpace(c.NativeSymbol) == "" {
		return fmt.Errorf("NativeSymbol must not be empty")
	}
	if strings.EqualFold(c.NativeSymbol, "FUSD") {
		return fmt.Errorf("NativeSymbol must differ from the stable token")
	}
	if _, err := c.EpochClock(); err != nil {
		return err
	}
	if _, err := c.PoolParams(); err != nil {
		return err
	}
	if _, err := c.OraclePrices(); err != nil {
		return err
	}
	return nil
}
