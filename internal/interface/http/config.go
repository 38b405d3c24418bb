package httpservice

import (
	"fmt"
)

type Config struct {
	Port      uint32
	AdminPort uint32
	// NoLedgerFaucet disables the admin faucet route.
	NoLedgerFaucet bool
}

func (c Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("missing port")
	}
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) adminAddress() string {
	return fmt.Sprintf(":%d", c.AdminPort)
}

func (c Config) hasAdminPort() bool {
	return c.AdminPort > 0 && c.AdminPort != c.Port
}
