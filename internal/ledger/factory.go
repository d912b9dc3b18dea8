package ledger

import (
	"fmt"

	"nexus-go/internal/config"
	"nexus-go/internal/nexus"
)

// NewLedgerFromConfig picks the backend named by the config section.
func NewLedgerFromConfig(cfg *config.LedgerConfig) (nexus.Ledger, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryLedger(), nil
	case "gateway":
		if cfg.GatewayURL == "" {
			return nil, fmt.Errorf("gateway ledger requires a url")
		}
		return NewGatewayLedger(cfg.GatewayURL, cfg.GatewayToken), nil
	default:
		return nil, fmt.Errorf("unknown ledger type: %s", cfg.Type)
	}
}
