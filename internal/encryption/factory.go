package encryption

import (
	"fmt"

	"nexus-go/internal/config"
	"nexus-go/internal/nexus"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration
// type. An empty type means photos are stored in the clear; callers get a
// nil encryptor and skip the encrypt step entirely.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (nexus.Encryptor, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
