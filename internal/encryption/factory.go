package encryption

import (
	"fmt"

	"blogback/internal/blog"
	"blogback/internal/config"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration
// type. Type "none" (the default) returns nil: archives are written
// unencrypted.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (blog.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
