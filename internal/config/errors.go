package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidStorageConfigs indicates invalid storage settings
	// (for example, an unknown backend or empty path).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidCryptoConfigs indicates invalid key-cache settings
	// (for example, a non-positive cache capacity).
	ErrInvalidCryptoConfigs = errors.New("invalid crypto configuration")
	// ErrInvalidPipelineConfigs indicates invalid decrypt pipeline settings
	// (for example, a negative batch yield).
	ErrInvalidPipelineConfigs = errors.New("invalid pipeline configuration")
)
