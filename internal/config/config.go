// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for lockbox.
// It aggregates all sub-configurations and is populated by merging values
// from environment variables, command-line flags, an optional JSON file,
// and built-in defaults (in that order of precedence).
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Storage holds configuration for the durable key-value backend the
	// vault persists into.
	Storage Storage `envPrefix:"STORAGE_"`

	// Crypto holds tuning parameters for the key-derivation caches.
	// The derivation function itself (iteration count, digest, key length)
	// is deliberately not configurable: it must be identical for every
	// encrypt and decrypt call over the vault's lifetime.
	Crypto Crypto `envPrefix:"CRYPTO_"`

	// Pipeline holds settings for the batched streaming decrypt pipeline.
	Pipeline Pipeline `envPrefix:"PIPELINE_"`

	// App holds application-level settings used by the CLI.
	App App `envPrefix:"APP_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged below the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Storage holds configuration for the durable key-value persistence backend.
type Storage struct {
	// Backend selects the persistence implementation: "file" for a single
	// JSON state file, "sqlite" for a SQLite-backed key-value table.
	// Env: STORAGE_BACKEND
	Backend string `env:"BACKEND"`

	// Path is the location of the backing store: the state file path for
	// the file backend, the database file path for the sqlite backend.
	// Env: STORAGE_PATH
	Path string `env:"PATH"`
}

// Crypto holds capacity settings for the two derived-key caches.
type Crypto struct {
	// InteractiveCacheSize bounds the cache used by single-record
	// operations (unlock, reveal one entry).
	// Env: CRYPTO_INTERACTIVE_CACHE_SIZE
	InteractiveCacheSize int `env:"INTERACTIVE_CACHE_SIZE"`

	// BulkCacheSize bounds the cache used by bulk operations
	// (full-vault decrypt, import).
	// Env: CRYPTO_BULK_CACHE_SIZE
	BulkCacheSize int `env:"BULK_CACHE_SIZE"`
}

// Pipeline holds settings for the batch decrypt pipeline.
type Pipeline struct {
	// BatchYield is the cooperative pause inserted between emitted batches
	// so a large vault decrypt does not monopolize the process (e.g. "10ms").
	// Env: PIPELINE_BATCH_YIELD
	BatchYield time.Duration `env:"BATCH_YIELD"`
}

// App holds application-level settings for the lockbox CLI.
type App struct {
	// ClipboardTimeout is how long a secret copied to the system clipboard
	// stays there before the CLI clears it (e.g. "30s"). Zero disables
	// automatic clearing.
	// Env: APP_CLIPBOARD_TIMEOUT
	ClipboardTimeout time.Duration `env:"CLIPBOARD_TIMEOUT"`
}

// defaults returns the built-in configuration used as the lowest-precedence
// merge layer.
func defaults() *StructuredConfig {
	return &StructuredConfig{
		Storage: Storage{
			Backend: "file",
			Path:    "lockbox.vault",
		},
		Crypto: Crypto{
			InteractiveCacheSize: 5,
			BulkCacheSize:        64,
		},
		Pipeline: Pipeline{
			BatchYield: 10 * time.Millisecond,
		},
		App: App{
			ClipboardTimeout: 30 * time.Second,
		},
	}
}

// validate checks the merged configuration for consistency.
func (c *StructuredConfig) validate() error {
	if c.Storage.Backend != "file" && c.Storage.Backend != "sqlite" {
		return ErrInvalidStorageConfigs
	}
	if c.Storage.Path == "" {
		return ErrInvalidStorageConfigs
	}
	if c.Crypto.InteractiveCacheSize <= 0 || c.Crypto.BulkCacheSize <= 0 {
		return ErrInvalidCryptoConfigs
	}
	if c.Pipeline.BatchYield < 0 {
		return ErrInvalidPipelineConfigs
	}

	return nil
}

// GetConfig loads, merges and validates the full lockbox configuration.
// Precedence, highest first: environment variables, command-line flags,
// JSON file, built-in defaults.
func GetConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
