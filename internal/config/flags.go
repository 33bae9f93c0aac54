package config

import (
	"flag"
	"time"
)

// Args returns the positional command-line arguments remaining after
// ParseFlags consumed the configuration flags.
func Args() []string {
	return flag.Args()
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-b/-backend storage backend ("file" or "sqlite")
//	-f/-path vault storage path
//	-c/-config json file path with configs
//	-interactive-cache interactive key-cache capacity
//	-bulk-cache bulk key-cache capacity
//	-batch-yield pause between emitted decrypt batches (e.g., "10ms")
//	-clipboard-timeout delay before a copied secret is cleared (e.g., "30s")
func ParseFlags() *StructuredConfig {
	var storageBackend string
	var storagePath string
	var jsonConfigPath string
	var interactiveCacheSize int
	var bulkCacheSize int
	var batchYield time.Duration
	var clipboardTimeout time.Duration

	flag.StringVar(&storageBackend, "b", "", "Storage backend: file or sqlite")
	flag.StringVar(&storageBackend, "backend", "", "Storage backend: file or sqlite (alias)")
	flag.StringVar(&storagePath, "f", "", "Vault storage path")
	flag.StringVar(&storagePath, "path", "", "Vault storage path (alias)")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.IntVar(&interactiveCacheSize, "interactive-cache", 0, "Interactive key cache capacity")
	flag.IntVar(&bulkCacheSize, "bulk-cache", 0, "Bulk key cache capacity")
	flag.DurationVar(&batchYield, "batch-yield", 0, "Pause between decrypt batches (e.g., 10ms)")
	flag.DurationVar(&clipboardTimeout, "clipboard-timeout", 0, "Clipboard clear delay (e.g., 30s)")

	flag.Parse()

	return &StructuredConfig{
		Storage: Storage{
			Backend: storageBackend,
			Path:    storagePath,
		},
		Crypto: Crypto{
			InteractiveCacheSize: interactiveCacheSize,
			BulkCacheSize:        bulkCacheSize,
		},
		Pipeline: Pipeline{
			BatchYield: batchYield,
		},
		App: App{
			ClipboardTimeout: clipboardTimeout,
		},
		JSONFilePath: jsonConfigPath,
	}
}
