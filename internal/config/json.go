package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] for JSON decoding.
// Durations are accepted both as strings ("10ms", "30s") and as raw
// nanosecond numbers.
type StructuredJSONConfig struct {
	Storage struct {
		Backend string `json:"backend"`
		Path    string `json:"path"`
	} `json:"storage,omitempty"`

	Crypto struct {
		InteractiveCacheSize int `json:"interactive_cache_size"`
		BulkCacheSize        int `json:"bulk_cache_size"`
	} `json:"crypto,omitempty"`

	Pipeline struct {
		BatchYield Duration `json:"batch_yield"`
	} `json:"pipeline,omitempty"`

	App struct {
		ClipboardTimeout Duration `json:"clipboard_timeout"`
	} `json:"app,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Storage: Storage{
			Backend: jsonCfg.Storage.Backend,
			Path:    jsonCfg.Storage.Path,
		},
		Crypto: Crypto{
			InteractiveCacheSize: jsonCfg.Crypto.InteractiveCacheSize,
			BulkCacheSize:        jsonCfg.Crypto.BulkCacheSize,
		},
		Pipeline: Pipeline{
			BatchYield: time.Duration(jsonCfg.Pipeline.BatchYield),
		},
		App: App{
			ClipboardTimeout: time.Duration(jsonCfg.App.ClipboardTimeout),
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
