package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dshills/vlist/internal/config/loader"
)

// Load builds the configuration from defaults, the file at path (if path
// is non-empty and the file exists) and VLIST_* environment variables, then
// validates it.
func Load(path string) (Config, error) {
	return load(path, loader.NewEnvLoader(EnvPrefix))
}

func load(path string, env loader.Loader) (Config, error) {
	merged := make(map[string]any)

	if path != "" {
		fl, err := loader.ForFile(path)
		if err != nil {
			return Config{}, err
		}
		fileMap, err := fl.Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.Merge(merged, fileMap)
	}

	envMap, err := env.Load()
	if err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}
	merged = loader.Merge(merged, envMap)

	cfg, err := decode(merged)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode applies a generic settings map over the defaults. The map is
// round-tripped through JSON so every format shares the struct tags and
// Duration's text unmarshaling.
func decode(m map[string]any) (Config, error) {
	cfg := Default()
	if len(m) == 0 {
		return cfg, nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("encoding settings: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding settings: %w", err)
	}
	return cfg, nil
}
