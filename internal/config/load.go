package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads, defaults and validates the configuration at path.
// Validation warnings are returned alongside a valid config.
func LoadFile(path string) (*Config, []Issue, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Load(data)
}

// Load parses YAML data into a Config. Unknown keys are rejected.
func Load(data []byte) (*Config, []Issue, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	cfg.ApplyDefaults()

	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}
