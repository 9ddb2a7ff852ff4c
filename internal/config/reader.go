package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadAppConfig reads the YAML file at path on top of Default and validates
// the result.
func LoadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	return ParseAppConfig(data)
}

func ParseAppConfig(data []byte) (*AppConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("yaml unmarshal error: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validate error: %w", err)
	}
	return &cfg, nil
}
