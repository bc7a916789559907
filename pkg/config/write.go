package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// WriteYAML marshals a value to a YAML file. Used for the resolved run
// configuration and for per-artifact provenance configs.
func WriteYAML(path string, value interface{}) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return NewConfigError("unable to encode configuration", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewConfigError("unable to write configuration", path, err)
	}
	return nil
}

// ReadConfig reads a previously written RunnerConfig, typically the
// config.yml stored beside an artifact.
func ReadConfig(path string) (*RunnerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError("unable to read configuration", path, err)
	}
	conf := &RunnerConfig{}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, NewConfigError("invalid configuration file", path, err)
	}
	return conf, nil
}
