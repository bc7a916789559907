package config

import (
	"bytes"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load resolves a configuration file into a RunnerConfig. Resolution
// runs in a fixed order: parse, imports, interpolation, overrides,
// schema validation, decoding and defaulting. Overrides use the form
// a.b.c=value and may only touch keys that already exist.
func Load(path string, overrides []string) (*RunnerConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, NewConfigError("unable to resolve configuration path", path, err)
	}
	tree, err := parseFile(abs)
	if err != nil {
		return nil, err
	}
	tree, err = resolveImports(tree, filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	return LoadMap(tree, overrides)
}

// LoadMap resolves a pre-parsed configuration tree. Imports must already
// be resolved; interpolation, overrides, validation and defaulting still
// apply. The input tree is not modified.
func LoadMap(tree map[string]interface{}, overrides []string) (*RunnerConfig, error) {
	tree = copyTree(tree)
	if err := interpolate(tree); err != nil {
		return nil, err
	}
	if err := applyOverrides(tree, overrides); err != nil {
		return nil, err
	}
	if err := validateSections(tree); err != nil {
		return nil, err
	}
	conf, err := decodeTree(tree)
	if err != nil {
		return nil, err
	}
	if err := applyDefaults(conf); err != nil {
		return nil, err
	}
	if err := validateSemantics(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// decodeTree converts a validated tree into the typed configuration.
// Decoding is strict so any key the schemas missed still gets reported.
func decodeTree(tree map[string]interface{}) (*RunnerConfig, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, NewConfigError("unable to encode configuration tree", "", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	conf := &RunnerConfig{}
	if err := decoder.Decode(conf); err != nil {
		return nil, NewConfigError("unable to decode configuration", "", err)
	}
	return conf, nil
}

// ServiceName returns the tracing service name, defaulting to the
// binary's identity when tracing is configured without one.
func (t *TracingConfig) ServiceName() string {
	if t.Service != "" {
		return t.Service
	}
	return "severn"
}

// String renders the run identity for logs.
func (r *RunConfig) String() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.Path)
}
