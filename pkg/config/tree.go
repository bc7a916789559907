package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseFile reads a configuration file and parses it into a generic tree.
// The format is selected by extension: .yaml and .yml parse as YAML,
// .json as JSON.
func parseFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError("unable to read configuration file", path, err)
	}

	tree := make(map[string]interface{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, NewConfigError("invalid YAML configuration", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, NewConfigError("invalid JSON configuration", path, err)
		}
	default:
		return nil, NewConfigError(
			fmt.Sprintf("unknown configuration format '%s'", filepath.Ext(path)), path, nil)
	}
	return normalizeTree(tree).(map[string]interface{}), nil
}

// normalizeTree rewrites map[interface{}]interface{} nodes (which YAML can
// produce for some inputs) into map[string]interface{} so the rest of the
// resolver only deals with string-keyed maps.
func normalizeTree(node interface{}) interface{} {
	switch n := node.(type) {
	case map[string]interface{}:
		for k, v := range n {
			n[k] = normalizeTree(v)
		}
		return n
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, v := range n {
			out[fmt.Sprintf("%v", k)] = normalizeTree(v)
		}
		return out
	case []interface{}:
		for i, v := range n {
			n[i] = normalizeTree(v)
		}
		return n
	default:
		return node
	}
}

// mergeTrees merges src into dst recursively. Values from src win on
// conflict; nested maps are merged key by key.
func mergeTrees(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if dstVal, exists := dst[key]; exists {
			dstMap, dstOK := dstVal.(map[string]interface{})
			srcMap, srcOK := srcVal.(map[string]interface{})
			if dstOK && srcOK {
				mergeTrees(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}

// getPath looks up a dotted path in a tree. The second return reports
// whether the full path exists.
func getPath(tree map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = tree
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// setPath assigns a value at a dotted path. Every intermediate map must
// already exist; setPath never creates structure.
func setPath(tree map[string]interface{}, path string, value interface{}) error {
	parts := strings.Split(path, ".")
	current := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			return NewConfigError("key does not exist", path, nil)
		}
		current, ok = next.(map[string]interface{})
		if !ok {
			return NewConfigError("key does not exist", path, nil)
		}
	}
	leaf := parts[len(parts)-1]
	if _, ok := current[leaf]; !ok {
		return NewConfigError("key does not exist", path, nil)
	}
	current[leaf] = value
	return nil
}

// copyTree returns a deep copy of a configuration tree.
func copyTree(tree map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(tree))
	for k, v := range tree {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return copyTree(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return value
	}
}
