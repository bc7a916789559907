package config

import (
	"fmt"
	"strconv"
	"strings"
)

// applyOverrides applies command line overrides of the form a.b.c=value
// to the tree. Only keys that already exist in the tree may be
// overridden; creating new structure from the command line is not
// supported. Values are coerced to boolean, integer or float where they
// parse as one, and kept as strings otherwise.
func applyOverrides(tree map[string]interface{}, overrides []string) error {
	for _, override := range overrides {
		key, raw, found := strings.Cut(override, "=")
		if !found || key == "" {
			return NewConfigError(
				fmt.Sprintf("override '%s' is not of the form key=value", override), "", nil)
		}
		if err := setPath(tree, key, coerceValue(raw)); err != nil {
			return NewConfigError("cannot override unknown key", key, err)
		}
	}
	return nil
}

// coerceValue converts a command line string to the most specific type
// that accepts it: bool, int, float, then string.
func coerceValue(raw string) interface{} {
	switch strings.ToLower(raw) {
	case "true", "on", "yes":
		return true
	case "false", "off", "no":
		return false
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
