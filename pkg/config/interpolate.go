package config

import (
	"fmt"
	"regexp"
	"strings"
)

var referencePattern = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// interpolate performs a single substitution pass over every string value
// in the tree. A value containing {a.b.c} has the reference replaced by
// the value found at that dotted path. A reference to a missing key, or
// to a value that itself still contains a reference, is an error: there
// is no chaining, so such a reference can never resolve. References are
// looked up in a snapshot of the unmodified tree, so the outcome does
// not depend on map iteration order.
func interpolate(tree map[string]interface{}) error {
	return interpolateNode(tree, copyTree(tree), "")
}

func interpolateNode(node interface{}, root map[string]interface{}, path string) error {
	switch n := node.(type) {
	case map[string]interface{}:
		for key, value := range n {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			if str, ok := value.(string); ok {
				resolved, err := interpolateString(str, root, childPath)
				if err != nil {
					return err
				}
				n[key] = resolved
				continue
			}
			if err := interpolateNode(value, root, childPath); err != nil {
				return err
			}
		}
	case []interface{}:
		for i, value := range n {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if str, ok := value.(string); ok {
				resolved, err := interpolateString(str, root, childPath)
				if err != nil {
					return err
				}
				n[i] = resolved
				continue
			}
			if err := interpolateNode(value, root, childPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func interpolateString(value string, root map[string]interface{}, path string) (interface{}, error) {
	matches := referencePattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value, nil
	}

	var out strings.Builder
	last := 0
	for _, m := range matches {
		ref := value[m[2]:m[3]]
		target, exists := getPath(root, ref)
		if !exists {
			return nil, NewConfigError(
				fmt.Sprintf("reference '{%s}' does not resolve", ref), path, nil)
		}
		targetStr := fmt.Sprintf("%v", target)
		if strings.Contains(targetStr, "{") {
			return nil, NewConfigError(
				fmt.Sprintf("reference '{%s}' is circular or unresolved", ref), path, nil)
		}
		out.WriteString(value[last:m[0]])
		out.WriteString(targetStr)
		last = m[1]
	}
	out.WriteString(value[last:])
	return out.String(), nil
}
