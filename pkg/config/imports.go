package config

import (
	"fmt"
	"path/filepath"
)

// importsKey is the reserved top-level key listing partial configuration
// files to merge into the current one.
const importsKey = "imports"

// resolveImports loads and merges the files named by the tree's imports
// list. Each import is resolved recursively, relative to dir, and merged
// into the tree with the imported values winning. Later entries in the
// list win over earlier ones. The imports key itself is removed from the
// result.
func resolveImports(tree map[string]interface{}, dir string) (map[string]interface{}, error) {
	raw, exists := tree[importsKey]
	if !exists {
		return tree, nil
	}
	delete(tree, importsKey)

	list, ok := raw.([]interface{})
	if !ok {
		return nil, NewConfigError("imports must be a list of paths", importsKey, nil)
	}

	for _, entry := range list {
		rel, ok := entry.(string)
		if !ok {
			return nil, NewConfigError(
				fmt.Sprintf("import entry must be a string, got %T", entry), importsKey, nil)
		}
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, rel)
		}
		partial, err := parseFile(path)
		if err != nil {
			return nil, NewConfigError("unable to resolve import", rel, err)
		}
		partial, err = resolveImports(partial, filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		mergeTrees(tree, partial)
	}
	return tree, nil
}
