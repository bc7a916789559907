package config

import "github.com/wehubfusion/Severn/pkg/schema"

// sectionSchemas declares the shape of every recognized top-level
// configuration section. The rerank schema is open because extra keys
// are forwarded to external reranker scripts.
func sectionSchemas() map[string]*schema.Schema {
	str := func(required bool) *schema.Property {
		return &schema.Property{Type: schema.TypeString, Required: required}
	}
	num := func() *schema.Property {
		return &schema.Property{Type: schema.TypeNumber}
	}
	enum := func(required bool, values ...string) *schema.Property {
		return &schema.Property{
			Type:       schema.TypeString,
			Required:   required,
			Validation: &schema.ValidationRules{Enum: values},
		}
	}
	obj := func(required bool, props map[string]*schema.Property) *schema.Property {
		return &schema.Property{Type: schema.TypeObject, Required: required, Properties: props}
	}
	anyProp := func() *schema.Property {
		return &schema.Property{Type: schema.TypeAny}
	}

	processProps := map[string]*schema.Property{
		"normalize": obj(false, map[string]*schema.Property{
			"lowercase": {Type: schema.TypeBoolean},
		}),
		"stem":    str(false),
		"max_len": num(),
	}

	return map[string]*schema.Schema{
		"run": {
			Type: schema.TypeObject,
			Properties: map[string]*schema.Property{
				"name":    str(true),
				"path":    str(false),
				"results": str(false),
				"parallel": obj(false, map[string]*schema.Property{
					"name":      enum(true, ParallelMP, ParallelQsub, ParallelSbatch),
					"queue":     str(false),
					"resources": str(false),
					"email":     str(false),
					"code":      str(false),
				}),
				"stage1": anyProp(),
				"stage2": anyProp(),
				"tracing": obj(false, map[string]*schema.Property{
					"service":      str(false),
					"endpoint":     str(false),
					"sample_ratio": num(),
				}),
			},
		},
		"documents": {
			Type: schema.TypeObject,
			Properties: map[string]*schema.Property{
				"input": obj(true, map[string]*schema.Property{
					"format":   enum(true, "jsonl", "tsv"),
					"lang":     str(true),
					"encoding": str(false),
					"path":     str(true),
				}),
				"process": obj(false, processProps),
				"output":  anyProp(),
			},
		},
		"database": {
			Type: schema.TypeObject,
			Properties: map[string]*schema.Property{
				"name":   str(false),
				"output": anyProp(),
			},
		},
		"index": {
			Type: schema.TypeObject,
			Properties: map[string]*schema.Property{
				"name":   str(true),
				"output": anyProp(),
			},
		},
		"topics": {
			Type: schema.TypeObject,
			Properties: map[string]*schema.Property{
				"input": obj(true, map[string]*schema.Property{
					"format":   enum(true, "jsonl", "tsv"),
					"lang":     str(true),
					"encoding": str(false),
					"path":     str(true),
					"prefix":   str(false),
				}),
				"fields": enum(false, "title", "desc", "title+desc"),
				"output": anyProp(),
			},
		},
		"queries": {
			Type: schema.TypeObject,
			Properties: map[string]*schema.Property{
				"input": obj(false, map[string]*schema.Property{
					"format":   str(false),
					"encoding": str(false),
					"path":     str(true),
				}),
				"process": obj(false, processProps),
				"output":  anyProp(),
			},
		},
		"retrieve": {
			Type: schema.TypeObject,
			Properties: map[string]*schema.Property{
				"name":   str(true),
				"number": num(),
				"input": obj(false, map[string]*schema.Property{
					"index": obj(false, map[string]*schema.Property{
						"path": str(false),
					}),
				}),
				"output": anyProp(),
			},
		},
		"rerank": {
			Type: schema.TypeObject,
			Open: true,
			Properties: map[string]*schema.Property{
				"name":   str(true),
				"script": str(false),
				"input": obj(false, map[string]*schema.Property{
					"database": obj(false, map[string]*schema.Property{
						"path": str(false),
					}),
				}),
				"output": anyProp(),
			},
		},
		"score": {
			Type: schema.TypeObject,
			Properties: map[string]*schema.Property{
				"input": obj(true, map[string]*schema.Property{
					"format": enum(false, "trec"),
					"path":   str(true),
				}),
				"metrics": {
					Type:  schema.TypeArray,
					Items: &schema.Property{Type: schema.TypeString},
				},
			},
		},
	}
}

// validateSections checks every top-level section of the tree against
// its schema. Unrecognized sections and schema violations are
// configuration errors.
func validateSections(tree map[string]interface{}) error {
	schemas := sectionSchemas()
	validator := schema.NewValidator()

	if _, exists := tree["run"]; !exists {
		return NewConfigError("missing required section", "run", nil)
	}
	for name, value := range tree {
		s, known := schemas[name]
		if !known {
			return NewConfigError("unknown configuration section", name, nil)
		}
		result := validator.Validate(value, s)
		if !result.Valid {
			return NewConfigError("invalid configuration", name,
				schema.ValidationFailedError(name, result.Errors))
		}
	}
	return nil
}
