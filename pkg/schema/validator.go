package schema

import (
	"fmt"
	"sort"
)

// Validator validates parsed configuration trees against schemas.
type Validator struct{}

// NewValidator creates a new schema validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates data against a schema. Unknown keys are rejected
// unless the schema (or the enclosing property) is marked Open.
func (v *Validator) Validate(data interface{}, schema *Schema) *ValidationResult {
	result := &ValidationResult{
		Valid:  true,
		Errors: []ValidationError{},
	}

	// Convert schema to property for unified validation
	prop := &Property{
		Type:       schema.Type,
		Properties: schema.Properties,
		Items:      schema.Items,
		Open:       schema.Open,
	}

	errors := v.validateValue(data, prop, "root")
	if len(errors) > 0 {
		result.Valid = false
		result.Errors = errors
	}

	return result
}

// validateValue validates a value against a property definition.
func (v *Validator) validateValue(value interface{}, prop *Property, path string) []ValidationError {
	var errors []ValidationError

	if value == nil {
		if prop.Required {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: "field is required",
				Code:    CodeMissingField,
			})
		}
		return errors
	}

	switch prop.Type {
	case TypeString:
		if str, ok := value.(string); ok {
			errors = append(errors, v.validateString(str, prop.Validation, path)...)
		} else {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("expected string, got %T", value),
				Code:    CodeWrongType,
			})
		}

	case TypeNumber:
		num, ok := toFloat(value)
		if !ok {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("expected number, got %T", value),
				Code:    CodeWrongType,
			})
			return errors
		}
		errors = append(errors, v.validateNumber(num, prop.Validation, path)...)

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("expected boolean, got %T", value),
				Code:    CodeWrongType,
			})
		}

	case TypeArray:
		if arr, ok := value.([]interface{}); ok {
			if prop.Items != nil {
				for i, item := range arr {
					itemPath := fmt.Sprintf("%s[%d]", path, i)
					errors = append(errors, v.validateValue(item, prop.Items, itemPath)...)
				}
			}
		} else {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("expected array, got %T", value),
				Code:    CodeWrongType,
			})
		}

	case TypeObject:
		if obj, ok := value.(map[string]interface{}); ok {
			errors = append(errors, v.validateObject(obj, prop, path)...)
		} else {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("expected object, got %T", value),
				Code:    CodeWrongType,
			})
		}

	case TypeAny:
		// no validation
	}

	return errors
}

// validateString validates string-specific rules.
func (v *Validator) validateString(value string, rules *ValidationRules, path string) []ValidationError {
	var errors []ValidationError

	if rules == nil {
		return errors
	}

	if len(rules.Enum) > 0 {
		found := false
		for _, allowed := range rules.Enum {
			if value == allowed {
				found = true
				break
			}
		}
		if !found {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("value '%s' not in allowed values %v", value, rules.Enum),
				Code:    CodeBadValue,
			})
		}
	}

	return errors
}

// validateNumber validates number-specific rules.
func (v *Validator) validateNumber(value float64, rules *ValidationRules, path string) []ValidationError {
	var errors []ValidationError

	if rules == nil {
		return errors
	}

	if rules.Minimum != nil && value < *rules.Minimum {
		errors = append(errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("value %v is less than minimum %v", value, *rules.Minimum),
			Code:    CodeBadValue,
		})
	}

	if rules.Maximum != nil && value > *rules.Maximum {
		errors = append(errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("value %v exceeds maximum %v", value, *rules.Maximum),
			Code:    CodeBadValue,
		})
	}

	return errors
}

// validateObject validates object properties. Keys not declared in the
// schema are reported unless the property is Open.
func (v *Validator) validateObject(obj map[string]interface{}, prop *Property, path string) []ValidationError {
	var errors []ValidationError

	for propName, propDef := range prop.Properties {
		value, exists := obj[propName]
		propPath := fmt.Sprintf("%s.%s", path, propName)

		if !exists {
			if propDef.Required {
				errors = append(errors, ValidationError{
					Path:    propPath,
					Message: "required field missing",
					Code:    CodeMissingField,
				})
			}
			continue
		}

		errors = append(errors, v.validateValue(value, propDef, propPath)...)
	}

	if !prop.Open {
		// Deterministic ordering for error reporting.
		var unknown []string
		for key := range obj {
			if _, declared := prop.Properties[key]; !declared {
				unknown = append(unknown, key)
			}
		}
		sort.Strings(unknown)
		for _, key := range unknown {
			errors = append(errors, ValidationError{
				Path:    fmt.Sprintf("%s.%s", path, key),
				Message: "unknown field",
				Code:    CodeUnknownField,
			})
		}
	}

	return errors
}

func toFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
