// Package schema provides declarative schemas for configuration sections
// and validation of parsed configuration trees against them.
package schema

// Schema represents a complete schema definition for one configuration section.
type Schema struct {
	Type        SchemaType           `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Description string               `json:"description,omitempty"`

	// Open sections accept keys beyond their declared properties.
	// Used for sections that forward arbitrary arguments to external scripts.
	Open bool `json:"open,omitempty"`
}

// Property represents a field property in a schema.
type Property struct {
	Type        SchemaType           `json:"type"`
	Required    bool                 `json:"required,omitempty"`
	Description string               `json:"description,omitempty"`
	Validation  *ValidationRules     `json:"validation,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"` // for OBJECT type
	Items       *Property            `json:"items,omitempty"`      // for ARRAY type

	// Open allows extra keys on an OBJECT property.
	Open bool `json:"open,omitempty"`
}

// SchemaType represents the data type of a field.
type SchemaType string

// Supported schema types.
const (
	TypeString  SchemaType = "STRING"
	TypeNumber  SchemaType = "NUMBER"
	TypeBoolean SchemaType = "BOOLEAN"
	TypeObject  SchemaType = "OBJECT"
	TypeArray   SchemaType = "ARRAY"
	TypeAny     SchemaType = "ANY"
)

// ValidationRules contains validation rules for a field.
type ValidationRules struct {
	Enum    []string `json:"enum,omitempty"`
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult holds the result of validating a section.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validation error codes.
const (
	CodeMissingField = "MISSING_FIELD"
	CodeUnknownField = "UNKNOWN_FIELD"
	CodeWrongType    = "WRONG_TYPE"
	CodeBadValue     = "BAD_VALUE"
)

// IsValidType checks if a schema type is valid.
func IsValidType(t SchemaType) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray, TypeAny:
		return true
	}
	return false
}
