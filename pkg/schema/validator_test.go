package schema

import "testing"

func sectionSchema() *Schema {
	minimum := 1.0
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Property{
			"name": {Type: TypeString, Required: true},
			"mode": {
				Type:       TypeString,
				Validation: &ValidationRules{Enum: []string{"streaming", "batch"}},
			},
			"batch_size": {
				Type:       TypeNumber,
				Validation: &ValidationRules{Minimum: &minimum},
			},
			"enabled": {Type: TypeBoolean},
			"input": {
				Type: TypeObject,
				Properties: map[string]*Property{
					"path": {Type: TypeString, Required: true},
				},
			},
			"metrics": {
				Type:  TypeArray,
				Items: &Property{Type: TypeString},
			},
		},
	}
}

func TestValidateObject(t *testing.T) {
	v := NewValidator()

	t.Run("valid section passes", func(t *testing.T) {
		data := map[string]interface{}{
			"name":       "mock",
			"mode":       "streaming",
			"batch_size": 10,
			"enabled":    true,
			"input":      map[string]interface{}{"path": "docs.jsonl"},
			"metrics":    []interface{}{"map", "ndcg"},
		}
		result := v.Validate(data, sectionSchema())
		if !result.Valid {
			t.Fatalf("expected valid, got errors: %v", result.Errors)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		result := v.Validate(map[string]interface{}{"mode": "batch"}, sectionSchema())
		if result.Valid {
			t.Fatal("expected invalid")
		}
		if got := result.Errors[0].Code; got != CodeMissingField {
			t.Errorf("code = %s, want %s", got, CodeMissingField)
		}
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		data := map[string]interface{}{
			"name":    "mock",
			"surpise": true,
		}
		result := v.Validate(data, sectionSchema())
		if result.Valid {
			t.Fatal("expected invalid")
		}
		found := false
		for _, e := range result.Errors {
			if e.Code == CodeUnknownField && e.Path == "root.surpise" {
				found = true
			}
		}
		if !found {
			t.Errorf("no unknown field error in %v", result.Errors)
		}
	})

	t.Run("open schema accepts extra keys", func(t *testing.T) {
		s := sectionSchema()
		s.Open = true
		data := map[string]interface{}{
			"name":  "shell",
			"alpha": "0.5",
		}
		result := v.Validate(data, s)
		if !result.Valid {
			t.Fatalf("expected valid, got errors: %v", result.Errors)
		}
	})

	t.Run("enum violation", func(t *testing.T) {
		data := map[string]interface{}{
			"name": "mock",
			"mode": "parallel",
		}
		result := v.Validate(data, sectionSchema())
		if result.Valid {
			t.Fatal("expected invalid")
		}
		if got := result.Errors[0].Code; got != CodeBadValue {
			t.Errorf("code = %s, want %s", got, CodeBadValue)
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		data := map[string]interface{}{
			"name":    "mock",
			"enabled": "yes",
		}
		result := v.Validate(data, sectionSchema())
		if result.Valid {
			t.Fatal("expected invalid")
		}
		if got := result.Errors[0].Code; got != CodeWrongType {
			t.Errorf("code = %s, want %s", got, CodeWrongType)
		}
	})

	t.Run("number below minimum", func(t *testing.T) {
		data := map[string]interface{}{
			"name":       "mock",
			"batch_size": 0,
		}
		result := v.Validate(data, sectionSchema())
		if result.Valid {
			t.Fatal("expected invalid")
		}
	})

	t.Run("nested required field", func(t *testing.T) {
		data := map[string]interface{}{
			"name":  "mock",
			"input": map[string]interface{}{},
		}
		result := v.Validate(data, sectionSchema())
		if result.Valid {
			t.Fatal("expected invalid")
		}
		if got := result.Errors[0].Path; got != "root.input.path" {
			t.Errorf("path = %s, want root.input.path", got)
		}
	})
}

func TestValidationFailedError(t *testing.T) {
	err := ValidationFailedError("retrieve", []ValidationError{
		{Path: "root.name", Message: "required field missing", Code: CodeMissingField},
	})
	want := "section 'retrieve' failed validation: root.name: required field missing"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
