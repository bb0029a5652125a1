package config

import (
	"fmt"
	"strings"

	"xtr/internal/ids"
)

// FieldError is a validation error scoped to one settings field, used by
// the settings-block validators below.
type FieldError struct {
	Field string
	Value interface{}
	Message string
}

// Error implements the error interface.
func (fe FieldError) Error() string {
	if fe.Field == "" {
		return fe.Message
	}
	return fmt.Sprintf("field %q: %s", fe.Field, fe.Message)
}

// FieldErrors is a collection of FieldError.
type FieldErrors []FieldError

// Error implements the error interface for the collection.
func (fe FieldErrors) Error() string {
	switch len(fe) {
	case 0:
		return "no field errors"
	case 1:
		return fe[0].Error()
	default:
		msgs := make([]string, len(fe))
		for i, e := range fe {
			msgs[i] = e.Error()
		}
		return fmt.Sprintf("%d field errors: %s", len(fe), strings.Join(msgs, "; "))
	}
}

// Add appends a new field error.
func (fe *FieldErrors) Add(field, message string, value...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*fe = append(*fe, FieldError{Field: field, Value: val, Message: message})
}

// HasErrors reports whether any field error has been collected.
func (fe FieldErrors) HasErrors() bool { return len(fe) > 0 }

// validatePositive checks that an integer field, if present, is > 0.
func validatePositive(field string, value *int) error {
	if value != nil && *value <= 0 {
		return FieldError{Field: field, Value: *value, Message: "must be greater than zero"}
	}
	return nil
}

// validateProfileName enforces this reserved-namespace rule:
// profile names starting with "default-" belong to the tool.
func validateProfileName(name string, definedByUser bool) error {
	if strings.TrimSpace(name) == "" {
		return FieldError{Field: "name", Message: "profile name must not be empty"}
	}
	if definedByUser && strings.HasPrefix(name, "default-") {
		return FieldError{
			Field: "name",
			Value: name,
			Message: `names starting with "default-" are reserved for the tool and its ecosystem`,
		}
	}
	return nil
}

// validateScriptID delegates to the ids package's tool-namespace rules,
// wrapping the result as a FieldError for uniform reporting alongside the
// other settings-block validators in this file.
func validateScriptID(id ids.ScriptID, declaredByTool string) error {
	var err error
	if declaredByTool != "" {
		err = ids.ValidateToolScriptID(id, declaredByTool)
	} else {
		err = ids.ValidateRepoScriptID(id)
	}
	if err != nil {
		return FieldError{Field: "id", Value: id, Message: err.Error()}
	}
	return nil
}

// validateGroupID mirrors validateScriptID for test-group names.
func validateGroupID(id ids.GroupID, declaredByTool string) error {
	if declaredByTool != "" {
		// Tool-declared groups must use that tool's namespace, the same
		// "@tool:<tool>:" shape as tool scripts, checked here as a plain
		// prefix.
		if !strings.HasPrefix(string(id), "@tool:"+declaredByTool+":") {
			return FieldError{
				Field: "id",
				Value: id,
				Message: fmt.Sprintf("test group %q declared by tool config %q must use the @tool:%s: prefix", id, declaredByTool, declaredByTool),
			}
		}
		return nil
	}
	if err := ids.ValidateRepoGroupID(id); err != nil {
		return FieldError{Field: "id", Value: id, Message: err.Error()}
	}
	return nil
}
