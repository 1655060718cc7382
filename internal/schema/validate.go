package schema

import "fmt"

// ValidationError names the argument that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// Validate checks args against s. Required fields must be present and non-null, present declared fields
// must match their kind exactly, and undeclared fields are ignored. The first failing field in declaration
// order is reported.
func Validate(s Schema, args map[string]any) error {
	for _, f := range s.fields {
		v, present := args[f.Name]
		if !present || v == nil {
			if f.Required {
				return &ValidationError{Field: f.Name, Reason: "missing required argument"}
			}
			continue
		}
		if !f.Kind.matches(v) {
			return &ValidationError{
				Field:  f.Name,
				Reason: fmt.Sprintf("expected %s, got %s", f.Kind, describe(v)),
			}
		}
	}
	return nil
}
