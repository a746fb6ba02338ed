package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateMessage checks the invariants every stored message holds.
func ValidateMessage(msg *Message) error {
	if msg == nil {
		return &ValidationError{Field: "message", Message: "message cannot be nil"}
	}

	if msg.ID == "" {
		return &ValidationError{Field: "id", Message: "message ID is required"}
	}

	if msg.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "message timestamp is required"}
	}

	switch msg.Kind {
	case KindError, KindWarning, KindUnknown:
	default:
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unsupported kind %q", msg.Kind)}
	}

	if msg.Origin.Method == "" {
		return &ValidationError{Field: "origin", Message: "origin call site is required"}
	}

	if !msg.HasTrace && len(msg.Trace) > 0 {
		return &ValidationError{Field: "trace", Message: "trace present without has_trace"}
	}

	if msg.Scope != nil && msg.Scope.Depth < 1 {
		return &ValidationError{Field: "scope.depth", Message: "scope depth must be at least 1"}
	}

	return nil
}
