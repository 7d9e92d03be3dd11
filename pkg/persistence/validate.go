package persistence

import (
	"fmt"
	"strings"
)

// ValidationError reports every required field a record is missing. Writes
// are refused wholesale, so callers get the complete list in one round trip.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: missing required fields: %s", strings.Join(e.Fields, ", "))
}

// Validate checks the fields every stored prompt must carry: type, title,
// and template. It returns a *ValidationError naming all violations at once,
// or nil when the prompt is storable.
func (p *Prompt) Validate() error {
	var missing []string
	if strings.TrimSpace(p.Type) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(p.Template) == "" {
		missing = append(missing, "template")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
