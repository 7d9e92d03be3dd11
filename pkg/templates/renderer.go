// Package templates renders stored prompt bodies by substituting
// {placeholder} variables and selecting urgency-level variants.
package templates

import (
	"fmt"
	"regexp"
	"strings"

	"promptstore/pkg/persistence"
)

// placeholderPattern matches single-brace substitution points. Identifiers
// are letter-or-underscore first, alphanumeric after; any other braced text
// is left verbatim.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// urgencyLabels are the display names for levels 1-10, carried over from the
// legacy catalog.
var urgencyLabels = map[int]string{
	1:  "Very Low",
	2:  "Low",
	3:  "Moderate",
	4:  "Normal",
	5:  "Medium",
	6:  "Significant",
	7:  "High",
	8:  "Very High",
	9:  "Urgent",
	10: "Critical",
}

// UrgencyLabel returns the display name for an urgency level, falling back
// to "Level N/10" outside the named range.
func UrgencyLabel(level int) string {
	if label, ok := urgencyLabels[level]; ok {
		return label
	}
	return fmt.Sprintf("Level %d/10", level)
}

// ExtractVariables returns a template's placeholder names, unique, in order
// of first appearance.
func ExtractVariables(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool, len(matches))
	var vars []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return vars
}

// MissingVariablesError lists every placeholder a render call left unbound.
type MissingVariablesError struct {
	Variables []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing values for variables: %s", strings.Join(e.Variables, ", "))
}

// Render substitutes vars into template. Unbound placeholders are collected
// and reported together in one *MissingVariablesError; nothing is rendered
// partially on failure. Unused entries in vars are not an error.
func Render(template string, vars map[string]string) (string, error) {
	var missing []string
	seen := make(map[string]bool)
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := vars[name]
		if !ok {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", &MissingVariablesError{Variables: missing}
	}
	return rendered, nil
}

// RenderPrompt renders a stored prompt at the requested urgency level. When
// the prompt has a snapshot for exactly that level, its body is used;
// otherwise the prompt's representative template stands in.
func RenderPrompt(p *persistence.Prompt, versions []*persistence.PromptVersion, urgency int, vars map[string]string) (string, error) {
	if urgency < persistence.UrgencyMin || urgency > persistence.UrgencyMax {
		return "", fmt.Errorf("urgency %d outside range %d-%d", urgency, persistence.UrgencyMin, persistence.UrgencyMax)
	}

	body := p.Template
	for _, v := range versions {
		if v.VersionNum == urgency {
			body = v.Template
			break
		}
	}
	return Render(body, vars)
}
