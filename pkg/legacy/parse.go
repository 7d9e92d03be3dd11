// Package legacy converts flat JSON prompt files from the two legacy storage
// locations into relational rows, and reconciles duplicate files between
// those locations.
package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"strconv"
	"unicode"
	"unicode/utf8"

	"promptstore/pkg/persistence"
)

// UrgencyTemplate is one urgency level's template body, in file order.
type UrgencyTemplate struct {
	Level    int
	Template string
}

// PromptFile is a parsed legacy JSON prompt file. Levels preserves the
// order the file declared them in, which "first available level" selection
// depends on. SkippedLevels records urgency keys that were not integers in
// the 1-10 range and were dropped at the parse boundary.
type PromptFile struct {
	Name          string
	Description   string
	Levels        []UrgencyTemplate
	Author        string
	Version       string
	Created       string
	Tags          []string
	SkippedLevels []string
}

// promptFileJSON is the raw legacy file shape. The prompts object is kept
// raw so its key order can be recovered with a token-level decode.
type promptFileJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Prompts     json.RawMessage `json:"prompts"`
	Metadata    struct {
		Author  string   `json:"author"`
		Version string   `json:"version"`
		Created string   `json:"created"`
		Tags    []string `json:"tags"`
	} `json:"metadata"`
}

// ParsePromptFile reads and decodes one legacy JSON prompt file from fsys.
// Urgency keys are normalized to integers here; the rest of the system never
// sees string-keyed levels.
func ParsePromptFile(fsys fs.FS, name string) (*PromptFile, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return parsePromptData(name, data)
}

func parsePromptData(name string, data []byte) (*PromptFile, error) {
	var raw promptFileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", name, err)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("prompt file %s has no name", name)
	}

	levels, skipped, err := decodeLevels(raw.Prompts)
	if err != nil {
		return nil, fmt.Errorf("invalid prompts object in %s: %w", name, err)
	}

	return &PromptFile{
		Name:          raw.Name,
		Description:   raw.Description,
		Levels:        levels,
		Author:        raw.Metadata.Author,
		Version:       raw.Metadata.Version,
		Created:       raw.Metadata.Created,
		Tags:          raw.Metadata.Tags,
		SkippedLevels: skipped,
	}, nil
}

// decodeLevels walks the prompts object token by token so the file's own key
// order survives. A duplicate level keeps its first position but takes the
// later body, matching how the legacy tools read these files.
func decodeLevels(raw json.RawMessage) ([]UrgencyTemplate, []string, error) {
	if len(raw) == 0 {
		return nil, nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("prompts must be a JSON object")
	}

	var levels []UrgencyTemplate
	var skipped []string
	position := make(map[int]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v in prompts object", keyTok)
		}

		var template string
		if err := dec.Decode(&template); err != nil {
			return nil, nil, fmt.Errorf("template for level %q is not a string: %w", key, err)
		}

		level, ok := parseLevel(key)
		if !ok {
			skipped = append(skipped, key)
			continue
		}
		if i, dup := position[level]; dup {
			levels[i].Template = template
			continue
		}
		position[level] = len(levels)
		levels = append(levels, UrgencyTemplate{Level: level, Template: template})
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return levels, skipped, nil
}

// parseLevel accepts only all-digit keys inside the urgency range.
func parseLevel(key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	level, err := strconv.Atoi(key)
	if err != nil || level < persistence.UrgencyMin || level > persistence.UrgencyMax {
		return 0, false
	}
	return level, true
}

// RepresentativeTemplate picks the template body stored on the main prompt
// row: level 10 when present, else level 5, else the first level in file
// order.
func (f *PromptFile) RepresentativeTemplate() string {
	for _, want := range []int{10, 5} {
		for _, lt := range f.Levels {
			if lt.Level == want {
				return lt.Template
			}
		}
	}
	if len(f.Levels) > 0 {
		return f.Levels[0].Template
	}
	return ""
}

// capitalize upper-cases the first rune, leaving the rest untouched.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
