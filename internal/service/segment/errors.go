package segment

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors for the segment service layer.
var (
	ErrNotFound     = errors.New("segment not found")
	ErrNameTaken    = errors.New("segment name has already been taken")
	ErrExportConfig = errors.New("segment export is not configured")
)

// ValidationError carries field-level messages for a rejected create or
// update. Nothing was written when it is returned.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// Add records a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Messages renders every field message as "field message", sorted by field.
func (e *ValidationError) Messages() []string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var out []string
	for _, f := range fields {
		for _, msg := range e.Fields[f] {
			out = append(out, humanize(f)+" "+msg)
		}
	}
	return out
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }

// humanize turns "audience_type" into "Audience type" and leaves nested paths
// alone.
func humanize(field string) string {
	if strings.ContainsAny(field, ".[") {
		return field
	}
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
