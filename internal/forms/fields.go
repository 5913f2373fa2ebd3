// Package forms turns raw public-form submissions into records: field
// transformation, submission rules and the merge plan against an existing row.
package forms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tazhate/flock/internal/domain"
)

// Transform writes one field's contribution into a Result.
// Implementations: Direct, Combine, Notes, Array.
type Transform interface {
	apply(f Field, raw map[string]any, res *Result)
}

// Field is a compiled field definition.
type Field struct {
	Key       string
	Type      string
	Label     string
	Column    string
	Transform Transform // nil: the field is collected but not stored
}

// Direct copies the trimmed value, or the raw array for array values.
type Direct struct{}

// Combine joins several fields into one column.
type Combine struct {
	Fields    []string
	Separator string
}

// Notes renders the value into the aggregated notes text.
type Notes struct {
	Format string
}

// Array stores the value as a list of trimmed strings.
type Array struct{}

func (Direct) apply(f Field, raw map[string]any, res *Result) {
	v := raw[f.Key]
	if items, ok := asSlice(v); ok {
		res.Values[f.Column] = items
		return
	}
	res.Values[f.Column] = strings.TrimSpace(stringify(v))
}

// apply runs once per target column; later constituent fields find the
// column already written.
func (c Combine) apply(f Field, raw map[string]any, res *Result) {
	if res.combined[f.Column] {
		return
	}
	parts := make([]string, 0, len(c.Fields))
	for _, key := range c.Fields {
		if s := strings.TrimSpace(stringify(raw[key])); s != "" {
			parts = append(parts, s)
		}
	}
	res.Values[f.Column] = strings.Join(parts, c.Separator)
	res.combined[f.Column] = true
}

func (n Notes) apply(f Field, raw map[string]any, res *Result) {
	value := strings.TrimSpace(stringify(raw[f.Key]))
	if items, ok := asSlice(raw[f.Key]); ok {
		value = strings.Join(trimAll(items), ", ")
	}
	text := strings.ReplaceAll(n.Format, "{value}", value)
	text = strings.ReplaceAll(text, "{label}", f.Label)
	res.NotesParts = append(res.NotesParts, text)
}

func (Array) apply(f Field, raw map[string]any, res *Result) {
	v := raw[f.Key]
	items, ok := asSlice(v)
	if !ok {
		items = []string{stringify(v)}
	}
	res.Values[f.Column] = trimAll(items)
}

type combineConfig struct {
	Fields    []string `json:"fields"`
	Separator *string  `json:"separator"`
}

// CompileField validates a stored field definition against the target
// table's columns and picks its transform.
func CompileField(row domain.FormFieldRow, columns map[string]bool) (Field, error) {
	f := Field{Key: row.FieldKey, Type: row.FieldType, Label: row.Label}
	if f.Key == "" {
		return f, fmt.Errorf("%w: field without key", domain.ErrInvalidField)
	}
	if row.DBColumn != nil {
		f.Column = *row.DBColumn
	}

	kind := ""
	if row.TransformationType != nil {
		kind = *row.TransformationType
	}
	if row.IsNotesField {
		kind = "notes"
	}
	if kind == "" && f.Column != "" {
		kind = "direct"
	}

	switch kind {
	case "":
		return f, nil
	case "notes":
		format := row.NotesFormat
		if format == "" {
			format = "{value}"
		}
		if !columns[NotesColumn] {
			return f, fmt.Errorf("%w: %s: target has no %s column", domain.ErrInvalidField, f.Key, NotesColumn)
		}
		f.Transform = Notes{Format: format}
		return f, nil
	case "direct", "array", "combine":
	default:
		return f, fmt.Errorf("%w: %s: unknown transformation %q", domain.ErrInvalidField, f.Key, kind)
	}

	if f.Column == "" {
		return f, fmt.Errorf("%w: %s: %s transformation needs a column", domain.ErrInvalidField, f.Key, kind)
	}
	if !columns[f.Column] {
		return f, fmt.Errorf("%w: %s: unknown column %q", domain.ErrInvalidField, f.Key, f.Column)
	}

	switch kind {
	case "direct":
		f.Transform = Direct{}
	case "array":
		f.Transform = Array{}
	case "combine":
		var cfg combineConfig
		if err := json.Unmarshal([]byte(orEmptyObject(row.TransformationConfig)), &cfg); err != nil {
			return f, fmt.Errorf("%w: %s: combine config: %v", domain.ErrInvalidField, f.Key, err)
		}
		if !contains(cfg.Fields, f.Key) {
			return f, fmt.Errorf("%w: %s: combine fields must include the field itself", domain.ErrInvalidField, f.Key)
		}
		sep := " "
		if cfg.Separator != nil {
			sep = *cfg.Separator
		}
		f.Transform = Combine{Fields: cfg.Fields, Separator: sep}
	}
	return f, nil
}

// isEmpty reports values a submission never writes: null, blank strings and empty lists.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	return fmt.Sprint(v)
}

func asSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), true
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = stringify(item)
		}
		return out, true
	}
	return nil, false
}

func trimAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func orEmptyObject(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}
