package leads

import (
	"errors"
	"strings"

	"golang.org/x/text/language"

	"github.com/helenaexplora/explora-platform/internal/i18n"
)

var (
	// ErrUnknownField is returned when a field name is not part of Record.
	ErrUnknownField = errors.New("unknown field")

	// ErrListField is returned when a list field is assigned a single value.
	ErrListField = errors.New("field holds a list")

	// ErrNotListField is returned when a single-valued field is assigned a list.
	ErrNotListField = errors.New("field holds a single value")

	// ErrUnknownVariant is returned when no form variant has the requested id.
	ErrUnknownVariant = errors.New("unknown form variant")

	// ErrInvalidSchema is returned when the variant document is inconsistent.
	ErrInvalidSchema = errors.New("invalid form schema")
)

// FieldError describes one failed rule. Key is an i18n message key and Args
// its format arguments.
type FieldError struct {
	Field string
	Key   string
	Args  []any
}

// Message renders the error in the given locale.
func (e FieldError) Message(loc *i18n.Localizer, tag language.Tag) string {
	return loc.Text(tag, e.Key, e.Args...)
}

// ValidationError aggregates field errors for a whole record.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return "leads: validation failed: " + strings.Join(names, ", ")
}

// Messages maps each failed field to its localized message.
func (e *ValidationError) Messages(loc *i18n.Localizer, tag language.Tag) map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = f.Message(loc, tag)
	}
	return out
}
