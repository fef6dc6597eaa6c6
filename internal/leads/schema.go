package leads

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/helenaexplora/explora-platform/internal/i18n"
)

// DefaultVariant is served when no variant is configured.
const DefaultVariant = "usa-interests"

// Supported value formats.
const (
	FormatEmail = "email"
	FormatPhone = "phone"
)

//go:embed variants.yaml
var variantsYAML []byte

var (
	validate     = validator.New()
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{5,}$`)
)

// Condition makes a field required when another field holds a value. For
// list fields the value must be among the selected tags.
type Condition struct {
	Field  string `yaml:"field"`
	Equals string `yaml:"equals"`
}

// FieldSpec is the rule set of one form field.
type FieldSpec struct {
	Name         string     `yaml:"name"`
	Label        string     `yaml:"label"`
	Required     bool       `yaml:"required"`
	RequiredWhen *Condition `yaml:"requiredWhen"`
	ShowWhen     *Condition `yaml:"showWhen"`
	MinLength    int        `yaml:"minLength"`
	MaxLength    int        `yaml:"maxLength"`
	Pattern      string     `yaml:"pattern"`
	Format       string     `yaml:"format"`
	Options      []string   `yaml:"options"`
	OtherOf      string     `yaml:"otherOf"`
}

// Step groups the fields shown together on one wizard page.
type Step struct {
	ID     string      `yaml:"id"`
	Title  string      `yaml:"title"`
	Fields []FieldSpec `yaml:"fields"`
}

type variantDoc struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Steps []Step `yaml:"steps"`
}

type document struct {
	Variants []variantDoc `yaml:"variants"`
}

type fieldValidator func(*Record) *FieldError

// Schema is a compiled form variant: ordered steps plus one validator per
// field.
type Schema struct {
	id         string
	title      string
	steps      []Step
	validators [][]fieldValidator
	fields     map[string]FieldSpec
}

var embedded = mustParse(variantsYAML)

func mustParse(raw []byte) map[string]*Schema {
	schemas, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return schemas
}

// Variant returns the embedded schema with the given id. An empty id selects
// DefaultVariant.
func Variant(id string) (*Schema, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultVariant
	}
	s, ok := embedded[id]
	if !ok {
		return nil, fmt.Errorf("leads: variant %q: %w", id, ErrUnknownVariant)
	}
	return s, nil
}

// Parse compiles a variants document.
func Parse(raw []byte) (map[string]*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("leads: decode variants: %w", err)
	}
	if len(doc.Variants) == 0 {
		return nil, fmt.Errorf("leads: no variants: %w", ErrInvalidSchema)
	}
	out := make(map[string]*Schema, len(doc.Variants))
	for _, v := range doc.Variants {
		s, err := compile(v)
		if err != nil {
			return nil, err
		}
		if _, dup := out[s.id]; dup {
			return nil, fmt.Errorf("leads: duplicate variant %q: %w", s.id, ErrInvalidSchema)
		}
		out[s.id] = s
	}
	return out, nil
}

func compile(v variantDoc) (*Schema, error) {
	if v.ID == "" || len(v.Steps) == 0 {
		return nil, fmt.Errorf("leads: variant %q has no id or steps: %w", v.ID, ErrInvalidSchema)
	}
	s := &Schema{
		id:     v.ID,
		title:  v.Title,
		steps:  v.Steps,
		fields: make(map[string]FieldSpec),
	}
	for _, step := range v.Steps {
		for _, f := range step.Fields {
			if !Known(f.Name) {
				return nil, fmt.Errorf("leads: variant %s field %q: %w", v.ID, f.Name, ErrUnknownField)
			}
			if _, dup := s.fields[f.Name]; dup {
				return nil, fmt.Errorf("leads: variant %s repeats field %s: %w", v.ID, f.Name, ErrInvalidSchema)
			}
			s.fields[f.Name] = f
		}
	}
	for _, step := range v.Steps {
		validators := make([]fieldValidator, 0, len(step.Fields))
		for _, f := range step.Fields {
			fv, err := s.compileField(f)
			if err != nil {
				return nil, fmt.Errorf("leads: variant %s: %w", v.ID, err)
			}
			validators = append(validators, fv)
		}
		s.validators = append(s.validators, validators)
	}
	return s, nil
}

func (s *Schema) compileField(f FieldSpec) (fieldValidator, error) {
	if f.RequiredWhen != nil {
		if _, ok := s.fields[f.RequiredWhen.Field]; !ok {
			return nil, fmt.Errorf("field %s depends on %q: %w", f.Name, f.RequiredWhen.Field, ErrInvalidSchema)
		}
	}
	if f.ShowWhen != nil {
		if _, ok := s.fields[f.ShowWhen.Field]; !ok {
			return nil, fmt.Errorf("field %s shown by %q: %w", f.Name, f.ShowWhen.Field, ErrInvalidSchema)
		}
	}
	if f.OtherOf != "" {
		if _, ok := s.fields[f.OtherOf]; !ok {
			return nil, fmt.Errorf("field %s completes %q: %w", f.Name, f.OtherOf, ErrInvalidSchema)
		}
	}
	var pattern *regexp.Regexp
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field %s pattern: %w", f.Name, err)
		}
		pattern = re
	}
	switch f.Format {
	case "", FormatEmail, FormatPhone:
	default:
		return nil, fmt.Errorf("field %s format %q: %w", f.Name, f.Format, ErrInvalidSchema)
	}

	list := IsList(f.Name)
	fail := func(key string, args ...any) *FieldError {
		return &FieldError{Field: f.Name, Key: key, Args: args}
	}

	return func(r *Record) *FieldError {
		if list {
			values := r.Values(f.Name)
			if len(values) == 0 {
				if s.required(f, r) {
					return fail(i18n.KeyFieldRequired)
				}
				return nil
			}
			for _, v := range values {
				if len(f.Options) > 0 && !contains(f.Options, v) {
					return fail(i18n.KeyFieldInvalidOption)
				}
			}
			return nil
		}

		value := norm.NFC.String(strings.TrimSpace(r.Value(f.Name)))
		if value == "" {
			if s.required(f, r) {
				return fail(i18n.KeyFieldRequired)
			}
			return nil
		}
		n := utf8.RuneCountInString(value)
		if f.MinLength > 0 && n < f.MinLength {
			return fail(i18n.KeyFieldTooShort, f.MinLength)
		}
		if f.MaxLength > 0 && n > f.MaxLength {
			return fail(i18n.KeyFieldTooLong, f.MaxLength)
		}
		if len(f.Options) > 0 && !contains(f.Options, value) {
			return fail(i18n.KeyFieldInvalidOption)
		}
		if pattern != nil && !pattern.MatchString(value) {
			return fail(i18n.KeyFieldInvalidFormat)
		}
		switch f.Format {
		case FormatEmail:
			if err := validate.Var(value, "email"); err != nil {
				return fail(i18n.KeyFieldInvalidEmail)
			}
		case FormatPhone:
			if !phonePattern.MatchString(value) {
				return fail(i18n.KeyFieldInvalidFormat)
			}
		}
		return nil
	}, nil
}

// required reports whether f must hold a value given the rest of r.
func (s *Schema) required(f FieldSpec, r *Record) bool {
	if f.Required {
		return true
	}
	if f.RequiredWhen == nil {
		return false
	}
	return contains(r.Values(f.RequiredWhen.Field), f.RequiredWhen.Equals)
}

// Applies reports whether f is relevant for r: a field gated by ShowWhen or
// RequiredWhen only applies while its condition holds.
func (s *Schema) Applies(f FieldSpec, r *Record) bool {
	if f.ShowWhen != nil && !contains(r.Values(f.ShowWhen.Field), f.ShowWhen.Equals) {
		return false
	}
	if f.RequiredWhen != nil && !f.Required {
		return contains(r.Values(f.RequiredWhen.Field), f.RequiredWhen.Equals)
	}
	return true
}

// Companion returns the free-text field completing name's OtherOption.
func (s *Schema) Companion(name string) (FieldSpec, bool) {
	for _, f := range s.fields {
		if f.OtherOf == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ID returns the variant id.
func (s *Schema) ID() string { return s.id }

// Title returns the variant display title.
func (s *Schema) Title() string { return s.title }

// StepCount returns the number of steps.
func (s *Schema) StepCount() int { return len(s.steps) }

// Steps returns the ordered steps.
func (s *Schema) Steps() []Step {
	return append([]Step(nil), s.steps...)
}

// Step returns the 1-based step n.
func (s *Schema) Step(n int) (Step, bool) {
	if n < 1 || n > len(s.steps) {
		return Step{}, false
	}
	return s.steps[n-1], true
}

// Field returns the rule set of a field in this variant.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// ValidateStep runs the validators of the 1-based step n. An out-of-range
// step has nothing to validate.
func (s *Schema) ValidateStep(r *Record, n int) []FieldError {
	if n < 1 || n > len(s.validators) {
		return nil
	}
	var errs []FieldError
	for _, v := range s.validators[n-1] {
		if fe := v(r); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs
}

// Validate checks every step and returns a *ValidationError when any field
// fails.
func (s *Schema) Validate(r *Record) error {
	var errs []FieldError
	for n := 1; n <= len(s.validators); n++ {
		errs = append(errs, s.ValidateStep(r, n)...)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Normalize clears "other" free text whose paired field no longer selects
// OtherOption.
func (s *Schema) Normalize(r *Record) {
	for _, f := range s.fields {
		if f.OtherOf == "" {
			continue
		}
		if !contains(r.Values(f.OtherOf), OtherOption) {
			_ = r.Set(f.Name, "")
		}
	}
}
