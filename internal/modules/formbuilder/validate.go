package formbuilder

import (
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// BoundForm is one in-progress instance of a form: the schema plus the data
// posted against it. An unbound form has no data and no errors.
type BoundForm struct {
	Schema  *Schema
	Bound   bool
	Data    map[string]string
	Errors  map[string]string
	Cleaned map[string]string
}

// NewForm returns an unbound instance of the schema.
func NewForm(s *Schema) *BoundForm {
	return &BoundForm{Schema: s, Data: map[string]string{}, Errors: map[string]string{}}
}

// Bind validates posted values against the schema.
func Bind(s *Schema, posted url.Values) *BoundForm {
	f := NewForm(s)
	f.Bound = true
	f.Cleaned = make(map[string]string, s.Len())
	for _, d := range s.Fields() {
		raw := posted.Get(d.Key)
		f.Data[d.Key] = raw
		value := strings.TrimSpace(raw)
		if msg := checkField(d, value); msg != "" {
			f.Errors[d.Key] = msg
			continue
		}
		f.Cleaned[d.Key] = value
	}
	return f
}

// Valid reports whether the form was bound and every field passed.
func (f *BoundForm) Valid() bool { return f.Bound && len(f.Errors) == 0 }

// Value returns what the field should display.
func (f *BoundForm) Value(key string) string { return f.Data[key] }

// Error returns the validation message of a field, if any.
func (f *BoundForm) Error(key string) string { return f.Errors[key] }

// ErrorsByLabel keys the validation messages by field label for API clients.
func (f *BoundForm) ErrorsByLabel() map[string]string {
	out := make(map[string]string, len(f.Errors))
	for key, msg := range f.Errors {
		if d, ok := f.Schema.Field(key); ok {
			out[key] = d.Label + ": " + msg
		}
	}
	return out
}

func checkField(d FieldDefinition, value string) string {
	if value == "" {
		if d.Required {
			return messageFor("required")
		}
		return ""
	}
	if d.Rules == "" {
		return ""
	}
	if err := validate.Var(value, d.Rules); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return messageFor(verrs[0].Tag())
		}
		return err.Error()
	}
	return ""
}

func messageFor(tag string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "numeric":
		return "Enter a number."
	default:
		return "Enter a valid value."
	}
}
