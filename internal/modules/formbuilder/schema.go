package formbuilder

import (
	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
)

// InputKind selects the widget and the validation rules of a field.
type InputKind string

const (
	InputText     InputKind = "text"
	InputNumber   InputKind = "number"
	InputTextarea InputKind = "textarea"
)

// FieldDefinition is one entry of a runtime form schema.
type FieldDefinition struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	HelpText string    `json:"help_text"`
	Input    InputKind `json:"input"`
	Required bool      `json:"required"`
	// Rules is a go-playground/validator tag applied to non-empty values.
	Rules string `json:"rules,omitempty"`
}

// Schema is an ordered mapping from field key to definition.
type Schema struct {
	keys []string
	defs map[string]FieldDefinition
}

// Keys returns the field keys in document order.
func (s *Schema) Keys() []string { return append([]string(nil), s.keys...) }

// Field looks up a definition by key.
func (s *Schema) Field(key string) (FieldDefinition, bool) {
	d, ok := s.defs[key]
	return d, ok
}

// Fields returns the definitions in document order.
func (s *Schema) Fields() []FieldDefinition {
	out := make([]FieldDefinition, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.defs[k])
	}
	return out
}

func (s *Schema) Len() int { return len(s.keys) }

// Field is the content of a node that contributes a schema field.
type Field interface {
	models.Content
	Field() *models.FormFieldBase
}

// FieldSet maps field keys to the field contents, in document order.
type FieldSet struct {
	Keys   []string
	Fields map[string]Field
	Nodes  map[string]*widgy.Node
}

// GetFields walks the form subtree depth-first and collects its fields keyed
// by node id. It is recomputed on every call so it always reflects the tree.
func GetFields(form *widgy.Node) *FieldSet {
	fs := &FieldSet{Fields: map[string]Field{}, Nodes: map[string]*widgy.Node{}}
	for _, n := range form.DepthFirst() {
		if !n.Category().IsFormField() {
			continue
		}
		f, ok := n.Content.(Field)
		if !ok {
			continue
		}
		key := n.Key()
		fs.Keys = append(fs.Keys, key)
		fs.Fields[key] = f
		fs.Nodes[key] = n
	}
	return fs
}

// BuildSchema derives the runtime schema of a form from its loaded subtree.
func BuildSchema(form *widgy.Node) *Schema {
	fs := GetFields(form)
	s := &Schema{keys: fs.Keys, defs: make(map[string]FieldDefinition, len(fs.Keys))}
	for _, key := range fs.Keys {
		s.defs[key] = definitionOf(key, fs.Fields[key])
	}
	return s
}

func definitionOf(key string, f Field) FieldDefinition {
	base := f.Field()
	d := FieldDefinition{
		Key:      key,
		Label:    base.Label,
		HelpText: base.HelpText,
		Input:    InputText,
		Required: base.Required,
	}
	switch v := f.(type) {
	case *models.FormInputModel:
		if v.Type == models.InputTypeNumber {
			d.Input = InputNumber
			d.Rules = "numeric"
		}
	case *models.TextareaModel:
		d.Input = InputTextarea
	}
	return d
}
