package formbuilder

import (
	"fmt"
	"html/template"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
)

// ActionURL is where a rendered form posts to.
func ActionURL(nodeID uint) string { return fmt.Sprintf("/forms/%d/submit", nodeID) }

// SubmissionURL is the admin listing of a form's submissions.
func SubmissionURL(nodeID uint) string {
	return fmt.Sprintf("/api/admin/forms/%d/submissions", nodeID)
}

// InstanceKey is the render context key of a form's in-progress instance.
func InstanceKey(nodeID uint) string { return fmt.Sprintf("form_instance_%d", nodeID) }

const formKey = "form"

// InstallRenderers teaches r to render form contents.
func InstallRenderers(r *widgy.Renderer) error {
	if err := r.Templates(formTemplates); err != nil {
		return err
	}
	r.Register(models.KindForm, renderForm)
	r.Register(models.KindFormInput, renderField("form_builder/forminput"))
	r.Register(models.KindTextarea, renderField("form_builder/textarea"))
	r.Register(models.KindSubmitButton, renderSubmit)
	for _, kind := range []models.ContentKind{
		models.KindSaveDataHandler,
		models.KindEmailSuccessHandler,
		models.KindRedirectResponseHandler,
		models.KindMessageResponseHandler,
	} {
		r.Register(kind, renderNothing)
	}
	return nil
}

// instance returns the form instance shared by the render pass, creating an
// unbound one on first use.
func instance(rc widgy.RenderContext, n *widgy.Node) *BoundForm {
	key := InstanceKey(n.ID)
	if f, ok := rc[key].(*BoundForm); ok {
		return f
	}
	f := NewForm(BuildSchema(n))
	rc[key] = f
	return f
}

func renderForm(r *widgy.Renderer, rc widgy.RenderContext, n *widgy.Node) (template.HTML, error) {
	f := instance(rc, n)
	children, err := r.RenderChildren(rc.With(map[string]interface{}{formKey: f}), n)
	if err != nil {
		return "", err
	}
	return r.Execute("form_builder/form", struct {
		Action   string
		Form     *BoundForm
		Children template.HTML
	}{ActionURL(n.ID), f, children})
}

type fieldView struct {
	Key      string
	Label    string
	HelpText string
	Input    InputKind
	Required bool
	Value    string
	Error    string
}

func renderField(name string) widgy.RenderFunc {
	return func(r *widgy.Renderer, rc widgy.RenderContext, n *widgy.Node) (template.HTML, error) {
		f, ok := rc[formKey].(*BoundForm)
		if !ok {
			return "", fmt.Errorf("field %d rendered outside of a form", n.ID)
		}
		key := n.Key()
		d, ok := f.Schema.Field(key)
		if !ok {
			fld, isField := n.Content.(Field)
			if !isField {
				return "", nil
			}
			d = definitionOf(key, fld)
		}
		return r.Execute(name, fieldView{
			Key:      key,
			Label:    d.Label,
			HelpText: d.HelpText,
			Input:    d.Input,
			Required: d.Required,
			Value:    f.Value(key),
			Error:    f.Error(key),
		})
	}
}

func renderSubmit(r *widgy.Renderer, _ widgy.RenderContext, n *widgy.Node) (template.HTML, error) {
	return r.Execute("form_builder/submitbutton", n.Content)
}

func renderNothing(*widgy.Renderer, widgy.RenderContext, *widgy.Node) (template.HTML, error) {
	return "", nil
}

const formTemplates = `
{{define "form_builder/form"}}<form class="widgy-form" method="post" action="{{.Action}}">
{{if and .Form.Bound (not .Form.Valid)}}<p class="errorlist">Please correct the errors below.</p>
{{end}}{{.Children}}</form>{{end}}
{{define "form_builder/forminput"}}<p class="field{{if .Error}} error{{end}}">
<label for="id_{{.Key}}">{{.Label}}</label>
<input id="id_{{.Key}}" name="{{.Key}}" type="{{.Input}}" value="{{.Value}}"{{if .Required}} required{{end}}>
{{if .HelpText}}<span class="helptext">{{.HelpText}}</span>{{end}}
{{if .Error}}<span class="errorlist">{{.Error}}</span>{{end}}
</p>{{end}}
{{define "form_builder/textarea"}}<p class="field{{if .Error}} error{{end}}">
<label for="id_{{.Key}}">{{.Label}}</label>
<textarea id="id_{{.Key}}" name="{{.Key}}"{{if .Required}} required{{end}}>{{.Value}}</textarea>
{{if .HelpText}}<span class="helptext">{{.HelpText}}</span>{{end}}
{{if .Error}}<span class="errorlist">{{.Error}}</span>{{end}}
</p>{{end}}
{{define "form_builder/submitbutton"}}<button type="submit">{{.Text}}</button>{{end}}
`
