package widgy

import (
	"bytes"
	"fmt"
	"html/template"
	"maps"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/pkg/markdown"
)

// RenderContext is shared by every node rendered in one pass.
type RenderContext map[string]interface{}

// With returns a copy of the context with extra values, leaving rc untouched.
func (rc RenderContext) With(values map[string]interface{}) RenderContext {
	out := make(RenderContext, len(rc)+len(values))
	maps.Copy(out, rc)
	maps.Copy(out, values)
	return out
}

// RenderFunc renders one node; it usually calls back into RenderChildren.
type RenderFunc func(r *Renderer, rc RenderContext, n *Node) (template.HTML, error)

// Renderer turns a loaded subtree into HTML using per-kind render funcs.
type Renderer struct {
	tmpl  *template.Template
	funcs map[models.ContentKind]RenderFunc
}

func NewRenderer() *Renderer {
	r := &Renderer{
		tmpl:  template.Must(template.New("widgy").Parse(baseTemplates)),
		funcs: map[models.ContentKind]RenderFunc{},
	}
	r.Register(models.KindTextContent, renderText)
	r.Register(models.KindBucket, r.templateFunc("widgy/bucket"))
	r.Register(models.KindTwoColumnLayout, r.templateFunc("widgy/twocolumnlayout"))
	return r
}

// Register sets the render func for a kind.
func (r *Renderer) Register(kind models.ContentKind, fn RenderFunc) {
	r.funcs[kind] = fn
}

// Templates parses additional named templates into the renderer.
func (r *Renderer) Templates(text string) error {
	_, err := r.tmpl.Parse(text)
	return err
}

// Render renders a node. Kinds without a render func render their children.
func (r *Renderer) Render(rc RenderContext, n *Node) (template.HTML, error) {
	if rc == nil {
		rc = RenderContext{}
	}
	if fn, ok := r.funcs[n.Kind()]; ok {
		return fn(r, rc, n)
	}
	return r.RenderChildren(rc, n)
}

// RenderChildren concatenates the rendering of n's children.
func (r *Renderer) RenderChildren(rc RenderContext, n *Node) (template.HTML, error) {
	var buf bytes.Buffer
	for _, c := range n.Children {
		html, err := r.Render(rc, c)
		if err != nil {
			return "", err
		}
		buf.WriteString(string(html))
	}
	return template.HTML(buf.String()), nil
}

// Execute runs a named template.
func (r *Renderer) Execute(name string, data interface{}) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// TemplateData is what a node template sees.
type TemplateData struct {
	Node     *Node
	Content  models.Content
	Children template.HTML
	Context  RenderContext
}

func (r *Renderer) templateFunc(name string) RenderFunc {
	return func(r *Renderer, rc RenderContext, n *Node) (template.HTML, error) {
		children, err := r.RenderChildren(rc, n)
		if err != nil {
			return "", err
		}
		return r.Execute(name, TemplateData{Node: n, Content: n.Content, Children: children, Context: rc})
	}
}

func renderText(r *Renderer, _ RenderContext, n *Node) (template.HTML, error) {
	text, ok := n.Content.(*models.TextContentModel)
	if !ok {
		return "", nil
	}
	body, err := markdown.Render(text.Content)
	if err != nil {
		return "", err
	}
	return r.Execute("widgy/textcontent", body)
}

const baseTemplates = `
{{define "widgy/textcontent"}}<div class="widgy-text">{{.}}</div>{{end}}
{{define "widgy/bucket"}}<div class="widgy-bucket widgy-bucket-{{.Content.Title}}">{{.Children}}</div>{{end}}
{{define "widgy/twocolumnlayout"}}<div class="widgy-layout widgy-two-column">{{.Children}}</div>{{end}}
{{define "widgy/document"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{.Body}}
</body>
</html>{{end}}
`

// Document wraps a rendered body in the page shell.
func (r *Renderer) Document(title string, body template.HTML) (template.HTML, error) {
	return r.Execute("widgy/document", struct {
		Title string
		Body  template.HTML
	}{title, body})
}
