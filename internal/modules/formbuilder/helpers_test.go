package formbuilder

import (
	"context"
	"testing"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/mail"
	"github.com/mx-space/widgy/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memNode builds an unsaved node for tests that only walk a tree.
func memNode(id uint, content models.Content, children ...*widgy.Node) *widgy.Node {
	return &widgy.Node{
		NodeModel: models.NodeModel{ID: id, ContentType: content.Kind()},
		Content:   content,
		Children:  children,
	}
}

func textInput(label string, required bool) *models.FormInputModel {
	f := &models.FormInputModel{Type: models.InputTypeText}
	f.Label, f.Required, f.Ident = label, required, "ident-"+label
	return f
}

func numberInput(label string) *models.FormInputModel {
	f := textInput(label, true)
	f.Type = models.InputTypeNumber
	return f
}

func textarea(label string, required bool) *models.TextareaModel {
	f := &models.TextareaModel{}
	f.Label, f.Required, f.Ident = label, required, "ident-"+label
	return f
}

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

type fixture struct {
	db       *gorm.DB
	tree     *widgy.Service
	renderer *widgy.Renderer
	pipeline *Pipeline
	reporter *Reporter
	mailer   *recordingMailer
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	tree := widgy.NewService(db, nil)
	Register(tree)

	renderer := widgy.NewRenderer()
	require.NoError(t, InstallRenderers(renderer))

	mailer := &recordingMailer{}
	pipeline := NewPipeline(nil)
	builtins := &Builtins{Submitter: NewSubmitter(db, nil), Mailer: mailer, From: "forms@example.com", Site: "Example"}
	builtins.Install(pipeline)

	reporter := NewReporter(db, tree)
	return &fixture{
		db:       db,
		tree:     tree,
		renderer: renderer,
		pipeline: pipeline,
		reporter: reporter,
		mailer:   mailer,
		svc:      NewService(tree, pipeline, reporter, nil),
	}
}

type fieldSpec struct {
	kind     models.ContentKind
	label    string
	number   bool
	optional bool
}

func field(label string) fieldSpec { return fieldSpec{kind: models.KindFormInput, label: label} }
func number(label string) fieldSpec {
	return fieldSpec{kind: models.KindFormInput, label: label, number: true}
}
func area(label string) fieldSpec {
	return fieldSpec{kind: models.KindTextarea, label: label, optional: true}
}

// newForm creates a root form holding the given fields after its default
// submit button and returns the loaded subtree.
func (f *fixture) newForm(t *testing.T, name string, fields ...fieldSpec) *widgy.Node {
	t.Helper()
	ctx := context.Background()
	form, err := f.tree.AddRoot(ctx, models.KindForm, func(c models.Content) {
		c.(*models.FormModel).Name = name
	})
	require.NoError(t, err)
	for _, fs := range fields {
		fs := fs
		_, err := f.tree.AddChild(ctx, form.ID, fs.kind, func(c models.Content) {
			base := c.(Field).Field()
			base.Label = fs.label
			base.Required = !fs.optional
			if in, ok := c.(*models.FormInputModel); ok && fs.number {
				in.Type = models.InputTypeNumber
			}
		})
		require.NoError(t, err)
	}
	return f.load(t, form.ID)
}

func (f *fixture) load(t *testing.T, id uint) *widgy.Node {
	t.Helper()
	n, err := f.svc.LoadForm(context.Background(), id)
	require.NoError(t, err)
	return n
}

// button returns the first submit button of a loaded form.
func button(form *widgy.Node) *widgy.Node {
	for _, n := range form.DepthFirst() {
		if n.Is(models.KindSubmitButton) {
			return n
		}
	}
	return nil
}

// fieldKey returns the schema key of the field labelled label.
func fieldKey(t *testing.T, form *widgy.Node, label string) string {
	t.Helper()
	for _, d := range BuildSchema(form).Fields() {
		if d.Label == label {
			return d.Key
		}
	}
	t.Fatalf("no field labelled %q", label)
	return ""
}
