package widgy

import (
	"sort"

	"github.com/mx-space/widgy/internal/models"
)

// Category is the closed set of behaviours a content kind can have in the tree.
type Category uint8

const (
	CategoryGeneric Category = iota
	CategoryLayout
	CategoryForm
	CategoryFormElement
	CategoryFormField
	CategorySuccessHandler
	CategoryResponseHandler
)

// IsFormElement reports whether contents of this category must live inside a form.
func (c Category) IsFormElement() bool {
	switch c {
	case CategoryFormElement, CategoryFormField, CategorySuccessHandler, CategoryResponseHandler:
		return true
	}
	return false
}

// IsSuccessHandler is true for success handlers and their response-handler subtype.
func (c Category) IsSuccessHandler() bool {
	return c == CategorySuccessHandler || c == CategoryResponseHandler
}

func (c Category) IsResponseHandler() bool { return c == CategoryResponseHandler }

func (c Category) IsFormField() bool { return c == CategoryFormField }

// DefaultChild is created synchronously under a new node of the owning class.
type DefaultChild struct {
	Kind models.ContentKind
	Init func(models.Content)
}

// Class is the static description of a content kind.
type Class struct {
	Kind              models.ContentKind `json:"kind"`
	Title             string             `json:"title"`
	Category          Category           `json:"-"`
	Editable          bool               `json:"editable"`
	Draggable         bool               `json:"draggable"`
	Deletable         bool               `json:"deletable"`
	Shelf             bool               `json:"shelf"`
	AcceptingChildren bool               `json:"accepting_children"`
	// Fields lists the columns the admin API may update.
	Fields          []string              `json:"fields"`
	DefaultChildren []DefaultChild        `json:"-"`
	New             func() models.Content `json:"-"`
}

var classes = map[models.ContentKind]*Class{}

func register(c *Class) {
	classes[c.Kind] = c
}

// Lookup returns the class for a kind.
func Lookup(kind models.ContentKind) (*Class, bool) {
	c, ok := classes[kind]
	return c, ok
}

// Classes returns every registered class ordered by kind.
func Classes() []*Class {
	out := make([]*Class, 0, len(classes))
	for _, c := range classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func init() {
	register(&Class{
		Kind: models.KindForm, Title: "Form", Category: CategoryForm,
		Editable: true, Draggable: true, Deletable: true, Shelf: true, AcceptingChildren: true,
		Fields: []string{"name"},
		DefaultChildren: []DefaultChild{
			{Kind: models.KindSubmitButton},
		},
		New: func() models.Content { return &models.FormModel{} },
	})
	register(&Class{
		Kind: models.KindFormInput, Title: "Form Input", Category: CategoryFormField,
		Editable: true, Draggable: true, Deletable: true, Shelf: true,
		Fields: []string{"type", "label", "help_text", "required"},
		New: func() models.Content {
			f := &models.FormInputModel{Type: models.InputTypeText}
			f.Required = true
			return f
		},
	})
	register(&Class{
		Kind: models.KindTextarea, Title: "Textarea", Category: CategoryFormField,
		Editable: true, Draggable: true, Deletable: true, Shelf: true,
		Fields: []string{"label", "help_text", "required"},
		New: func() models.Content {
			f := &models.TextareaModel{}
			f.Required = true
			return f
		},
	})
	register(&Class{
		Kind: models.KindSubmitButton, Title: "Submit Button", Category: CategoryFormElement,
		Editable: true, Draggable: true, Deletable: true, Shelf: true, AcceptingChildren: true,
		Fields: []string{"text"},
		DefaultChildren: []DefaultChild{
			{Kind: models.KindSaveDataHandler},
		},
		New: func() models.Content { return &models.SubmitButtonModel{Text: "submit"} },
	})
	register(&Class{
		Kind: models.KindSaveDataHandler, Title: "Save Data Handler", Category: CategorySuccessHandler,
		New: func() models.Content { return &models.SaveDataHandlerModel{} },
	})
	register(&Class{
		Kind: models.KindEmailSuccessHandler, Title: "Email Success Handler", Category: CategorySuccessHandler,
		Editable: true, Deletable: true, Shelf: true,
		Fields: []string{"to", "subject", "content"},
		New:    func() models.Content { return &models.EmailSuccessHandlerModel{Subject: "Subject"} },
	})
	register(&Class{
		Kind: models.KindRedirectResponseHandler, Title: "Redirect Response Handler", Category: CategoryResponseHandler,
		Editable: true, Deletable: true, Shelf: true,
		Fields: []string{"url"},
		New:    func() models.Content { return &models.RedirectResponseHandlerModel{} },
	})
	register(&Class{
		Kind: models.KindMessageResponseHandler, Title: "Message Response Handler", Category: CategoryResponseHandler,
		Editable: true, Deletable: true, Shelf: true,
		Fields: []string{"content"},
		New:    func() models.Content { return &models.MessageResponseHandlerModel{} },
	})
	register(&Class{
		Kind: models.KindTextContent, Title: "Text", Category: CategoryGeneric,
		Editable: true, Draggable: true, Deletable: true, Shelf: true,
		Fields: []string{"content"},
		New:    func() models.Content { return &models.TextContentModel{} },
	})
	register(&Class{
		Kind: models.KindBucket, Title: "Bucket", Category: CategoryGeneric,
		Draggable: true, AcceptingChildren: true,
		New: func() models.Content { return &models.BucketModel{} },
	})
	register(&Class{
		Kind: models.KindTwoColumnLayout, Title: "Two Column Layout", Category: CategoryLayout,
		AcceptingChildren: true,
		DefaultChildren: []DefaultChild{
			{Kind: models.KindBucket, Init: bucketTitle("left")},
			{Kind: models.KindBucket, Init: bucketTitle("right")},
		},
		New: func() models.Content { return &models.TwoColumnLayoutModel{} },
	})
}

func bucketTitle(title string) func(models.Content) {
	return func(c models.Content) {
		if b, ok := c.(*models.BucketModel); ok {
			b.Title = title
		}
	}
}
