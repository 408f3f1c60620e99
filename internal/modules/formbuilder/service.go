package formbuilder

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/metrics"
	"github.com/mx-space/widgy/internal/pkg/pagination"
	"github.com/mx-space/widgy/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotAForm = errors.New("node is not a form")

// Register installs the form builder's tree hooks.
func Register(tree *widgy.Service) {
	tree.BeforeCreate(models.KindForm, nameUntitledForm)
	tree.BeforeDelete(releaseFieldNodes)
}

// releaseFieldNodes detaches stored values from field nodes about to be removed.
func releaseFieldNodes(tx *gorm.DB, removed []*widgy.Node) error {
	var ids []uint
	for _, n := range removed {
		if n.Category().IsFormField() {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&models.FormValueModel{}).
		Where("field_node_id IN ?", ids).
		UpdateColumn("field_node_id", nil).Error
}

type Service struct {
	tree     *widgy.Service
	pipeline *Pipeline
	reporter *Reporter
	logger   *zap.Logger
}

func NewService(tree *widgy.Service, pipeline *Pipeline, reporter *Reporter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tree: tree, pipeline: pipeline, reporter: reporter, logger: logger}
}

func (s *Service) Reporter() *Reporter { return s.reporter }

// LoadForm loads a form node with its whole subtree.
func (s *Service) LoadForm(ctx context.Context, id uint) (*widgy.Node, error) {
	n, err := s.tree.Subtree(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.Is(models.KindForm) {
		return nil, ErrNotAForm
	}
	return n, nil
}

// Outcome is the result of handling one post.
type Outcome struct {
	Form     *widgy.Node
	Bound    *BoundForm
	Response *Response
	Stored   []*models.FormSubmissionModel
}

// Handle validates a post against the current shape of the form and, when
// valid, runs the form's handlers. An invalid post is reported through
// Outcome.Bound and a nil error.
func (s *Service) Handle(ctx context.Context, req *http.Request, id uint, posted url.Values) (*Outcome, error) {
	form, err := s.LoadForm(ctx, id)
	if err != nil {
		return nil, err
	}
	bound := Bind(BuildSchema(form), posted)
	out := &Outcome{Form: form, Bound: bound}
	if !bound.Valid() {
		metrics.FormValidationFailures.Inc()
		s.logger.Debug("form post rejected", zap.Uint("form_node", id), zap.Int("errors", len(bound.Errors)))
		return out, nil
	}
	sub := &Submission{Request: req, Form: form, Bound: bound}
	resp, err := s.pipeline.Execute(ctx, sub)
	out.Stored = sub.Stored
	if err != nil {
		return out, err
	}
	out.Response = resp
	return out, nil
}

// FormSummary is one row of the admin form listing.
type FormSummary struct {
	NodeID          uint   `json:"node"`
	Name            string `json:"name"`
	Ident           string `json:"ident"`
	IsRoot          bool   `json:"is_root"`
	IsFrozen        bool   `json:"is_frozen"`
	SubmissionCount int64  `json:"submission_count"`
	ActionURL       string `json:"action_url"`
	SubmissionURL   string `json:"submission_url"`
}

// ListForms pages through every form with its submission count.
func (s *Service) ListForms(ctx context.Context, q pagination.Query) ([]FormSummary, response.Pagination, error) {
	nodes, total, err := s.tree.OfKind(ctx, models.KindForm, q.Offset(), q.Size)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	forms := make([]*models.FormModel, len(nodes))
	for i, n := range nodes {
		forms[i] = n.Content.(*models.FormModel)
	}
	if err := s.reporter.AnnotateSubmissionCounts(ctx, forms); err != nil {
		return nil, response.Pagination{}, err
	}
	out := make([]FormSummary, len(nodes))
	for i, n := range nodes {
		out[i] = FormSummary{
			NodeID:          n.ID,
			Name:            forms[i].Name,
			Ident:           forms[i].Ident,
			IsRoot:          n.IsRoot(),
			IsFrozen:        n.IsFrozen,
			SubmissionCount: *forms[i].SubmissionCount,
			ActionURL:       ActionURL(n.ID),
			SubmissionURL:   SubmissionURL(n.ID),
		}
	}
	return out, q.Meta(total), nil
}

// SubmissionView is a stored submission keyed by field ident.
type SubmissionView struct {
	ID      uint              `json:"id"`
	Created string            `json:"created"`
	Values  map[string]string `json:"values"`
}

// SubmissionPage is a page of submissions with the column names to show them under.
type SubmissionPage struct {
	Form        FormSummary       `json:"form"`
	FieldNames  map[string]string `json:"field_names"`
	Submissions []SubmissionView  `json:"submissions"`
}

// Submissions lists the submissions of the form at node id.
func (s *Service) Submissions(ctx context.Context, id uint, q pagination.Query) (*SubmissionPage, response.Pagination, error) {
	n, err := s.tree.Get(ctx, id)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	f, ok := n.Content.(*models.FormModel)
	if !ok {
		return nil, response.Pagination{}, ErrNotAForm
	}
	subs, page, err := s.reporter.Submissions(ctx, f.Ident, q)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	names, err := s.reporter.FieldNames(ctx, SubmissionIDs(subs))
	if err != nil {
		return nil, response.Pagination{}, err
	}
	count, err := s.reporter.SubmissionCount(ctx, f)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	views := make([]SubmissionView, len(subs))
	for i := range subs {
		views[i] = SubmissionView{
			ID:      subs[i].ID,
			Created: subs[i].CreatedAt.UTC().Format(time.RFC3339),
			Values:  AsDict(&subs[i]),
		}
	}
	return &SubmissionPage{
		Form: FormSummary{
			NodeID: n.ID, Name: f.Name, Ident: f.Ident, IsRoot: n.IsRoot(), IsFrozen: n.IsFrozen,
			SubmissionCount: count, ActionURL: ActionURL(n.ID), SubmissionURL: SubmissionURL(n.ID),
		},
		FieldNames:  names,
		Submissions: views,
	}, page, nil
}

// Export loads every submission of the form at node id with its column names.
func (s *Service) Export(ctx context.Context, id uint) (*models.FormModel, []models.FormSubmissionModel, map[string]string, error) {
	n, err := s.tree.Get(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	f, ok := n.Content.(*models.FormModel)
	if !ok {
		return nil, nil, nil, ErrNotAForm
	}
	subs, err := s.reporter.AllSubmissions(ctx, f.Ident)
	if err != nil {
		return nil, nil, nil, err
	}
	names, err := s.reporter.FieldNames(ctx, SubmissionIDs(subs))
	if err != nil {
		return nil, nil, nil, err
	}
	return f, subs, names, nil
}

// Page loads the whole tree a form belongs to, for re-rendering it in place.
func (s *Service) Page(ctx context.Context, form *widgy.Node) (*widgy.Node, error) {
	if form.IsRoot() {
		return form, nil
	}
	root, err := s.tree.Root(ctx, form)
	if err != nil {
		return nil, err
	}
	return s.tree.Subtree(ctx, root.ID)
}
