package formbuilder

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"time"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/pagination"
	"github.com/mx-space/widgy/internal/pkg/response"
	"gorm.io/gorm"
)

// Reporter answers read-side questions about stored submissions.
type Reporter struct {
	db   *gorm.DB
	tree *widgy.Service
}

func NewReporter(db *gorm.DB, tree *widgy.Service) *Reporter {
	return &Reporter{db: db, tree: tree}
}

// FieldNames maps every field ident found in the given submissions to a
// display name. The most recent value stored under the ident decides: its
// field's live label if the field node still exists, else the stored label.
func (r *Reporter) FieldNames(ctx context.Context, submissionIDs []uint) (map[string]string, error) {
	out := map[string]string{}
	if len(submissionIDs) == 0 {
		return out, nil
	}
	db := r.db.WithContext(ctx)

	var idents []string
	if err := db.Model(&models.FormValueModel{}).
		Where("submission_id IN ?", submissionIDs).
		Distinct().Pluck("field_ident", &idents).Error; err != nil {
		return nil, err
	}
	if len(idents) == 0 {
		return out, nil
	}

	var values []models.FormValueModel
	if err := db.Model(&models.FormValueModel{}).
		Select("form_builder_formvalues.*").
		Joins("JOIN form_builder_formsubmissions s ON s.id = form_builder_formvalues.submission_id").
		Where("form_builder_formvalues.field_ident IN ?", idents).
		Order("s.created_at DESC").Order("form_builder_formvalues.id DESC").
		Find(&values).Error; err != nil {
		return nil, err
	}
	for _, v := range values {
		if _, seen := out[v.FieldIdent]; seen {
			continue
		}
		name, err := r.label(ctx, v)
		if err != nil {
			return nil, err
		}
		out[v.FieldIdent] = name
	}
	return out, nil
}

func (r *Reporter) label(ctx context.Context, v models.FormValueModel) (string, error) {
	if v.FieldNodeID == nil {
		return v.FieldName, nil
	}
	n, err := r.tree.Get(ctx, *v.FieldNodeID)
	if errors.Is(err, widgy.ErrNodeNotFound) {
		return v.FieldName, nil
	}
	if err != nil {
		return "", err
	}
	if f, ok := n.Content.(Field); ok {
		return f.Field().Label, nil
	}
	return v.FieldName, nil
}

// AsDict maps field ident to the stored answer.
func AsDict(sub *models.FormSubmissionModel) map[string]string {
	out := make(map[string]string, len(sub.Values))
	for _, v := range sub.Values {
		out[v.FieldIdent] = v.Value
	}
	return out
}

// SubmissionCount returns the number of submissions stored under the form's
// ident. A count already set on the form, by AnnotateSubmissionCounts or an
// earlier call, is returned as is.
func (r *Reporter) SubmissionCount(ctx context.Context, f *models.FormModel) (int64, error) {
	if f.SubmissionCount != nil {
		return *f.SubmissionCount, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.FormSubmissionModel{}).
		Where("form_ident = ?", f.Ident).Count(&n).Error; err != nil {
		return 0, err
	}
	f.SubmissionCount = &n
	return n, nil
}

// AnnotateSubmissionCounts sets the submission count of many forms with a
// single grouped query.
func (r *Reporter) AnnotateSubmissionCounts(ctx context.Context, forms []*models.FormModel) error {
	if len(forms) == 0 {
		return nil
	}
	idents := make([]string, len(forms))
	for i, f := range forms {
		idents[i] = f.Ident
	}
	var rows []struct {
		FormIdent string
		Total     int64
	}
	if err := r.db.WithContext(ctx).Model(&models.FormSubmissionModel{}).
		Select("form_ident, COUNT(*) AS total").
		Where("form_ident IN ?", idents).
		Group("form_ident").
		Scan(&rows).Error; err != nil {
		return err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.FormIdent] = row.Total
	}
	for _, f := range forms {
		n := counts[f.Ident]
		f.SubmissionCount = &n
	}
	return nil
}

// Submissions pages through the submissions of a form, newest first.
func (r *Reporter) Submissions(ctx context.Context, formIdent string, q pagination.Query) ([]models.FormSubmissionModel, response.Pagination, error) {
	var subs []models.FormSubmissionModel
	db := r.db.WithContext(ctx).Model(&models.FormSubmissionModel{}).
		Where("form_ident = ?", formIdent)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, response.Pagination{}, err
	}
	if err := r.db.WithContext(ctx).
		Where("form_ident = ?", formIdent).
		Preload("Values", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Order("created_at DESC").Order("id DESC").
		Offset(q.Offset()).Limit(q.Size).
		Find(&subs).Error; err != nil {
		return nil, response.Pagination{}, err
	}
	return subs, q.Meta(total), nil
}

// AllSubmissions loads every submission of a form, oldest first.
func (r *Reporter) AllSubmissions(ctx context.Context, formIdent string) ([]models.FormSubmissionModel, error) {
	var subs []models.FormSubmissionModel
	err := r.db.WithContext(ctx).
		Where("form_ident = ?", formIdent).
		Preload("Values", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Order("created_at ASC").Order("id ASC").
		Find(&subs).Error
	return subs, err
}

// SubmissionIDs lists the ids of the given submissions.
func SubmissionIDs(subs []models.FormSubmissionModel) []uint {
	ids := make([]uint, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	return ids
}

// WriteCSV writes one row per submission. Columns follow the order in which
// idents first appear, labelled with names.
func WriteCSV(w io.Writer, subs []models.FormSubmissionModel, names map[string]string) error {
	var idents []string
	seen := map[string]bool{}
	for _, s := range subs {
		for _, v := range s.Values {
			if !seen[v.FieldIdent] {
				seen[v.FieldIdent] = true
				idents = append(idents, v.FieldIdent)
			}
		}
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(idents)+1)
	header = append(header, "submitted")
	for _, id := range idents {
		name := names[id]
		if name == "" {
			name = id
		}
		header = append(header, name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range subs {
		values := AsDict(&subs[i])
		row := make([]string, 0, len(header))
		row = append(row, subs[i].CreatedAt.UTC().Format(time.RFC3339))
		for _, id := range idents {
			row = append(row, values[id])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
