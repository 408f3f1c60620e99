package formbuilder

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/url"
	"testing"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSubmitStoresOneValuePerField(t *testing.T) {
	f := newFixture(t)
	form := f.newForm(t, "Survey", field("A"), area("B"), number("C"))
	fs := GetFields(form)
	data := map[string]string{
		fieldKey(t, form, "A"): "alpha",
		fieldKey(t, form, "C"): "3",
	}

	sub, err := NewSubmitter(f.db, nil).Submit(context.Background(), form, data)
	require.NoError(t, err)

	assert.Equal(t, form.ID, sub.FormNodeID)
	assert.Equal(t, form.Content.(*models.FormModel).Ident, sub.FormIdent)
	require.Len(t, sub.Values, 3)
	for i, key := range fs.Keys {
		v := sub.Values[i]
		require.NotNil(t, v.FieldNodeID)
		assert.Equal(t, fs.Nodes[key].ID, *v.FieldNodeID)
		assert.Equal(t, fs.Fields[key].Field().Ident, v.FieldIdent)
		assert.Equal(t, fs.Fields[key].Field().Label, v.FieldName)
		assert.Equal(t, data[key], v.Value)
	}

	var stored int64
	require.NoError(t, f.db.Model(&models.FormValueModel{}).Where("submission_id = ?", sub.ID).Count(&stored).Error)
	assert.EqualValues(t, 3, stored)
}

func TestSubmitRejectsNonForm(t *testing.T) {
	f := newFixture(t)
	form := f.newForm(t, "Survey", field("A"))
	_, err := NewSubmitter(f.db, nil).Submit(context.Background(), button(form), nil)
	assert.ErrorIs(t, err, ErrNotAForm)
}

func TestHandleRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.newForm(t, "Survey", field("A"), area("B"), number("C"))

	out, err := f.svc.Handle(ctx, nil, form.ID, postValues(t, form, map[string]string{"A": "x", "C": "nope"}))
	require.NoError(t, err)
	assert.False(t, out.Bound.Valid())
	assert.Empty(t, out.Stored)

	out, err = f.svc.Handle(ctx, nil, form.ID, postValues(t, form, map[string]string{"A": "x", "B": "long text", "C": "7"}))
	require.NoError(t, err)
	require.True(t, out.Bound.Valid())
	require.Len(t, out.Stored, 1)
	assert.Nil(t, out.Response)

	subs, page, err := f.reporter.Submissions(ctx, form.Content.(*models.FormModel).Ident, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, subs, 1)

	names, err := f.reporter.FieldNames(ctx, SubmissionIDs(subs))
	require.NoError(t, err)
	values := AsDict(&subs[0])
	byLabel := map[string]string{}
	for ident, label := range names {
		byLabel[label] = values[ident]
	}
	assert.Equal(t, map[string]string{"A": "x", "B": "long text", "C": "7"}, byLabel)
}

func TestFieldNamesFollowLiveLabels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.newForm(t, "Survey", field("A"), area("B"))
	keyA, keyB := fieldKey(t, form, "A"), fieldKey(t, form, "B")
	identA := GetFields(form).Fields[keyA].Field().Ident
	identB := GetFields(form).Fields[keyB].Field().Ident

	sub, err := NewSubmitter(f.db, nil).Submit(ctx, form, map[string]string{keyA: "1", keyB: "2"})
	require.NoError(t, err)

	nodeA := GetFields(form).Nodes[keyA]
	_, err = f.tree.UpdateContent(ctx, nodeA.ID, map[string]interface{}{"label": "Renamed"})
	require.NoError(t, err)
	require.NoError(t, f.tree.Delete(ctx, GetFields(form).Nodes[keyB].ID))

	names, err := f.reporter.FieldNames(ctx, []uint{sub.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{identA: "Renamed", identB: "B"}, names)

	var detached models.FormValueModel
	require.NoError(t, f.db.Where("field_ident = ?", identB).First(&detached).Error)
	assert.Nil(t, detached.FieldNodeID)
}

func TestFieldNamesUseLatestLabelOfDeletedField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.newForm(t, "Survey", field("A1"))
	key := fieldKey(t, form, "A1")
	ident := GetFields(form).Fields[key].Field().Ident
	submitter := NewSubmitter(f.db, nil)

	first, err := submitter.Submit(ctx, form, map[string]string{key: "one"})
	require.NoError(t, err)

	_, err = f.tree.UpdateContent(ctx, GetFields(form).Nodes[key].ID, map[string]interface{}{"label": "A2"})
	require.NoError(t, err)
	form = f.load(t, form.ID)
	_, err = submitter.Submit(ctx, form, map[string]string{key: "two"})
	require.NoError(t, err)

	require.NoError(t, f.tree.Delete(ctx, GetFields(form).Nodes[key].ID))

	// The older submission is labelled by the most recent stored label.
	names, err := f.reporter.FieldNames(ctx, []uint{first.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{ident: "A2"}, names)
}

func TestSubmitRollsBackOnValueFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.newForm(t, "Survey", field("A"), area("B"))

	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_values", func(db *gorm.DB) {
		if db.Statement.Table == (models.FormValueModel{}).TableName() {
			db.AddError(errors.New("disk full"))
		}
	}))

	_, err := NewSubmitter(f.db, nil).Submit(ctx, form, map[string]string{fieldKey(t, form, "A"): "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	var subs, values int64
	require.NoError(t, f.db.Model(&models.FormSubmissionModel{}).Count(&subs).Error)
	require.NoError(t, f.db.Model(&models.FormValueModel{}).Count(&values).Error)
	assert.Zero(t, subs)
	assert.Zero(t, values)
}

func TestSubmissionCountSurvivesFormDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.newForm(t, "Survey", field("A"))
	key := fieldKey(t, form, "A")
	for i := 0; i < 2; i++ {
		_, err := NewSubmitter(f.db, nil).Submit(ctx, form, map[string]string{key: "v"})
		require.NoError(t, err)
	}

	require.NoError(t, f.tree.Delete(ctx, form.ID))

	reloaded := f.load(t, form.ID)
	count, err := f.reporter.SubmissionCount(ctx, reloaded.Content.(*models.FormModel))
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestAnnotateSubmissionCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	busy := f.newForm(t, "Busy", field("A"))
	quiet := f.newForm(t, "Quiet", field("A"))
	for i := 0; i < 3; i++ {
		_, err := NewSubmitter(f.db, nil).Submit(ctx, busy, map[string]string{fieldKey(t, busy, "A"): "v"})
		require.NoError(t, err)
	}

	forms := []*models.FormModel{busy.Content.(*models.FormModel), quiet.Content.(*models.FormModel)}
	require.NoError(t, f.reporter.AnnotateSubmissionCounts(ctx, forms))
	assert.EqualValues(t, 3, *forms[0].SubmissionCount)
	assert.EqualValues(t, 0, *forms[1].SubmissionCount)

	// An annotated count is not queried again.
	_, err := NewSubmitter(f.db, nil).Submit(ctx, quiet, map[string]string{fieldKey(t, quiet, "A"): "v"})
	require.NoError(t, err)
	n, err := f.reporter.SubmissionCount(ctx, forms[1])
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestWriteCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.newForm(t, "Survey", field("Name"), number("Age"))
	_, err := NewSubmitter(f.db, nil).Submit(ctx, form, map[string]string{
		fieldKey(t, form, "Name"): "Ada, Countess", fieldKey(t, form, "Age"): "36",
	})
	require.NoError(t, err)

	ident := form.Content.(*models.FormModel).Ident
	subs, err := f.reporter.AllSubmissions(ctx, ident)
	require.NoError(t, err)
	names, err := f.reporter.FieldNames(ctx, SubmissionIDs(subs))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, subs, names))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"submitted", "Name", "Age"}, rows[0])
	assert.Equal(t, []string{"Ada, Countess", "36"}, rows[1][1:])
}

func postValues(t *testing.T, form *widgy.Node, byLabel map[string]string) url.Values {
	t.Helper()
	v := url.Values{}
	for label, value := range byLabel {
		v.Set(fieldKey(t, form, label), value)
	}
	return v
}
