package formbuilder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(f.svc, f.renderer, nil)
	h.RegisterRoutes(r.Group("/api/admin"), func(c *gin.Context) { c.Next() })
	h.RegisterPublic(r.Group(""))
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func submitURL(form *widgy.Node) string { return ActionURL(form.ID) }

func postForm(form *widgy.Node, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, submitURL(form), strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(t *testing.T, form *widgy.Node, body map[string]interface{}) *http.Request {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, submitURL(form), bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSubmitHTMLRedirectsBack(t *testing.T) {
	f := newFixture(t)
	form := f.newForm(t, "Contact", field("Name"))
	r := newRouter(f)

	req := postForm(form, postValues(t, form, map[string]string{"Name": "Ada"}))
	req.Header.Set("Referer", "/pages/contact")
	w := do(r, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/pages/contact", w.Header().Get("Location"))
}

func TestSubmitHTMLFollowsResponseHandler(t *testing.T) {
	f := newFixture(t)
	form := f.newForm(t, "Contact", field("Name"))
	_, err := f.tree.AddChild(context.Background(), button(form).ID, models.KindRedirectResponseHandler, func(c models.Content) {
		c.(*models.RedirectResponseHandlerModel).URL = "/thanks"
	})
	require.NoError(t, err)
	r := newRouter(f)

	w := do(r, postForm(form, postValues(t, form, map[string]string{"Name": "Ada"})))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/thanks", w.Header().Get("Location"))
}

func TestSubmitHTMLMessage(t *testing.T) {
	f := newFixture(t)
	form := f.newForm(t, "Contact", field("Name"))
	_, err := f.tree.AddChild(context.Background(), button(form).ID, models.KindMessageResponseHandler, func(c models.Content) {
		c.(*models.MessageResponseHandlerModel).Content = "Thanks, **we got it**."
	})
	require.NoError(t, err)

	w := do(newRouter(f), postForm(form, postValues(t, form, map[string]string{"Name": "Ada"})))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>we got it</strong>")
	assert.Contains(t, w.Body.String(), "<title>Contact</title>")
}

func TestSubmitHTMLInvalidRerendersForm(t *testing.T) {
	f := newFixture(t)
	form := f.newForm(t, "Contact", field("Name"), number("Age"))

	w := do(newRouter(f), postForm(form, postValues(t, form, map[string]string{"Age": "old"})))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `action="`+submitURL(form)+`"`)
	assert.Contains(t, body, "This field is required.")
	assert.Contains(t, body, "Enter a number.")
	assert.Contains(t, body, `value="old"`)

	var count int64
	require.NoError(t, f.db.Model(&models.FormSubmissionModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitJSON(t *testing.T) {
	f := newFixture(t)
	form := f.newForm(t, "Contact", field("Name"), number("Age"))
	r := newRouter(f)

	w := do(r, postJSON(t, form, map[string]interface{}{fieldKey(t, form, "Age"): 12}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var invalid struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &invalid))
	assert.Equal(t, "Name: This field is required.", invalid.Errors[fieldKey(t, form, "Name")])

	w = do(r, postJSON(t, form, map[string]interface{}{
		fieldKey(t, form, "Name"): "Ada", fieldKey(t, form, "Age"): 36,
	}))
	require.Equal(t, http.StatusOK, w.Code)
	var ok struct {
		Submissions []uint `json:"submissions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Len(t, ok.Submissions, 1)
}

func TestSubmitUnknownForm(t *testing.T) {
	f := newFixture(t)
	form := f.newForm(t, "Contact", field("Name"))
	r := newRouter(f)

	w := do(r, httptest.NewRequest(http.MethodPost, ActionURL(9999), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, ActionURL(button(form).ID), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, "/forms/abc/submit", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminListingAndExport(t *testing.T) {
	f := newFixture(t)
	form := f.newForm(t, "Contact", field("Name"))
	r := newRouter(f)
	w := do(r, postForm(form, postValues(t, form, map[string]string{"Name": "Ada"})))
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/admin/forms", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []FormSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Contact", list.Data[0].Name)
	assert.EqualValues(t, 1, list.Data[0].SubmissionCount)

	w = do(r, httptest.NewRequest(http.MethodGet, SubmissionURL(form.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data SubmissionPage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data.Submissions, 1)
	assert.Contains(t, page.Data.FieldNames, GetFields(form).Fields[fieldKey(t, form, "Name")].Field().Ident)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/admin/forms/"+strconv.FormatUint(uint64(form.ID), 10)+"/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "submitted,Name\n"))
}
