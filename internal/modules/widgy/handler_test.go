package widgy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/widgy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// treeJSON mirrors the node response shape without the polymorphic content.
type treeJSON struct {
	ID        uint       `json:"id"`
	Deletable *bool      `json:"deletable"`
	Children  []treeJSON `json:"children"`
}

func newTreeRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	svc, _ := newTree(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/admin"), func(c *gin.Context) { c.Next() })
	return r, svc
}

func call(r http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerAddAndInspect(t *testing.T) {
	r, _ := newTreeRouter(t)

	w := call(r, http.MethodPost, "/api/admin/nodes", AddNodeDTO{Kind: models.KindForm, Content: map[string]interface{}{"name": "Signup"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var form treeJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &form))
	require.Len(t, form.Children, 1)

	w = call(r, http.MethodPost, fmt.Sprintf("/api/admin/nodes/%d/children", form.ID), AddNodeDTO{
		Kind:    models.KindFormInput,
		Content: map[string]interface{}{"label": "Email", "required": false, "ident": "forged"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var input struct {
		Content models.FormInputModel `json:"content"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &input))
	assert.Equal(t, "Email", input.Content.Label)
	assert.False(t, input.Content.Required)
	assert.NotEqual(t, "forged", input.Content.Ident)

	w = call(r, http.MethodPost, fmt.Sprintf("/api/admin/nodes/%d/children", form.ID), AddNodeDTO{
		Kind:    models.KindFormInput,
		Content: map[string]interface{}{"required": "no", "label": 5},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = call(r, http.MethodGet, fmt.Sprintf("/api/admin/nodes/%d", form.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tree treeJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tree))
	assert.Len(t, tree.Children, 2)
	require.NotNil(t, tree.Deletable)
	assert.True(t, *tree.Deletable)

	w = call(r, http.MethodGet, fmt.Sprintf("/api/admin/nodes/%d/available-children", form.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(models.KindTextarea))
	assert.NotContains(t, w.Body.String(), string(models.KindSaveDataHandler))
}

func TestHandlerErrorMapping(t *testing.T) {
	r, svc := newTreeRouter(t)
	ctx := context.Background()
	form, err := svc.AddRoot(ctx, models.KindForm, nil)
	require.NoError(t, err)
	button := form.Children[0]

	w := call(r, http.MethodPost, fmt.Sprintf("/api/admin/nodes/%d/children", button.ID), AddNodeDTO{Kind: models.KindFormInput})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = call(r, http.MethodDelete, fmt.Sprintf("/api/admin/nodes/%d", button.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(r, http.MethodPatch, fmt.Sprintf("/api/admin/nodes/%d/content", button.Children[0].ID), map[string]interface{}{"x": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, http.MethodGet, "/api/admin/nodes/424242", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodGet, "/api/admin/nodes/zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodPost, fmt.Sprintf("/api/admin/nodes/%d/freeze", form.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = call(r, http.MethodPost, fmt.Sprintf("/api/admin/nodes/%d/move", button.ID), MoveNodeDTO{Parent: form.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRendererLayout(t *testing.T) {
	svc, _ := newTree(t)
	ctx := context.Background()
	layout, err := svc.AddRoot(ctx, models.KindTwoColumnLayout, nil)
	require.NoError(t, err)
	_, err = svc.AddChild(ctx, layout.Children[0].ID, models.KindTextContent, func(c models.Content) {
		c.(*models.TextContentModel).Content = "Hello <script>alert(1)</script> **world**"
	})
	require.NoError(t, err)

	tree, err := svc.Subtree(ctx, layout.ID)
	require.NoError(t, err)
	html, err := NewRenderer().Render(nil, tree)
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, `class="widgy-layout widgy-two-column"`)
	assert.Contains(t, out, "widgy-bucket-left")
	assert.Contains(t, out, "<strong>world</strong>")
	assert.NotContains(t, out, "<script>")
}

func TestRenderContextWith(t *testing.T) {
	rc := RenderContext{"a": 1}
	child := rc.With(map[string]interface{}{"b": 2})
	assert.Equal(t, 2, child["b"])
	assert.Equal(t, 1, child["a"])
	assert.NotContains(t, rc, "b")
}
