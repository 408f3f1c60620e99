package formbuilder

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/pagination"
	"github.com/mx-space/widgy/internal/pkg/response"
	"go.uber.org/zap"
)

type Handler struct {
	svc      *Service
	renderer *widgy.Renderer
	logger   *zap.Logger
}

func NewHandler(svc *Service, renderer *widgy.Renderer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, renderer: renderer, logger: logger}
}

// RegisterRoutes mounts the admin endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/forms", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/submissions", h.submissions)
	g.GET("/:id/export", h.export)
}

// RegisterPublic mounts the submit endpoint behind mw.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	handlers := append(append([]gin.HandlerFunc{}, mw...), h.submit)
	rg.POST("/forms/:id/submit", handlers...)
}

func (h *Handler) list(c *gin.Context) {
	forms, page, err := h.svc.ListForms(c.Request.Context(), pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, forms, page)
}

type formDetail struct {
	Form   interface{}       `json:"form"`
	Fields []FieldDefinition `json:"fields"`
}

func (h *Handler) get(c *gin.Context) {
	id, ok := formID(c)
	if !ok {
		return
	}
	form, err := h.svc.LoadForm(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, formDetail{Form: form, Fields: BuildSchema(form).Fields()})
}

func (h *Handler) submissions(c *gin.Context) {
	id, ok := formID(c)
	if !ok {
		return
	}
	page, meta, err := h.svc.Submissions(c.Request.Context(), id, pagination.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Paged(c, page, meta)
}

func (h *Handler) export(c *gin.Context) {
	id, ok := formID(c)
	if !ok {
		return
	}
	form, subs, names, err := h.svc.Export(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="form-%s.csv"`, form.Ident))
	c.Status(http.StatusOK)
	if err := WriteCSV(c.Writer, subs, names); err != nil {
		h.logger.Error("csv export failed", zap.Uint("form_node", id), zap.Error(err))
	}
}

func (h *Handler) submit(c *gin.Context) {
	id, ok := formID(c)
	if !ok {
		return
	}
	posted, err := postedValues(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	out, err := h.svc.Handle(ctx, c.Request, id, posted)
	if err != nil {
		writeError(c, err)
		return
	}

	if !out.Bound.Valid() {
		if wantsJSON(c) {
			response.Invalid(c, out.Bound.ErrorsByLabel())
			return
		}
		h.rerender(c, out)
		return
	}

	if wantsJSON(c) {
		ids := make([]uint, 0, len(out.Stored))
		for _, s := range out.Stored {
			ids = append(ids, s.ID)
		}
		response.OK(c, gin.H{"submissions": ids, "response": out.Response})
		return
	}
	resp := out.Response
	switch {
	case resp == nil:
		c.Redirect(http.StatusSeeOther, backURL(c))
	case resp.Location != "":
		c.Redirect(resp.Status, resp.Location)
	default:
		doc, err := h.renderer.Document(formName(out.Form), resp.HTML)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		response.HTML(c, resp.Status, doc)
	}
}

// rerender shows the page holding the form again with the bound instance, so
// the posted values and their errors are displayed in place.
func (h *Handler) rerender(c *gin.Context, out *Outcome) {
	page, err := h.svc.Page(c.Request.Context(), out.Form)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	rc := widgy.RenderContext{InstanceKey(out.Form.ID): out.Bound}
	body, err := h.renderer.Render(rc, page)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	doc, err := h.renderer.Document(formName(out.Form), body)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.HTML(c, http.StatusBadRequest, doc)
}

func formName(n *widgy.Node) string {
	if f, ok := n.Content.(*models.FormModel); ok {
		return f.Name
	}
	return ""
}

func postedValues(c *gin.Context) (url.Values, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		v := url.Values{}
		for k, raw := range body {
			switch x := raw.(type) {
			case nil:
			case string:
				v.Set(k, x)
			default:
				v.Set(k, fmt.Sprint(x))
			}
		}
		return v, nil
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	return c.Request.PostForm, nil
}

func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "application/json") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

func backURL(c *gin.Context) string {
	ref := c.GetHeader("Referer")
	if ref == "" {
		return "/"
	}
	return ref
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotAForm) {
		response.NotFoundMsg(c, err.Error())
		return
	}
	widgy.WriteError(c, err)
}

func formID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid form id")
		return 0, false
	}
	return uint(id), true
}
