package widgy

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("", authMW)
	g.GET("/classes", h.classes)

	n := g.Group("/nodes")
	n.POST("", h.addRoot)
	n.GET("/:id", h.get)
	n.POST("/:id/children", h.addChild)
	n.GET("/:id/available-children", h.availableChildren)
	n.POST("/:id/move", h.move)
	n.PATCH("/:id/content", h.updateContent)
	n.POST("/:id/freeze", h.freeze)
	n.DELETE("/:id", h.delete)
}

func (h *Handler) classes(c *gin.Context) {
	response.OK(c, Classes())
}

func (h *Handler) get(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	tree, err := h.svc.Subtree(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	resp := toResponse(tree)
	if d, err := h.svc.Deletable(c.Request.Context(), id); err == nil {
		resp.Deletable = &d
	}
	response.OK(c, resp)
}

func (h *Handler) addRoot(c *gin.Context) {
	var dto AddNodeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	setup, err := initFromMap(dto)
	if err != nil {
		WriteError(c, err)
		return
	}
	n, err := h.svc.AddRoot(c.Request.Context(), dto.Kind, setup)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.Created(c, toResponse(n))
}

func (h *Handler) addChild(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	var dto AddNodeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	setup, err := initFromMap(dto)
	if err != nil {
		WriteError(c, err)
		return
	}
	n, err := h.svc.AddChild(c.Request.Context(), id, dto.Kind, setup)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.Created(c, toResponse(n))
}

func (h *Handler) availableChildren(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	classes, err := h.svc.AvailableChildren(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	if classes == nil {
		classes = []*Class{}
	}
	response.OK(c, classes)
}

func (h *Handler) move(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	var dto MoveNodeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.Move(c.Request.Context(), id, dto.Parent, dto.Before); err != nil {
		WriteError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) updateContent(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n, err := h.svc.UpdateContent(c.Request.Context(), id, patch)
	if err != nil {
		WriteError(c, err)
		return
	}
	response.OK(c, toResponse(n))
}

func (h *Handler) freeze(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	if err := h.svc.Freeze(c.Request.Context(), id); err != nil {
		WriteError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		WriteError(c, err)
		return
	}
	response.NoContent(c)
}

// WriteError maps tree errors onto response envelopes.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNodeNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrNotAllowed), errors.Is(err, ErrInvalidContent), errors.Is(err, ErrUnknownKind):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, ErrFrozen), errors.Is(err, ErrNotDeletable):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotEditable):
		response.ForbiddenMsg(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func nodeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid node id")
		return 0, false
	}
	return uint(id), true
}

// initFromMap copies the editable fields of the request into a new content.
func initFromMap(dto AddNodeDTO) (func(models.Content), error) {
	cls, ok := Lookup(dto.Kind)
	if !ok {
		return nil, ErrUnknownKind
	}
	fields := FilterFields(cls, dto.Content)
	if len(fields) == 0 {
		return nil, nil
	}
	if err := checkContentPatch(dto.Kind, fields); err != nil {
		return nil, err
	}
	if err := DecodeContent(cls.New(), fields); err != nil {
		return nil, err
	}
	return func(c models.Content) {
		// The same fields decoded cleanly into a content of this kind above.
		_ = DecodeContent(c, fields)
	}, nil
}
