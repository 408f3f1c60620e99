package pagebuilder

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/pagination"
	"github.com/mx-space/widgy/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrSlugExists  = errors.New("slug already exists")
	ErrInvalidSlug = errors.New("slug may only contain lowercase letters, digits and hyphens")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type CreatePageDTO struct {
	Slug  string `json:"slug"  binding:"required,max=255"`
	Title string `json:"title" binding:"required,max=255"`
	// Left and Right seed the layout's buckets with text blocks.
	Left  []string `json:"left"`
	Right []string `json:"right"`
}

type UpdatePageDTO struct {
	Slug  *string `json:"slug"  binding:"omitempty,max=255"`
	Title *string `json:"title" binding:"omitempty,max=255"`
}

type pageResponse struct {
	ID       string    `json:"id"`
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	RootNode *uint     `json:"root_node"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

func toResponse(p *models.ContentPageModel) pageResponse {
	return pageResponse{
		ID: p.ID, Slug: p.Slug, Title: p.Title, RootNode: p.RootNodeID,
		Created: p.CreatedAt, Modified: p.UpdatedAt,
	}
}

type Service struct {
	db       *gorm.DB
	tree     *widgy.Service
	renderer *widgy.Renderer
	logger   *zap.Logger
}

func NewService(db *gorm.DB, tree *widgy.Service, renderer *widgy.Renderer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, tree: tree, renderer: renderer, logger: logger}
}

func (s *Service) List(ctx context.Context, q pagination.Query) ([]models.ContentPageModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.ContentPageModel{}).Order("created_at ASC")
	var pages []models.ContentPageModel
	pag, err := pagination.Paginate(tx, q, &pages)
	return pages, pag, err
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.ContentPageModel, error) {
	var p models.ContentPageModel
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.ContentPageModel, error) {
	var p models.ContentPageModel
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Create stores a page whose root widget is a fresh two column layout. The
// page row and its tree are written in one transaction.
func (s *Service) Create(ctx context.Context, dto *CreatePageDTO) (*models.ContentPageModel, error) {
	if !slugPattern.MatchString(dto.Slug) {
		return nil, ErrInvalidSlug
	}
	var p models.ContentPageModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ContentPageModel{}).Where("slug = ?", dto.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrSlugExists
		}
		tree := s.tree.WithDB(tx)
		root, err := tree.AddRoot(ctx, models.KindTwoColumnLayout, nil)
		if err != nil {
			return err
		}
		for i, texts := range [][]string{dto.Left, dto.Right} {
			if i >= len(root.Children) {
				break
			}
			bucket := root.Children[i]
			for _, text := range texts {
				body := text
				if _, err := tree.AddChild(ctx, bucket.ID, models.KindTextContent, func(c models.Content) {
					c.(*models.TextContentModel).Content = body
				}); err != nil {
					return err
				}
			}
		}
		p = models.ContentPageModel{Title: dto.Title, Slug: dto.Slug, RootNodeID: &root.ID}
		return tx.Create(&p).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("page created", zap.String("slug", p.Slug), zap.Uint("root", *p.RootNodeID))
	return &p, nil
}

func (s *Service) Update(ctx context.Context, id string, dto *UpdatePageDTO) (*models.ContentPageModel, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	updates := map[string]interface{}{}
	if dto.Slug != nil && *dto.Slug != p.Slug {
		if !slugPattern.MatchString(*dto.Slug) {
			return nil, ErrInvalidSlug
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.ContentPageModel{}).
			Where("slug = ? AND id <> ?", *dto.Slug, p.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrSlugExists
		}
		updates["slug"] = *dto.Slug
	}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if len(updates) == 0 {
		return p, nil
	}
	if err := s.db.WithContext(ctx).Model(p).Updates(updates).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the page. Its widget tree stays as a detached root so the
// forms inside keep their submissions attributable.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Unscoped().Delete(&models.ContentPageModel{}, "id = ?", id).Error
}

// Render renders the page at slug as a full HTML document. found is false
// when no page has the slug.
func (s *Service) Render(ctx context.Context, slug string) (doc template.HTML, found bool, err error) {
	p, err := s.GetBySlug(ctx, slug)
	if err != nil || p == nil {
		return "", false, err
	}
	var body template.HTML
	if p.RootNodeID != nil {
		root, err := s.tree.Subtree(ctx, *p.RootNodeID)
		if err != nil {
			return "", false, err
		}
		if body, err = s.renderer.Render(widgy.RenderContext{}, root); err != nil {
			return "", false, err
		}
	}
	doc, err = s.renderer.Document(p.Title, body)
	return doc, true, err
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the admin endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/pages", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

// RegisterPublic mounts the rendered pages.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/pages/:slug", h.render)
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	pages, pag, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	items := make([]pageResponse, len(pages))
	for i := range pages {
		items[i] = toResponse(&pages[i])
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toResponse(p))
}

func (h *Handler) create(c *gin.Context) {
	var dto CreatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, toResponse(p))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Update(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toResponse(p))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) render(c *gin.Context) {
	doc, found, err := h.svc.Render(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !found {
		response.NotFound(c)
		return
	}
	response.HTML(c, http.StatusOK, doc)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSlugExists):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidSlug):
		response.BadRequest(c, err.Error())
	default:
		widgy.WriteError(c, err)
	}
}
