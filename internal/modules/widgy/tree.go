package widgy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateHook runs inside the mutation transaction before a content row is inserted.
type CreateHook func(tx *gorm.DB, c models.Content) error

// DeleteHook runs inside the mutation transaction before nodes are removed.
type DeleteHook func(tx *gorm.DB, removed []*Node) error

// Service owns every structural mutation of the widget tree. Each public
// method runs in one transaction and evaluates the validity rules against
// the tree as read inside that transaction.
type Service struct {
	db           *gorm.DB
	logger       *zap.Logger
	beforeCreate map[models.ContentKind][]CreateHook
	beforeDelete []DeleteHook
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger, beforeCreate: map[models.ContentKind][]CreateHook{}}
}

// WithDB returns a copy of the service bound to db, typically an open transaction.
func (s *Service) WithDB(db *gorm.DB) *Service {
	cp := *s
	cp.db = db
	return &cp
}

// BeforeCreate registers a hook for contents of kind.
func (s *Service) BeforeCreate(kind models.ContentKind, hook CreateHook) {
	s.beforeCreate[kind] = append(s.beforeCreate[kind], hook)
}

// BeforeDelete registers a hook called with every node about to be removed.
func (s *Service) BeforeDelete(hook DeleteHook) {
	s.beforeDelete = append(s.beforeDelete, hook)
}

func (s *Service) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Get loads a single node with its content.
func (s *Service) Get(ctx context.Context, id uint) (*Node, error) {
	return loadNode(s.db.WithContext(ctx), id)
}

// Subtree loads the node and all of its descendants, linked as a tree.
func (s *Service) Subtree(ctx context.Context, id uint) (*Node, error) {
	db := s.db.WithContext(ctx)
	n, err := loadNode(db, id)
	if err != nil {
		return nil, err
	}
	return loadSubtree(db, n)
}

// OfKind pages through the nodes holding content of kind, in creation order.
func (s *Service) OfKind(ctx context.Context, kind models.ContentKind, offset, limit int) ([]*Node, int64, error) {
	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.NodeModel{}).Where("content_type = ?", kind).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.NodeModel
	if err := db.Where("content_type = ?", kind).Order("id ASC").
		Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	nodes, err := withContents(db, rows)
	return nodes, total, err
}

// Ancestors returns the ancestors of a node, root first.
func (s *Service) Ancestors(ctx context.Context, n *Node) ([]*Node, error) {
	return loadByPaths(s.db.WithContext(ctx), ancestorPaths(n.Path))
}

// Root returns the root of the tree n belongs to.
func (s *Service) Root(ctx context.Context, n *Node) (*Node, error) {
	if n.IsRoot() {
		return n, nil
	}
	anc, err := s.Ancestors(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(anc) == 0 {
		return nil, ErrNodeNotFound
	}
	return anc[0], nil
}

// Placement loads the snapshot the validity rules need for a parent.
func (s *Service) Placement(ctx context.Context, parentID uint) (Placement, error) {
	db := s.db.WithContext(ctx)
	parent, err := loadNode(db, parentID)
	if err != nil {
		return Placement{}, err
	}
	return loadPlacement(db, parent)
}

// AvailableChildren lists the shelf classes the parent would admit.
func (s *Service) AvailableChildren(ctx context.Context, parentID uint) ([]*Class, error) {
	p, err := s.Placement(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return AvailableChildren(p), nil
}

// AddRoot creates a new tree whose root holds a fresh content of kind.
func (s *Service) AddRoot(ctx context.Context, kind models.ContentKind, setup func(models.Content)) (*Node, error) {
	var n *Node
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var err error
		n, err = s.addNode(tx, nil, kind, setup)
		return err
	})
	return n, err
}

// AddChild appends a fresh content of kind as the last child of parentID.
func (s *Service) AddChild(ctx context.Context, parentID uint, kind models.ContentKind, setup func(models.Content)) (*Node, error) {
	var n *Node
	err := s.tx(ctx, func(tx *gorm.DB) error {
		parent, err := loadNode(tx, parentID)
		if err != nil {
			return err
		}
		n, err = s.addNode(tx, parent, kind, setup)
		return err
	})
	if errors.Is(err, ErrNotAllowed) {
		metrics.TreeRejections.WithLabelValues("add").Inc()
	}
	return n, err
}

func (s *Service) addNode(tx *gorm.DB, parent *Node, kind models.ContentKind, setup func(models.Content)) (*Node, error) {
	cls, ok := Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	var path string
	if parent != nil {
		if parent.IsFrozen {
			return nil, ErrFrozen
		}
		p, err := loadPlacement(tx, parent)
		if err != nil {
			return nil, err
		}
		if !Admits(p, kind, nil) {
			return nil, fmt.Errorf("%w: %s under %s", ErrNotAllowed, kind, parent.Kind())
		}
		pos := 1
		if len(p.Children) > 0 {
			pos = lastStep(p.Children[len(p.Children)-1].Path) + 1
		}
		if path, err = childPath(parent.Path, pos); err != nil {
			return nil, err
		}
	} else {
		if cls.Category.IsFormElement() {
			return nil, fmt.Errorf("%w: %s cannot be a root", ErrNotAllowed, kind)
		}
		pos, err := lastRootStep(tx)
		if err != nil {
			return nil, err
		}
		if path, err = childPath("", pos+1); err != nil {
			return nil, err
		}
	}

	content := cls.New()
	if setup != nil {
		setup(content)
	}
	for _, hook := range s.beforeCreate[kind] {
		if err := hook(tx, content); err != nil {
			return nil, err
		}
	}
	if err := tx.Create(content).Error; err != nil {
		return nil, err
	}

	row := models.NodeModel{
		Path:        path,
		Depth:       depthOf(path),
		ContentType: kind,
		ContentID:   content.ContentID(),
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	if parent != nil {
		if err := tx.Model(&models.NodeModel{}).Where("id = ?", parent.ID).
			UpdateColumn("numchild", gorm.Expr("numchild + 1")).Error; err != nil {
			return nil, err
		}
		parent.NumChild++
	}

	n := &Node{NodeModel: row, Content: content}
	for _, dc := range cls.DefaultChildren {
		child, err := s.addNode(tx, n, dc.Kind, dc.Init)
		if err != nil {
			return nil, fmt.Errorf("default child %s: %w", dc.Kind, err)
		}
		n.Children = append(n.Children, child)
	}
	s.logger.Debug("node added",
		zap.Uint("id", n.ID),
		zap.String("kind", string(kind)),
		zap.String("path", path),
	)
	return n, nil
}

// Move places node id under parentID, in front of the sibling before (0 appends).
func (s *Service) Move(ctx context.Context, id, parentID, before uint) error {
	err := s.tx(ctx, func(tx *gorm.DB) error {
		n, err := loadNode(tx, id)
		if err != nil {
			return err
		}
		target, err := loadNode(tx, parentID)
		if err != nil {
			return err
		}
		if n.IsFrozen || target.IsFrozen {
			return ErrFrozen
		}
		if cls := n.Class(); cls == nil || !cls.Draggable {
			return fmt.Errorf("%w: %s cannot be moved", ErrNotAllowed, n.Kind())
		}
		if target.ID == n.ID || isDescendantPath(target.Path, n.Path) {
			return fmt.Errorf("%w: cannot move a node into itself", ErrNotAllowed)
		}
		p, err := loadPlacement(tx, target)
		if err != nil {
			return err
		}
		if !Admits(p, n.Kind(), n) {
			return fmt.Errorf("%w: %s under %s", ErrNotAllowed, n.Kind(), target.Kind())
		}
		carried, err := loadSubtree(tx, n)
		if err != nil {
			return err
		}
		if !SubtreeFits(p, carried) {
			return fmt.Errorf("%w: contents of %d are not valid under %s", ErrNotAllowed, n.ID, target.Kind())
		}

		order := make([]*Node, 0, len(p.Children)+1)
		inserted := false
		for _, c := range p.Children {
			if c.ID == n.ID {
				continue
			}
			if c.ID == before {
				order = append(order, n)
				inserted = true
			}
			order = append(order, c)
		}
		if !inserted {
			if before != 0 {
				return fmt.Errorf("%w: %d is not a child of %d", ErrNodeNotFound, before, target.ID)
			}
			order = append(order, n)
		}

		oldParent := parentPath(n.Path)
		if oldParent != target.Path {
			if err := adjustNumChild(tx, oldParent, -1); err != nil {
				return err
			}
			if err := adjustNumChild(tx, target.Path, 1); err != nil {
				return err
			}
		}

		remap := make(map[string]string, len(order))
		for i, c := range order {
			np, err := childPath(target.Path, i+1)
			if err != nil {
				return err
			}
			remap[c.Path] = np
		}
		own, err := loadRows(tx, n.Path)
		if err != nil {
			return err
		}
		siblings, err := loadDescendantRows(tx, target.Path)
		if err != nil {
			return err
		}
		moved := n.Path
		if err := rewritePaths(tx, mergeRows(own, siblings), func(path string) string {
			if path == moved || isDescendantPath(path, moved) {
				return remap[moved] + path[len(moved):]
			}
			if len(path) < len(target.Path)+stepLen {
				return path
			}
			prefix := path[:len(target.Path)+stepLen]
			if np, ok := remap[prefix]; ok {
				return np + path[len(prefix):]
			}
			return path
		}); err != nil {
			return err
		}
		s.logger.Info("node moved", zap.Uint("id", n.ID), zap.Uint("parent", target.ID))
		return nil
	})
	if errors.Is(err, ErrNotAllowed) {
		metrics.TreeRejections.WithLabelValues("move").Inc()
	}
	return err
}

// Detach takes the node and its subtree out of their tree and makes it the last root.
func (s *Service) Detach(ctx context.Context, id uint) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		n, err := loadNode(tx, id)
		if err != nil {
			return err
		}
		if n.IsFrozen {
			return ErrFrozen
		}
		return s.detach(tx, n)
	})
}

func (s *Service) detach(tx *gorm.DB, n *Node) error {
	if n.IsRoot() {
		return nil
	}
	pos, err := lastRootStep(tx)
	if err != nil {
		return err
	}
	root, err := childPath("", pos+1)
	if err != nil {
		return err
	}
	rows, err := loadRows(tx, n.Path)
	if err != nil {
		return err
	}
	oldPath := n.Path
	if err := rewritePaths(tx, rows, func(path string) string {
		return root + path[len(oldPath):]
	}); err != nil {
		return err
	}
	if err := adjustNumChild(tx, parentPath(oldPath), -1); err != nil {
		return err
	}
	n.Path, n.Depth = root, 1
	s.logger.Info("node detached", zap.Uint("id", n.ID), zap.String("kind", string(n.Kind())))
	return nil
}

// Deletable reports whether the node may be removed by an editor.
func (s *Service) Deletable(ctx context.Context, id uint) (bool, error) {
	db := s.db.WithContext(ctx)
	n, err := loadNode(db, id)
	if err != nil {
		return false, err
	}
	return deletable(db, n)
}

func deletable(tx *gorm.DB, n *Node) (bool, error) {
	cls := n.Class()
	if cls == nil || !cls.Deletable {
		return false, nil
	}
	if !n.Is(models.KindSubmitButton) {
		return true, nil
	}
	anc, err := loadByPaths(tx, ancestorPaths(n.Path))
	if err != nil {
		return false, err
	}
	form := ParentForm(n, anc)
	tree, err := loadSubtree(tx, form)
	if err != nil {
		return false, err
	}
	buttons := 0
	for _, d := range tree.DepthFirst() {
		if d.Is(models.KindSubmitButton) {
			buttons++
		}
	}
	return buttons > 1, nil
}

// Delete removes a node and its subtree. Forms are never removed: a form, or
// a form nested in the deleted subtree, is detached to become a new root.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		n, err := loadNode(tx, id)
		if err != nil {
			return err
		}
		tree, err := loadSubtree(tx, n)
		if err != nil {
			return err
		}
		for _, d := range tree.DepthFirst() {
			if d.IsFrozen {
				return ErrFrozen
			}
		}
		ok, err := deletable(tx, n)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotDeletable
		}
		if n.Is(models.KindForm) {
			return s.detach(tx, n)
		}

		for _, f := range topmostForms(tree) {
			if err := s.detach(tx, f); err != nil {
				return err
			}
		}
		if tree, err = loadSubtree(tx, n); err != nil {
			return err
		}
		removed := tree.DepthFirst()
		for _, hook := range s.beforeDelete {
			if err := hook(tx, removed); err != nil {
				return err
			}
		}
		ids := make([]uint, 0, len(removed))
		for _, d := range removed {
			ids = append(ids, d.ID)
			if d.Content != nil {
				if err := tx.Delete(d.Content).Error; err != nil {
					return err
				}
			}
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.NodeModel{}).Error; err != nil {
			return err
		}
		if !n.IsRoot() {
			if err := adjustNumChild(tx, parentPath(n.Path), -1); err != nil {
				return err
			}
		}
		s.logger.Info("node deleted", zap.Uint("id", n.ID), zap.Int("removed", len(removed)))
		return nil
	})
}

func topmostForms(tree *Node) []*Node {
	var out []*Node
	for _, c := range tree.Children {
		if c.Is(models.KindForm) {
			out = append(out, c)
			continue
		}
		out = append(out, topmostForms(c)...)
	}
	return out
}

// Freeze marks the node and its subtree immutable.
func (s *Service) Freeze(ctx context.Context, id uint) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		n, err := loadNode(tx, id)
		if err != nil {
			return err
		}
		return tx.Model(&models.NodeModel{}).
			Where("path LIKE ?", n.Path+"%").
			UpdateColumn("is_frozen", true).Error
	})
}

// UpdateContent applies an editor patch restricted to the class's editable fields.
func (s *Service) UpdateContent(ctx context.Context, id uint, patch map[string]interface{}) (*Node, error) {
	var n *Node
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var err error
		if n, err = loadNode(tx, id); err != nil {
			return err
		}
		if n.IsFrozen {
			return ErrFrozen
		}
		cls := n.Class()
		if cls == nil || !cls.Editable {
			return ErrNotEditable
		}
		updates := FilterFields(cls, patch)
		if len(updates) == 0 {
			return nil
		}
		if err := checkContentPatch(n.Kind(), updates); err != nil {
			return err
		}
		patched := cls.New()
		if err := DecodeContent(patched, updates); err != nil {
			return err
		}
		columns := make([]string, 0, len(updates))
		for k := range updates {
			columns = append(columns, k)
		}
		sort.Strings(columns)
		if err := tx.Model(n.Content).Select(columns).Updates(patched).Error; err != nil {
			return err
		}
		return loadContent(tx, n)
	})
	return n, err
}

// FilterFields keeps only the keys the class allows editors to set.
func FilterFields(cls *Class, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(cls.Fields))
	for _, f := range cls.Fields {
		if v, ok := patch[f]; ok {
			out[f] = v
		}
	}
	return out
}

// DecodeContent copies fields into c, failing with ErrInvalidContent when a
// value does not have the type of the column it targets.
func DecodeContent(c models.Content, fields map[string]interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return nil
}

func checkContentPatch(kind models.ContentKind, updates map[string]interface{}) error {
	if kind != models.KindFormInput {
		return nil
	}
	if v, ok := updates["type"]; ok {
		switch v {
		case models.InputTypeText, models.InputTypeNumber:
		default:
			return fmt.Errorf("%w: unsupported input type %v", ErrInvalidContent, v)
		}
	}
	return nil
}

func loadNode(tx *gorm.DB, id uint) (*Node, error) {
	var row models.NodeModel
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}
	n := &Node{NodeModel: row}
	if err := loadContent(tx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func loadContent(tx *gorm.DB, n *Node) error {
	cls, ok := Lookup(n.ContentType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, n.ContentType)
	}
	c := cls.New()
	if err := tx.First(c, "id = ?", n.ContentID).Error; err != nil {
		return fmt.Errorf("load %s content of node %d: %w", n.ContentType, n.ID, err)
	}
	n.Content = c
	return nil
}

func withContents(tx *gorm.DB, rows []models.NodeModel) ([]*Node, error) {
	out := make([]*Node, 0, len(rows))
	for _, r := range rows {
		n := &Node{NodeModel: r}
		if err := loadContent(tx, n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func loadByPaths(tx *gorm.DB, paths []string) ([]*Node, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	var rows []models.NodeModel
	if err := tx.Where("path IN ?", paths).Order("path ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return withContents(tx, rows)
}

func loadSubtree(tx *gorm.DB, n *Node) (*Node, error) {
	rows, err := loadRows(tx, n.Path)
	if err != nil {
		return nil, err
	}
	nodes, err := withContents(tx, rows)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNodeNotFound
	}
	return buildTree(nodes), nil
}

func loadPlacement(tx *gorm.DB, parent *Node) (Placement, error) {
	anc, err := loadByPaths(tx, ancestorPaths(parent.Path))
	if err != nil {
		return Placement{}, err
	}
	var rows []models.NodeModel
	if err := tx.Where("path LIKE ? AND depth = ?", parent.Path+"%", parent.Depth+1).
		Order("path ASC").Find(&rows).Error; err != nil {
		return Placement{}, err
	}
	children, err := withContents(tx, rows)
	if err != nil {
		return Placement{}, err
	}
	return Placement{Parent: parent, Ancestors: anc, Children: children}, nil
}

// loadRows returns the node at path and all of its descendants, in path order.
func loadRows(tx *gorm.DB, path string) ([]models.NodeModel, error) {
	var rows []models.NodeModel
	err := tx.Where("path LIKE ?", path+"%").Order("path ASC").Find(&rows).Error
	return rows, err
}

func loadDescendantRows(tx *gorm.DB, path string) ([]models.NodeModel, error) {
	var rows []models.NodeModel
	err := tx.Where("path LIKE ? AND depth > ?", path+"%", depthOf(path)).Order("path ASC").Find(&rows).Error
	return rows, err
}

func mergeRows(a, b []models.NodeModel) []models.NodeModel {
	seen := make(map[uint]bool, len(a))
	for _, r := range a {
		seen[r.ID] = true
	}
	for _, r := range b {
		if !seen[r.ID] {
			a = append(a, r)
		}
	}
	return a
}

// rewritePaths stores the mapped path of every row whose path changes. All
// new paths are computed from the rows as loaded, so write order is irrelevant.
func rewritePaths(tx *gorm.DB, rows []models.NodeModel, mapPath func(string) string) error {
	for _, r := range rows {
		np := mapPath(r.Path)
		if np == r.Path {
			continue
		}
		if err := tx.Model(&models.NodeModel{}).Where("id = ?", r.ID).
			Updates(map[string]interface{}{"path": np, "depth": depthOf(np)}).Error; err != nil {
			return err
		}
	}
	return nil
}

func adjustNumChild(tx *gorm.DB, path string, delta int) error {
	if path == "" {
		return nil
	}
	return tx.Model(&models.NodeModel{}).Where("path = ?", path).
		UpdateColumn("numchild", gorm.Expr("numchild + ?", delta)).Error
}

func lastRootStep(tx *gorm.DB) (int, error) {
	var rows []models.NodeModel
	if err := tx.Where("depth = ?", 1).Order("path DESC").Limit(1).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return lastStep(rows[0].Path), nil
}
