package widgy

import (
	"errors"

	"github.com/mx-space/widgy/internal/models"
)

var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrNotAllowed     = errors.New("content is not allowed here")
	ErrFrozen         = errors.New("node is frozen")
	ErrNotDeletable   = errors.New("node cannot be deleted")
	ErrNotEditable    = errors.New("content is not editable")
	ErrUnknownKind    = errors.New("unknown content kind")
	ErrInvalidContent = errors.New("invalid content")
)

type AddNodeDTO struct {
	Kind    models.ContentKind     `json:"kind"    binding:"required"`
	Content map[string]interface{} `json:"content"`
}

type MoveNodeDTO struct {
	Parent uint `json:"parent" binding:"required"`
	// Before is the sibling the node is placed in front of; 0 appends.
	Before uint `json:"before"`
}

type nodeResponse struct {
	ID          uint               `json:"id"`
	ContentType models.ContentKind `json:"content_type"`
	Depth       int                `json:"depth"`
	IsFrozen    bool               `json:"is_frozen"`
	Deletable   *bool              `json:"deletable,omitempty"`
	Content     models.Content     `json:"content"`
	Children    []nodeResponse     `json:"children"`
}

func toResponse(n *Node) nodeResponse {
	children := make([]nodeResponse, len(n.Children))
	for i, c := range n.Children {
		children[i] = toResponse(c)
	}
	return nodeResponse{
		ID: n.ID, ContentType: n.ContentType, Depth: n.Depth,
		IsFrozen: n.IsFrozen, Content: n.Content, Children: children,
	}
}
