package models

import "time"

// NodeModel is a position in the widget tree. The tree is stored as a
// materialised path: depth-first document order is ORDER BY path.
type NodeModel struct {
	ID          uint        `json:"id"           gorm:"primaryKey;autoIncrement"`
	Path        string      `json:"path"         gorm:"type:varchar(255);index;not null"`
	Depth       int         `json:"depth"        gorm:"not null"`
	NumChild    int         `json:"numchild"     gorm:"column:numchild;default:0"`
	ContentType ContentKind `json:"content_type" gorm:"type:varchar(64);index;not null"`
	ContentID   string      `json:"content_id"   gorm:"type:char(36);index;not null"`
	IsFrozen    bool        `json:"is_frozen"    gorm:"default:false"`
	CreatedAt   time.Time   `json:"created"`
}

func (NodeModel) TableName() string { return "widgy_nodes" }
