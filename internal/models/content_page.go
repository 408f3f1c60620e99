package models

// ContentPageModel is a page whose body is a widget tree.
type ContentPageModel struct {
	Base
	Title      string `json:"title"       gorm:"not null"`
	Slug       string `json:"slug"        gorm:"uniqueIndex;not null"`
	RootNodeID *uint  `json:"root_node"   gorm:"index"`
}

func (ContentPageModel) TableName() string { return "page_builder_contentpages" }
