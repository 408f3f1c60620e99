package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is the base model for content rows and pages.
// ID is a UUID string so content rows can be created before their node exists.
type Base struct {
	ID        string         `json:"id"       gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time      `json:"created"`
	UpdatedAt time.Time      `json:"modified"`
	DeletedAt gorm.DeletedAt `json:"-"        gorm:"index"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// ContentID returns the primary key of the content row.
func (b *Base) ContentID() string { return b.ID }

// NewIdent returns a fresh durable identifier for forms and form fields.
func NewIdent() string { return uuid.New().String() }
