package models

import "time"

// FormSubmissionModel is one submission of a form. FormIdent is kept next to
// FormNodeID so history survives the form node being moved or detached.
type FormSubmissionModel struct {
	ID         uint             `json:"id"         gorm:"primaryKey;autoIncrement"`
	CreatedAt  time.Time        `json:"created"    gorm:"index"`
	FormNodeID uint             `json:"form_node"  gorm:"index;not null"`
	FormIdent  string           `json:"form_ident" gorm:"type:char(36);index;not null"`
	Values     []FormValueModel `json:"values,omitempty" gorm:"foreignKey:SubmissionID"`
}

func (FormSubmissionModel) TableName() string { return "form_builder_formsubmissions" }

// FormValueModel is one answer inside a submission.
type FormValueModel struct {
	ID           uint   `json:"id"          gorm:"primaryKey;autoIncrement"`
	SubmissionID uint   `json:"submission"  gorm:"index;not null"`
	FieldNodeID  *uint  `json:"field_node"  gorm:"index"`
	FieldName    string `json:"field_name"  gorm:"not null"`
	FieldIdent   string `json:"field_ident" gorm:"type:char(36);index;not null"`
	Value        string `json:"value"       gorm:"type:text"`
}

func (FormValueModel) TableName() string { return "form_builder_formvalues" }
