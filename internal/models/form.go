package models

import "gorm.io/gorm"

// FormModel is the root of a submittable form subtree.
type FormModel struct {
	Base
	Name  string `json:"name"  gorm:"not null"`
	Ident string `json:"ident" gorm:"<-:create;type:char(36);uniqueIndex;not null"`

	// SubmissionCount is filled either by a grouped count over many forms or
	// lazily on first read. It is never persisted.
	SubmissionCount *int64 `json:"submission_count,omitempty" gorm:"-"`
}

func (FormModel) TableName() string  { return "form_builder_forms" }
func (*FormModel) Kind() ContentKind { return KindForm }

func (f *FormModel) BeforeCreate(tx *gorm.DB) error {
	if f.Ident == "" {
		f.Ident = NewIdent()
	}
	return f.Base.BeforeCreate(tx)
}

// FormFieldBase holds the columns shared by every field kind.
type FormFieldBase struct {
	Base
	Label    string `json:"label"     gorm:"not null"`
	HelpText string `json:"help_text" gorm:"type:text"`
	Ident    string `json:"ident"     gorm:"<-:create;type:char(36);index;not null"`
	Required bool   `json:"required"`
}

func (f *FormFieldBase) BeforeCreate(tx *gorm.DB) error {
	if f.Ident == "" {
		f.Ident = NewIdent()
	}
	return f.Base.BeforeCreate(tx)
}

// Field exposes the shared field columns.
func (f *FormFieldBase) Field() *FormFieldBase { return f }

const (
	InputTypeText   = "text"
	InputTypeNumber = "number"
)

// FormInputModel is a single-line input.
type FormInputModel struct {
	FormFieldBase
	Type string `json:"type" gorm:"type:varchar(32);default:'text'"`
}

func (FormInputModel) TableName() string  { return "form_builder_forminputs" }
func (*FormInputModel) Kind() ContentKind { return KindFormInput }

// TextareaModel is a multi-line input.
type TextareaModel struct {
	FormFieldBase
}

func (TextareaModel) TableName() string  { return "form_builder_textareas" }
func (*TextareaModel) Kind() ContentKind { return KindTextarea }

// SubmitButtonModel gates the success and response handlers.
type SubmitButtonModel struct {
	Base
	Text string `json:"text" gorm:"default:'submit'"`
}

func (SubmitButtonModel) TableName() string  { return "form_builder_submitbuttons" }
func (*SubmitButtonModel) Kind() ContentKind { return KindSubmitButton }

// SaveDataHandlerModel stores the submission.
type SaveDataHandlerModel struct {
	Base
}

func (SaveDataHandlerModel) TableName() string  { return "form_builder_savedatahandlers" }
func (*SaveDataHandlerModel) Kind() ContentKind { return KindSaveDataHandler }

// EmailSuccessHandlerModel mails a fixed markdown message.
type EmailSuccessHandlerModel struct {
	Base
	To      string `json:"to"`
	Subject string `json:"subject"`
	Content string `json:"content" gorm:"type:longtext"`
}

func (EmailSuccessHandlerModel) TableName() string  { return "form_builder_emailsuccesshandlers" }
func (*EmailSuccessHandlerModel) Kind() ContentKind { return KindEmailSuccessHandler }

// RedirectResponseHandlerModel answers a submission with a redirect.
type RedirectResponseHandlerModel struct {
	Base
	URL string `json:"url" gorm:"type:varchar(1024)"`
}

func (RedirectResponseHandlerModel) TableName() string {
	return "form_builder_redirectresponsehandlers"
}
func (*RedirectResponseHandlerModel) Kind() ContentKind { return KindRedirectResponseHandler }

// MessageResponseHandlerModel answers a submission with a rendered message.
type MessageResponseHandlerModel struct {
	Base
	Content string `json:"content" gorm:"type:longtext"`
}

func (MessageResponseHandlerModel) TableName() string  { return "form_builder_messageresponsehandlers" }
func (*MessageResponseHandlerModel) Kind() ContentKind { return KindMessageResponseHandler }
