package models

// ContentKind tags the payload type a node owns.
type ContentKind string

const (
	KindForm                    ContentKind = "form_builder.form"
	KindFormInput               ContentKind = "form_builder.forminput"
	KindTextarea                ContentKind = "form_builder.textarea"
	KindSubmitButton            ContentKind = "form_builder.submitbutton"
	KindSaveDataHandler         ContentKind = "form_builder.savedatahandler"
	KindEmailSuccessHandler     ContentKind = "form_builder.emailsuccesshandler"
	KindRedirectResponseHandler ContentKind = "form_builder.redirectresponsehandler"
	KindMessageResponseHandler  ContentKind = "form_builder.messageresponsehandler"

	KindTextContent     ContentKind = "page_builder.textcontent"
	KindBucket          ContentKind = "page_builder.bucket"
	KindTwoColumnLayout ContentKind = "page_builder.twocolumnlayout"
)

// Content is the payload of a node.
type Content interface {
	Kind() ContentKind
	ContentID() string
}

// TextContentModel is a block of markdown.
type TextContentModel struct {
	Base
	Content string `json:"content" gorm:"type:longtext"`
}

func (TextContentModel) TableName() string  { return "page_builder_textcontents" }
func (*TextContentModel) Kind() ContentKind { return KindTextContent }

// BucketModel is a named container inside a layout.
type BucketModel struct {
	Base
	Title string `json:"title"`
}

func (BucketModel) TableName() string  { return "page_builder_buckets" }
func (*BucketModel) Kind() ContentKind { return KindBucket }

// TwoColumnLayoutModel owns a left and a right bucket.
type TwoColumnLayoutModel struct {
	Base
}

func (TwoColumnLayoutModel) TableName() string  { return "page_builder_twocolumnlayouts" }
func (*TwoColumnLayoutModel) Kind() ContentKind { return KindTwoColumnLayout }
