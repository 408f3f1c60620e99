package formbuilder

import (
	"context"
	"fmt"

	"github.com/mx-space/widgy/internal/models"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Submitter persists validated submissions.
type Submitter struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewSubmitter(db *gorm.DB, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{db: db, logger: logger}
}

// Submit stores one submission of form and one value per field of the form.
// data must already be validated against the form's schema. Either every row
// is committed or none is.
func (s *Submitter) Submit(ctx context.Context, form *widgy.Node, data map[string]string) (*models.FormSubmissionModel, error) {
	fm, ok := form.Content.(*models.FormModel)
	if !ok {
		return nil, ErrNotAForm
	}
	fields := GetFields(form)

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	sub := models.FormSubmissionModel{
		FormNodeID: form.ID,
		FormIdent:  fm.Ident,
	}
	if err := tx.Create(&sub).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("create submission: %w", err)
	}
	for _, key := range fields.Keys {
		field := fields.Fields[key].Field()
		nodeID := fields.Nodes[key].ID
		v := models.FormValueModel{
			SubmissionID: sub.ID,
			FieldNodeID:  &nodeID,
			FieldName:    field.Label,
			FieldIdent:   field.Ident,
			Value:        data[key],
		}
		if err := tx.Create(&v).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("create value for field %s: %w", key, err)
		}
		sub.Values = append(sub.Values, v)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	metrics.FormSubmissions.Inc()
	s.logger.Info("form submitted",
		zap.Uint("submission", sub.ID),
		zap.Uint("form_node", form.ID),
		zap.String("form_ident", fm.Ident),
		zap.Int("values", len(sub.Values)),
	)
	return &sub, nil
}
