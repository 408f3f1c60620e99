package formbuilder

import (
	"fmt"
	"strings"

	"github.com/mx-space/widgy/internal/models"
	"gorm.io/gorm"
)

const untitledPrefix = "Untitled form "

// UntitledFormName picks the default name of a new form from the names of
// the existing non-frozen forms.
func UntitledFormName(names []string) string {
	n := 1
	for _, name := range names {
		if strings.HasPrefix(name, untitledPrefix) {
			n++
		}
	}
	return fmt.Sprintf("%s%d", untitledPrefix, n)
}

// liveFormNames lists the names of forms whose node is not frozen.
func liveFormNames(tx *gorm.DB) ([]string, error) {
	var names []string
	err := tx.Model(&models.FormModel{}).
		Joins("LEFT JOIN widgy_nodes n ON n.content_type = ? AND n.content_id = form_builder_forms.id", models.KindForm).
		Where("n.is_frozen IS NULL OR n.is_frozen = ?", false).
		Pluck("form_builder_forms.name", &names).Error
	return names, err
}

func nameUntitledForm(tx *gorm.DB, c models.Content) error {
	f, ok := c.(*models.FormModel)
	if !ok || strings.TrimSpace(f.Name) != "" {
		return nil
	}
	names, err := liveFormNames(tx)
	if err != nil {
		return err
	}
	f.Name = UntitledFormName(names)
	return nil
}
