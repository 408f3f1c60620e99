package formbuilder

import (
	"context"
	"testing"

	"github.com/mx-space/widgy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntitledFormName(t *testing.T) {
	assert.Equal(t, "Untitled form 1", UntitledFormName(nil))
	assert.Equal(t, "Untitled form 3", UntitledFormName([]string{"Untitled form 1", "Contact", "Untitled form 7"}))
	assert.Equal(t, "Untitled form 1", UntitledFormName([]string{"Untitled form"}))
}

func TestNewFormsAreNamed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := func() string {
		n, err := f.tree.AddRoot(ctx, models.KindForm, nil)
		require.NoError(t, err)
		return n.Content.(*models.FormModel).Name
	}

	assert.Equal(t, "Untitled form 1", name())
	f.newForm(t, "Contact")
	assert.Equal(t, "Untitled form 2", name())

	third, err := f.tree.AddRoot(ctx, models.KindForm, nil)
	require.NoError(t, err)
	assert.Equal(t, "Untitled form 3", third.Content.(*models.FormModel).Name)

	// Frozen forms are not counted.
	require.NoError(t, f.tree.Freeze(ctx, third.ID))
	assert.Equal(t, "Untitled form 3", name())
}
