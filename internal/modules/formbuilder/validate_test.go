package formbuilder

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindValid(t *testing.T) {
	f := Bind(BuildSchema(contactForm()), url.Values{
		"2": {"  Ada  "},
		"7": {"36"},
	})

	assert.True(t, f.Valid())
	assert.Equal(t, map[string]string{"2": "Ada", "6": "", "7": "36"}, f.Cleaned)
	assert.Equal(t, "  Ada  ", f.Value("2"))
}

func TestBindErrors(t *testing.T) {
	f := Bind(BuildSchema(contactForm()), url.Values{
		"2": {"   "},
		"7": {"thirty"},
	})

	assert.False(t, f.Valid())
	assert.Equal(t, "This field is required.", f.Error("2"))
	assert.Equal(t, "Enter a number.", f.Error("7"))
	assert.Empty(t, f.Error("6"))
	assert.Equal(t, map[string]string{
		"2": "Name: This field is required.",
		"7": "Age: Enter a number.",
	}, f.ErrorsByLabel())
	assert.NotContains(t, f.Cleaned, "2")
}

func TestBindIgnoresUnknownKeys(t *testing.T) {
	f := Bind(BuildSchema(contactForm()), url.Values{
		"2": {"Ada"}, "7": {"1"}, "99": {"smuggled"},
	})
	assert.True(t, f.Valid())
	assert.NotContains(t, f.Cleaned, "99")
}

func TestUnboundFormIsNotValid(t *testing.T) {
	f := NewForm(BuildSchema(contactForm()))
	assert.False(t, f.Valid())
	assert.Empty(t, f.Errors)
	assert.Empty(t, f.Value("2"))
}
