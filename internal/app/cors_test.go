package app

import (
	"testing"

	"github.com/mx-space/widgy/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	p := originPolicy{"admin.example.com", "*.forms.example.com", "localhost:*"}

	cases := map[string]bool{
		"https://admin.example.com":      true,
		"https://a.forms.example.com":    true,
		"http://localhost:5173":          true,
		"https://example.com":            false,
		"https://evil.com":               false,
		"https://admin.example.com.evil": false,
		"localhost":                      false,
	}
	for origin, want := range cases {
		assert.Equal(t, want, p.allows(origin), origin)
	}
}

func TestCORSConfig(t *testing.T) {
	dev := &config.AppConfig{Env: "development", AllowedOrigins: []string{"admin.example.com"}}
	assert.True(t, corsConfig(dev).AllowOriginFunc("https://anything.test"))

	prod := &config.AppConfig{Env: "production", AllowedOrigins: []string{"admin.example.com"}}
	c := corsConfig(prod)
	assert.True(t, c.AllowOriginFunc("https://admin.example.com"))
	assert.False(t, c.AllowOriginFunc("https://anything.test"))

	open := &config.AppConfig{Env: "production"}
	assert.True(t, corsConfig(open).AllowOriginFunc("https://anything.test"))
}
