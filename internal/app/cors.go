package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/mx-space/widgy/internal/config"
)

// originPolicy is the allowed_origins list. A pattern is an exact host, a
// "*.example.com" subdomain wildcard or a "host:*" port wildcard.
type originPolicy []string

func (p originPolicy) allows(origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	for _, pattern := range p {
		switch {
		case pattern == host:
			return true
		case strings.HasPrefix(pattern, "*.") && strings.HasSuffix(host, pattern[1:]):
			return true
		case strings.HasSuffix(pattern, ":*") && strings.HasPrefix(host, strings.TrimSuffix(pattern, "*")):
			return true
		}
	}
	return false
}

// corsConfig lets the admin UI and embedding sites call the API. Development
// and an empty allowed_origins accept every origin.
func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "x-widgy-cache"},
		AllowCredentials: true,
		AllowOriginFunc:  func(string) bool { return true },
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		c.AllowOriginFunc = originPolicy(cfg.AllowedOrigins).allows
	}
	return c
}
