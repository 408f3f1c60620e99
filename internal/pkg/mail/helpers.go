package mail

import (
	"github.com/mx-space/widgy/internal/config"
)

// BuildMailConfig maps the application's mail section onto a sender Config.
func BuildMailConfig(cfg *config.AppConfig) Config {
	if cfg == nil {
		return Config{}
	}
	m := cfg.Mail
	mc := Config{
		Enable:  m.Enable,
		From:    m.From,
		ReplyTo: m.ReplyTo,
		Host:    m.SMTP.Host,
		Port:    m.SMTP.Port,
		User:    m.SMTP.User,
		Pass:    m.SMTP.Pass,
	}
	if mc.From == "" {
		mc.From = cfg.Site.ServerEmail
	}
	if m.ResendKey != "" {
		mc.UseResend = true
		mc.ResendKey = m.ResendKey
	}
	return mc
}
