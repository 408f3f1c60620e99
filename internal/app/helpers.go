package app

import (
	"os"
	"strings"

	"github.com/mx-space/widgy/internal/config"
	jwtpkg "github.com/mx-space/widgy/internal/pkg/jwt"
	"github.com/mx-space/widgy/internal/pkg/nativelog"
	"go.uber.org/zap"
)

func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) {
	_ = os.Setenv(nativelog.EnvLogDir, cfg.LogDir())

	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}
}
