package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mx-space/widgy/internal/config"
	"github.com/mx-space/widgy/internal/database"
	"github.com/mx-space/widgy/internal/middleware"
	"github.com/mx-space/widgy/internal/modules/formbuilder"
	"github.com/mx-space/widgy/internal/modules/pagebuilder"
	"github.com/mx-space/widgy/internal/modules/widgy"
	"github.com/mx-space/widgy/internal/pkg/mail"
	pkgredis "github.com/mx-space/widgy/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	redis  *pkgredis.Client
	logger *zap.Logger
}

// services bundles the module services the routes are built from.
type services struct {
	tree     *widgy.Service
	renderer *widgy.Renderer
	forms    *formbuilder.Service
	pages    *pagebuilder.Service
}

// New initializes the application: config → DB → Redis → routes.
func New(ctx context.Context, logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	applyRuntimeSettings(cfg, logger)

	db, err := database.Connect(cfg, cfg.IsDev())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	svcs, err := buildServices(db, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	a := &App{cfg: cfg, router: router, db: db, redis: rc, logger: logger}
	a.registerRoutes(svcs)
	return a, nil
}

func buildServices(db *gorm.DB, cfg *config.AppConfig, logger *zap.Logger) (*services, error) {
	tree := widgy.NewService(db, logger.Named("widgy"))
	formbuilder.Register(tree)

	renderer := widgy.NewRenderer()
	if err := formbuilder.InstallRenderers(renderer); err != nil {
		return nil, fmt.Errorf("form templates: %w", err)
	}

	mailCfg := mail.BuildMailConfig(cfg)
	pipeline := formbuilder.NewPipeline(logger.Named("forms"))
	builtins := &formbuilder.Builtins{
		Submitter: formbuilder.NewSubmitter(db, logger.Named("forms")),
		Mailer:    mail.New(mailCfg),
		From:      mailCfg.From,
		Site:      cfg.Site.Name,
		Logger:    logger.Named("forms"),
	}
	builtins.Install(pipeline)
	if !mailCfg.Enable {
		logger.Info("mail disabled, email handlers will not deliver")
	}

	reporter := formbuilder.NewReporter(db, tree)
	return &services{
		tree:     tree,
		renderer: renderer,
		forms:    formbuilder.NewService(tree, pipeline, reporter, logger.Named("forms")),
		pages:    pagebuilder.NewService(db, tree, renderer, logger.Named("pages")),
	}, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown releases the database and Redis connections.
func (a *App) Shutdown() {
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
