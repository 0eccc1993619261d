package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/internal/data/db"
	"github.com/courseloop/courseloop-backend/internal/handlers"
	"github.com/courseloop/courseloop-backend/internal/observability"
	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/temporalx"
	"github.com/courseloop/courseloop-backend/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services

	temporal     temporalsdkclient.Client
	worker       *temporalworker.Runner
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clientset, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(log, cfg, clientset, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	// Temporal is optional: without it, async bank rebuilds are refused
	// and generation runs inline (HTTP or the offline CLI).
	var (
		tc       temporalsdkclient.Client
		runner   *temporalworker.Runner
		rebuilds handlers.BankRebuildEnqueuer
	)
	tc, err = temporalx.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	if tc != nil {
		runner, err = temporalworker.NewRunner(log, tc, reposet.Course, reposet.CourseModule, serviceset.BankGenerator)
		if err != nil {
			tc.Close()
			log.Sync()
			return nil, err
		}
		rebuilds = runner
	}

	handlerset := wireHandlers(log, serviceset, rebuilds)
	router := wireRouter(cfg, handlerset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Clients:      clientset,
		Repos:        reposet,
		Services:     serviceset,
		temporal:     tc,
		worker:       runner,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			a.Log.Error("Temporal worker failed to start", "error", err)
		}
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.Clients.BankCache != nil {
		_ = a.Clients.BankCache.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
