// Package app wires the option layer together: store backend, chain clock,
// option service, sweeper and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/covenant-network/option-layer/internal/app/auth"
	"github.com/covenant-network/option-layer/internal/app/chain"
	"github.com/covenant-network/option-layer/internal/app/config"
	"github.com/covenant-network/option-layer/internal/app/httpapi"
	optionsvc "github.com/covenant-network/option-layer/internal/app/services/option"
	"github.com/covenant-network/option-layer/internal/app/storage"
	"github.com/covenant-network/option-layer/internal/app/storage/memory"
	"github.com/covenant-network/option-layer/internal/app/storage/postgres"
	redisstore "github.com/covenant-network/option-layer/internal/app/storage/redis"
	"github.com/covenant-network/option-layer/internal/app/system"
	"github.com/covenant-network/option-layer/pkg/logger"
)

// Application ties the option service and its collaborators together.
type Application struct {
	Options *optionsvc.Service
	Handler http.Handler

	manager    *system.Manager
	hub        *httpapi.Hub
	storeClose io.Closer
	log        *logger.Logger
}

// New builds a fully initialised application from the configuration.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("option-layer")
	}

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	heights := chain.NewSimulated(cfg.GenesisHeight, cfg.BlockInterval)
	svc := optionsvc.New(store, heights, optionsvc.NewLogSink(log), log)

	hub := httpapi.NewHub(log)
	svc.WithEvents(hub)

	var authManager *auth.Manager
	if cfg.AuthSecret != "" && cfg.AdminUser != "" {
		authManager = auth.NewManager(cfg.AuthSecret, []auth.User{{
			Username: cfg.AdminUser,
			Password: cfg.AdminPassword,
			Role:     "operator",
		}})
	} else {
		log.Warn("authentication disabled; sender identity is client-supplied")
	}

	handler := httpapi.NewHandler(httpapi.Config{
		Options: svc,
		Hub:     hub,
		Auth:    authManager,
		Limiter: httpapi.NewSenderLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		Logger:  log,
	})

	sysManager := system.NewManager(log)
	sysManager.Register(optionsvc.NewSweeper(store, heights, cfg.SweepSchedule, log))

	return &Application{
		Options:    svc,
		Handler:    handler,
		manager:    sysManager,
		hub:        hub,
		storeClose: closer,
		log:        log,
	}, nil
}

// Start launches the background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Shutdown stops background services and releases resources.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	a.hub.Close()
	if a.storeClose != nil {
		if cerr := a.storeClose.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func openStore(ctx context.Context, cfg config.Config) (storage.OptionStore, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memory.New(), nil, nil
	case config.BackendPostgres:
		store, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store, nil
	case config.BackendRedis:
		store, err := redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
