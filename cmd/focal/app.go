package main

import (
	"context"
	"fmt"
	"log"

	"github.com/focalapp/focal/internal/bus"
	"github.com/focalapp/focal/internal/config"
	"github.com/focalapp/focal/internal/queue"
	"github.com/focalapp/focal/internal/remote"
	"github.com/focalapp/focal/internal/store"
	"github.com/focalapp/focal/internal/sync"
)

// app bundles the wired-up engine components behind one Close.
type app struct {
	cfg     *config.Config
	store   *store.Store
	queue   *queue.Queue
	bus     *bus.Bus
	remote  *remote.Client
	service *sync.Service
}

// newApp opens the database, initializes the schema and constructs the
// sync service from configuration.
func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app, error) {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.InitSchemaContext(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	q := queue.New(st.RawDB())
	b := bus.New()
	rc := remote.New(cfg.Remote.BaseURL, cfg.Remote.Token, nil)

	svcCfg := sync.DefaultConfig()
	if cfg.Sync.PullInterval > 0 {
		svcCfg.PullInterval = cfg.Sync.PullInterval
	}
	if cfg.Sync.DrainBatchSize > 0 {
		svcCfg.DrainBatchSize = cfg.Sync.DrainBatchSize
	}
	if cfg.Sync.MaxRetries > 0 {
		svcCfg.Retry.MaxRetries = cfg.Sync.MaxRetries
	}
	if cfg.Sync.BaseDelay > 0 {
		svcCfg.Retry.BaseDelay = cfg.Sync.BaseDelay
	}
	if cfg.Sync.SettingsDebounce > 0 {
		svcCfg.SettingsDebounce = cfg.Sync.SettingsDebounce
	}

	service, err := sync.New(st, q, rc, b, svcCfg, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create sync service: %w", err)
	}

	return &app{
		cfg:     cfg,
		store:   st,
		queue:   q,
		bus:     b,
		remote:  rc,
		service: service,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Printf("Warning: failed to close database: %v\n", err)
	}
}
