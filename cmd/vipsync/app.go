package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/common/logging"
	"github.com/KirkDiggler/vipsync/internal/config"
	"github.com/KirkDiggler/vipsync/internal/repositories/kvstore"
	"github.com/KirkDiggler/vipsync/internal/services/sharedstorage"
)

// errMemoryOneShot rejects the memory backend for commands that exit right
// away; its data lives only as long as the process.
var errMemoryOneShot = errors.New("the memory store does not persist between invocations; use it only with serve or watch")

// app is everything one command invocation needs
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    kvstore.Store
	health   func(ctx context.Context) error
	registry *prometheus.Registry
	storage  sharedstorage.Service
}

// openApp loads configuration and opens the shared storage service. One-shot
// commands pass background=false so no watcher or cleanup loop is started.
func openApp(ctx context.Context, background bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if !background && cfg.Store == config.StoreMemory {
		return nil, errMemoryOneShot
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	store, health, err := openStore(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := sharedstorage.NewMetrics(registry)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	storageCfg := &sharedstorage.Config{
		Store:           store,
		Logger:          logger,
		Metrics:         metrics,
		CleanupInterval: cfg.CleanupInterval,
	}
	if !background {
		storageCfg.DisableWatch = true
		storageCfg.CleanupInterval = -1
	}

	storage, err := sharedstorage.Open(ctx, storageCfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		health:   health,
		registry: registry,
		storage:  storage,
	}, nil
}

func (a *app) Close() error {
	err := errors.Join(a.storage.Close(), a.store.Close())
	_ = a.logger.Sync()
	return err
}

// withApp opens the app, runs fn and closes the app again
func withApp(ctx context.Context, background bool, fn func(a *app) error) (err error) {
	a, err := openApp(ctx, background)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
