package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/huigrowth/careauth"
	"github.com/huigrowth/careauth/api"
	"github.com/huigrowth/careauth/persist"
	"github.com/redis/go-redis/v9"
)

// app is one command invocation's wiring.
type app struct {
	cfg    config
	client *api.Client
	store  *careauth.Store
	logger *slog.Logger
	out    io.Writer

	closers []func() error
}

func openApp(ctx context.Context, cfg config, out, errOut io.Writer) (*app, error) {
	lvl, err := cfg.logLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: lvl}))

	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    out,
	}

	kv, err := a.openStorage(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.client = api.New(cfg.APIURL,
		api.WithTimeout(cfg.Timeout),
		api.WithUserAgent("carectl/"+version),
	)

	storeCfg := careauth.DefaultConfig()
	storeCfg.Persistence.Key = cfg.StorageKey
	storeCfg.Notify.Async = false

	store, err := careauth.New().
		WithConfig(storeCfg).
		WithAPIClient(a.client).
		WithStorage(kv).
		WithNotifier(&terminalNotifier{w: errOut}).
		WithLogger(logger).
		Build(ctx)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build store: %w", err)
	}
	a.store = store

	return a, nil
}

func (a *app) openStorage(ctx context.Context) (persist.KV, error) {
	switch a.cfg.Store {
	case storeMemory:
		return persist.NewMemory(), nil

	case storeRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{a.cfg.RedisAddr},
		})
		a.closers = append(a.closers, client.Close)

		kv := persist.NewRedis(client, "careauth", 0)
		latency, err := kv.Ping(ctx)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("carectl: redis reachable", "addr", a.cfg.RedisAddr, "latency", latency)
		return kv, nil

	case storeSQLite:
		if err := os.MkdirAll(filepath.Dir(a.cfg.SQLitePath), 0o700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		db, err := persist.OpenSQLite(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	}

	return nil, fmt.Errorf("unknown store %q", a.cfg.Store)
}

// Close releases the store and storage backends in reverse order.
func (a *app) Close() error {
	if a.store != nil {
		a.store.Close()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
