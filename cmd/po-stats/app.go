package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nixlim/po-stats/internal/config"
	"github.com/nixlim/po-stats/internal/engine"
	"github.com/nixlim/po-stats/internal/pricing"
	"github.com/nixlim/po-stats/internal/receiver"
	"github.com/nixlim/po-stats/internal/storage"
)

// app bundles the pieces every long-running command needs.
type app struct {
	cfg          config.Config
	log          zerolog.Logger
	kv           storage.KV
	isPersistent bool
	eng          *engine.Engine
	loop         *engine.Loop
	signals      receiver.Logger
	debugFile    *os.File
}

// openApp builds the store, engine and loop from cfg. The loop is not
// started.
func openApp(cfg config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     log.Logger,
		signals: receiver.NopLogger{},
	}

	kv, persistent, err := storage.NewKV(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	a.kv = kv
	a.isPersistent = persistent

	if flagDebug != "" {
		f, err := os.OpenFile(flagDebug, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("failed to open debug log %q: %w", flagDebug, err)
		}
		a.debugFile = f
		a.signals = receiver.NewFileLogger(f)
	}

	a.eng = engine.New(kv,
		engine.WithLogger(a.log.With().Str("component", "engine").Logger()),
		engine.WithCostEstimator(pricing.FromConfig(cfg.Pricing)),
		engine.WithLedgerCapacity(cfg.Engine.LedgerCapacity),
		engine.WithAuditSize(cfg.Engine.AuditBufferSize),
		engine.WithStoreKey(storeKey(cfg.Storage)),
	)
	a.loop = engine.NewLoop(a.eng, cfg.Engine.QueueSize)
	return a, nil
}

// close flushes the cumulative total and closes the store. The loop must
// have stopped.
func (a *app) close() {
	a.eng.Close()
	if err := a.kv.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing store")
	}
	if a.debugFile != nil {
		_ = a.debugFile.Close()
	}
}

func storeKey(cfg config.StorageConfig) string {
	if cfg.Key == "" {
		return engine.DefaultStoreKey
	}
	return cfg.Key
}
