package main

import (
	"fmt"
	"math/rand"
	"time"

	"timeout-exchange-go/internal/config"
	"timeout-exchange-go/internal/database"
	"timeout-exchange-go/internal/exchange"
	"timeout-exchange-go/internal/ledger"
	"timeout-exchange-go/internal/logger"
	"timeout-exchange-go/internal/market"
	"timeout-exchange-go/internal/metrics"
	"timeout-exchange-go/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	db       *gorm.DB
	metrics  *metrics.Metrics
	exchange *exchange.Exchange
	closers  []func() error
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewFileLogger(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.File)
	if err != nil {
		return nil, fmt.Errorf("could not create logger: %w", err)
	}
	log.Info("Configuration loaded")

	db, err := database.NewDatabase(&cfg)
	if err != nil {
		return nil, err
	}
	log.Info("Database connection successful and schema migrated.", zap.String("driver", cfg.Database.Driver))

	seed := cfg.Market.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := market.NewEngine(cfg.Market, rand.New(rand.NewSource(seed)), log)

	m := metrics.New()
	notifier, closeNotifier := notify.New(cfg.Notify, cfg.Redis, log)
	x := exchange.New(db, engine, ledger.New(db, nil, log), log,
		exchange.WithNotifier(notifier),
		exchange.WithMetrics(m))

	a := &app{cfg: cfg, log: log, db: db, metrics: m, exchange: x}
	a.closers = append(a.closers, closeNotifier)
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("Failed to release resource", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
