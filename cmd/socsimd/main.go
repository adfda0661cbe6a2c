package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socsim/internal/api"
	"socsim/internal/config"
	"socsim/internal/feed"
	"socsim/internal/generator"
	"socsim/internal/ledger"
	"socsim/internal/logging"
	"socsim/internal/scenario"
	"socsim/internal/session"
	"socsim/internal/stats"
	"socsim/internal/storage"
	"socsim/internal/threat"
)

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	flag.Parse()

	var cfgManager *config.Manager
	if *configPath != "" {
		m, err := config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfgManager = m
	} else {
		cfgManager = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := cfgManager.Get()
	logger := logging.NewLogger(cfg.LogLevel)

	if err := scenario.Validate(); err != nil {
		logger.Error("scenario catalog invalid", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	if err := store.Init(ctx); err != nil {
		logger.Error("init store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	anomaly, classifier := threat.LoadModels(cfg.Models, logging.Component(logger, "threat"))
	scorer := threat.NewScorer(anomaly, classifier)

	publisher := feed.NewPublisher(cfg.Feed, logging.Component(logger, "feed"))
	defer publisher.Close()

	statsStore := stats.NewStore()
	decisionLedger := ledger.New()

	var feedObserver generator.EventObserver
	if publisher != nil {
		feedObserver = publisher
	}
	sessions := session.NewManager(cfgManager, scorer, store, decisionLedger, statsStore,
		feedObserver, logging.Component(logger, "session"))

	api.Start(ctx, cfgManager, sessions, store, scorer, statsStore, logging.Component(logger, "api"))

	stop := make(chan struct{})
	if cfgManager.Path() != "" {
		go cfgManager.Watch(3*time.Second,
			func(next *config.Config) {
				logger.Info("config reloaded", "path", cfgManager.Path())
			},
			func(err error) {
				logger.Warn("config reload failed", "err", err)
			},
			stop)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping sessions")
	close(stop)
	sessions.StopAll()
	cancel()
	logger.Info("shutdown complete")
}
