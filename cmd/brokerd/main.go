package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paperstreet/brokerd/params"
	"github.com/paperstreet/brokerd/pkg/api"
	"github.com/paperstreet/brokerd/pkg/broker"
	"github.com/paperstreet/brokerd/pkg/identity"
	"github.com/paperstreet/brokerd/pkg/marketdata"
	"github.com/paperstreet/brokerd/pkg/storage"
	"github.com/paperstreet/brokerd/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Storage.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Storage.LogFile)

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		sugar.Fatalw("storage_open_failed", "path", cfg.Storage.DBPath, "err", err)
	}
	defer store.Close()
	sugar.Infow("storage_opened", "path", cfg.Storage.DBPath)

	var quotes marketdata.Provider
	if cfg.Quotes.FeedURL != "" {
		quotes = marketdata.NewClient(cfg.Quotes.FeedURL, cfg.Quotes.Timeout)
		sugar.Infow("quote_feed", "url", cfg.Quotes.FeedURL, "timeout", cfg.Quotes.Timeout)
	} else {
		registry, err := marketdata.NewRegistryFromSpec(cfg.Quotes.Symbols, time.Now())
		if err != nil {
			sugar.Fatalw("symbol_seed_invalid", "spec", cfg.Quotes.Symbols, "err", err)
		}
		quotes = registry
		sugar.Infow("quote_registry", "symbols", registry.Symbols())
	}

	engine := broker.NewEngine(store, quotes, util.RealClock{}, sugar)
	ident := identity.NewService(store, sugar)
	server := api.NewServer(engine, ident, store, sugar, cfg.Server.CORSOrigins)

	errc := make(chan error, 1)
	go func() { errc <- server.Start(cfg.Server.Listen) }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigc:
		sugar.Infow("shutting_down", "signal", sig.String())
	case err := <-errc:
		if err != nil {
			sugar.Fatalw("server_failed", "err", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		sugar.Errorw("shutdown_failed", "err", err)
	}
}
