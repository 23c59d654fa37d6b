package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotdex/params"
	"github.com/uhyunpark/spotdex/pkg/api"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotdex/pkg/app/dex"
	"github.com/uhyunpark/spotdex/pkg/feed"
	"github.com/uhyunpark/spotdex/pkg/storage"
	"github.com/uhyunpark/spotdex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Storage ----
	var store *storage.Store
	if cfg.Node.DataDir != "" {
		store, err = storage.Open(cfg.Node.DataDir)
		if err != nil {
			sugar.Fatalw("storage_open_failed", "path", cfg.Node.DataDir, "err", err)
		}
		defer store.Close()
		sugar.Infow("storage_opened", "path", cfg.Node.DataDir)
	} else {
		sugar.Info("persistence disabled - running with in-memory state only")
	}

	// ---- App: spot exchange ----
	app, err := dex.NewApp(cfg.Node.Numeraire, store, sugar)
	if err != nil {
		sugar.Fatalw("app_init_failed", "err", err)
	}

	// Pre-register assets from config: "SYMBOL:0xaddr" entries
	for _, entry := range cfg.Node.Assets {
		symbol, addrHex, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || !common.IsHexAddress(addrHex) {
			sugar.Warnw("asset_config_ignored", "entry", entry)
			continue
		}
		if err := app.RegisterAsset(symbol, common.HexToAddress(addrHex)); err != nil {
			sugar.Warnw("asset_register_failed", "symbol", symbol, "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(app, sugar)

	// ---- Trade feed (optional) ----
	var publisher *feed.Publisher
	if len(cfg.Feed.Brokers) > 0 {
		publisher = feed.NewPublisher(cfg.Feed.Brokers, cfg.Feed.Topic, sugar)
		defer publisher.Close()
		sugar.Infow("trade_feed_enabled", "brokers", cfg.Feed.Brokers, "topic", cfg.Feed.Topic)
	}

	// Fan executed trades out to WS subscribers and the Kafka feed
	app.OnTrade = func(t orderbook.Trade) {
		apiServer.BroadcastTrade(t)
		if publisher != nil {
			publisher.Publish(t)
		}
	}

	go func() {
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"numeraire", cfg.Node.Numeraire,
		"api_addr", cfg.API.Addr,
		"assets", len(cfg.Node.Assets))

	<-ctx.Done()
	sugar.Info("shutting down")
}
