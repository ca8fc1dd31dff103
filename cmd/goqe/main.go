package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evdnx/goqe/config"
	"github.com/evdnx/goqe/engine"
	"github.com/evdnx/goqe/exchange"
	"github.com/evdnx/goqe/executor"
	"github.com/evdnx/goqe/logger"
	"github.com/evdnx/goqe/notify"
	"github.com/evdnx/goqe/recorder"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	metricsAddr := flag.String("metrics", ":9108", "prometheus listen address, empty to disable")
	flag.Parse()

	// Secrets come from the environment; .env is a local convenience.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.NewZapLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	client := exchange.NewBinance(cfg.Binance, log)

	var exec executor.Executor
	if cfg.Trading.Paper {
		exec = executor.NewPaperExecutor(cfg.Trading.Balance, cfg.Monitor)
	} else {
		exec = executor.NewLiveExecutor(client.Futures(), log)
		// TODO: reconcile open venue positions into the position book on
		// startup; after a restart the book is empty while the venue
		// orders persist.
		log.Warn("live_mode_position_book_starts_empty")
	}

	var rec recorder.Recorder = recorder.Nop{}
	if cfg.Storage.Enabled {
		influx := recorder.NewInflux(cfg.Storage, log)
		defer influx.Close()
		rec = influx
	}

	eng := engine.New(cfg, client, exec, notify.Nop{}, rec, log)

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram, eng.Gate(), log)
		if err != nil {
			return err
		}
		tg.Start()
		defer tg.Stop()
		eng.SetNotifier(tg)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error("metrics_server_failed", logger.Err(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng.Start(ctx)
	<-ctx.Done()
	log.Info("shutdown_signal_received")
	eng.Stop()
	return nil
}
