package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	payflow "github.com/lumenpay/payflow"
	payflowhttp "github.com/lumenpay/payflow/http"
	"github.com/lumenpay/payflow/notify"
	"github.com/lumenpay/payflow/storage/sqlite"
)

type config struct {
	ListenAddr       string            `env:"LISTEN_ADDR" envDefault:":8080"`
	SettlementURL    string            `env:"SETTLEMENT_URL,required"`
	StoragePath      string            `env:"STORAGE_PATH" envDefault:"payflow.db"`
	WebhookSecrets   map[string]string `env:"WEBHOOK_SECRETS"`
	SimulateTimeout  time.Duration     `env:"SIMULATE_TIMEOUT" envDefault:"10s"`
	BroadcastTimeout time.Duration     `env:"BROADCAST_TIMEOUT" envDefault:"30s"`
	KafkaBrokers     []string          `env:"KAFKA_BROKERS"`
	KafkaTopic       string            `env:"KAFKA_TOPIC" envDefault:"payflow.status"`
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("payflowd exited with error", "err", err)
		os.Exit(1)
	}
}

// run owns the daemon lifecycle. Every exit path, error included, flows
// through the deferred cleanup so the store and the Kafka writer close.
func run(log *slog.Logger) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	store, err := sqlite.Open(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	var notifier payflow.Notifier = notify.NewSlogNotifier(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	orch := payflow.NewOrchestrator(payflow.OrchestratorConfig{
		Store: store,
		Client: payflowhttp.NewSettlementHTTPClient(&payflowhttp.SettlementConfig{
			URL: cfg.SettlementURL,
		}),
		Verifier:         payflow.NewHMACVerifier(cfg.WebhookSecrets),
		Notifier:         notifier,
		Logger:           log,
		SimulateTimeout:  cfg.SimulateTimeout,
		BroadcastTimeout: cfg.BroadcastTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := payflow.NewScheduler(orch, notifier, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: payflowhttp.NewServer(orch, log).Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sig:
		log.Info("shutdown requested")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("bye")
	return runErr
}
