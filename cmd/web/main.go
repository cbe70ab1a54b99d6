package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"payment-service/internal/bank"
	"payment-service/internal/config"
	"payment-service/internal/handlers"
	"payment-service/internal/helpers/logs"
	"payment-service/internal/idempotency"
	"payment-service/internal/ledger"
	"payment-service/internal/metrics"
	internal "payment-service/internal/payment"
)

func main() {
	v := viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:           "payment-service",
		Short:         "Processes order_created events into bank settlements",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(config.Load(v))
		},
	}
	rootCmd.Flags().String("port", "", "listen port (overrides APP_PORT)")
	if err := v.BindPFlag("APP_PORT", rootCmd.Flags().Lookup("port")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		logs.Error("payment service stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	var (
		store ledger.Store
		rdb   *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("could not connect to Redis: %w", err)
		}
		store = ledger.NewRedisStore(rdb)
	} else {
		store = ledger.NewMemoryStore()
	}

	recorder := ledger.NewRecorder(ctx, store, cfg.LedgerWorkers, cfg.LedgerChannelSize)
	recorder.Start()

	m := metrics.New()
	gate := idempotency.NewMemoryGate()
	h := &handlers.Handlers{
		Processor: internal.NewPaymentProcessor(
			gate,
			bank.NewSimulatedBank(bank.SimulatedBankConfig{
				MinLatency:  cfg.BankMinLatency,
				MaxLatency:  cfg.BankMaxLatency,
				FailureRate: cfg.BankFailureRate,
			}),
			internal.Options{
				AmountLimit:   cfg.AmountLimit,
				SettleTimeout: cfg.SettleTimeout,
				Ledger:        recorder,
				Metrics:       m,
			},
		),
		Ledger:  store,
		Metrics: m,
		Gate:    gate,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})
	h.Register(app)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		logs.Info("payment service started", "port", cfg.Port, "redis", cfg.RedisAddr != "")
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	var runErr error
	select {
	case <-c:
	case err := <-listenErr:
		if err != nil {
			runErr = fmt.Errorf("error starting server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer func() {
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				logs.Error("error closing Redis client", "error", err.Error())
			}
		}
		cancel()
	}()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logs.Error("error during server shutdown", "error", err.Error())
	}

	recorder.Stop()
	return runErr
}
