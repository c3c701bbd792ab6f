package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/dedup"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/journal"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/machine"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/sequence"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/vending"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("vending machine stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reserve, err := vending.NewReserve(cfg.InitialCoinCount)
	if err != nil {
		return fmt.Errorf("initial coin reserve: %w", err)
	}

	opts := machine.Options{MachineID: cfg.MachineID}
	var (
		sales       httpapi.SalesLister
		checkpoints events.Checkpointer
		sequencer   events.Sequencer = sequence.NewCounter()
	)

	// --- DB ---
	if cfg.DatabaseDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()

		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
				return fmt.Errorf("db migrate: %w", err)
			}
		}

		repo := journal.NewPostgresRepository(pool)
		opts.Journal = repo
		sales = repo
		sequencer = sequence.NewRepository(pool)
		checkpoints = dedup.NewRepository(pool)
	} else {
		logger.Info("DATABASE_DSN not set, sales journal disabled")
	}

	// --- AMQP ---
	var conn *amqp.Connection
	if cfg.RabbitMQURL != "" {
		conn, err = events.DialRabbit(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer conn.Close()

		pub, err := events.NewPublisher(conn, sequencer, events.PublisherOptions{})
		if err != nil {
			return fmt.Errorf("start publisher: %w", err)
		}
		defer pub.Close()
		opts.Publisher = pub
	} else {
		logger.Info("RABBITMQ_URL not set, events disabled")
	}

	svc := machine.NewService(vending.NewRegister(vending.NewInventory(), reserve), logger, opts)
	if cfg.SeedSampleProducts {
		if err := svc.Seed(ctx, machine.SampleProducts()); err != nil {
			return err
		}
	}

	if conn != nil && cfg.ConsumeRestockCommands {
		handler := events.RestockRequestedHandler(svc, checkpoints, logger)
		if err := events.StartRestockConsumer(ctx, conn, svc.MachineID(), handler, logger); err != nil {
			return fmt.Errorf("start restock consumer: %w", err)
		}
	}

	// --- HTTP ---
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(svc, sales, logger)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("machine_id", svc.MachineID()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
		logger.Error("http server failed", zap.Error(serveErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()

	settle(shutdownCtx, svc, logger)

	logger.Info("shutdown complete")
	return serveErr
}

// settle returns whatever balance a customer left behind before the process
// exits.
func settle(ctx context.Context, svc *machine.Service, logger *zap.Logger) {
	if svc.Balance() == 0 {
		return
	}
	ctx = machine.WithCorrelationID(ctx, "shutdown")
	coins, err := svc.DispenseChange(ctx)
	if err != nil {
		logger.Error("final settlement failed", zap.Int("balance", svc.Balance()), zap.Error(err))
		return
	}
	logger.Info("final settlement", zap.Int("amount", coins.Value()), zap.Any("coins", coins))
}
