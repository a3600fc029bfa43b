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

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/labhub-io/labhub/internal/notification/adapters/ws"
	"github.com/labhub-io/labhub/internal/notification/app"
	"github.com/labhub-io/labhub/internal/notification/repository/postgres"
	notifhttp "github.com/labhub-io/labhub/internal/notification/transport/http"
	"github.com/labhub-io/labhub/internal/platform/config"
	"github.com/labhub-io/labhub/internal/platform/database"
	"github.com/labhub-io/labhub/internal/platform/logger"
	"github.com/labhub-io/labhub/internal/platform/messagebroker"
)

const (
	serviceName     = "notification-service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("Starting service...")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	log.Info("Database connection pool initialized")

	// Bus selection: in-memory for a single instance, NATS for a cluster.
	var bus app.Bus
	switch cfg.BusMode {
	case "nats":
		natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, log, serviceName)
		if err != nil {
			log.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		bus = app.NewNATSBus(natsClient, log)
		log.Info("Fan-out bus initialized", "mode", "nats", "url", cfg.NATSUrl)
	default:
		bus = app.NewMemoryBus()
		log.Info("Fan-out bus initialized", "mode", "memory")
	}
	defer bus.Close()

	// Each instance gets a fresh origin id; envelopes it publishes carry it
	// so its own fan-out subscription can skip them.
	origin := serviceName + "-" + uuid.NewString()

	registry := app.NewRegistry(log)
	dispatcher := app.NewDispatcher(bus, registry, log, origin, app.DispatcherConfig{
		Workers:   cfg.DispatcherWorkers,
		QueueSize: cfg.DispatcherQueueSize,
	})

	messageRepo := postgres.NewPgMessageRepository(dbPool, log)
	inboxService := app.NewInboxService(messageRepo, dispatcher, log)

	sweeper := app.NewSweeper(messageRepo, log, app.SweeperConfig{
		Interval: cfg.SweepInterval,
		TTL:      time.Duration(cfg.MessageTTLHours) * time.Hour,
	})

	receiver := app.NewFanoutReceiver(bus, registry, log, dispatcher.Origin())
	if err := receiver.Start(mainCtx); err != nil {
		log.Error("Failed to subscribe to fan-out bus", "error", err)
		os.Exit(1)
	}
	log.Info("Fan-out subscription established")

	wsOpts := ws.Options{
		WriteTimeout:  cfg.WSWriteTimeout,
		PingInterval:  cfg.WSPingInterval,
		PongTimeout:   cfg.WSPongTimeout,
		MaxMessageLen: cfg.WSMaxMessageLen,
	}
	pushHandler := notifhttp.NewPushHandler(registry, dispatcher, wsOpts, log)
	inboxHandler := notifhttp.NewInboxHandler(inboxService, log)
	router := notifhttp.NewRouter(pushHandler, inboxHandler, cfg.JWTAccessSecret, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  120 * time.Second,
		// No WriteTimeout: push connections are long-lived streams.
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		log.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.Run(groupCtx)
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			log.Info("Received shutdown signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	<-groupCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown failed", "error", err)
	}
	dispatcher.Close()
	registry.CloseAll()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Service stopped")
}
