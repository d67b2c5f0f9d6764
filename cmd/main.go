package main

import (
	"chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Deferred cleanups (store closing) run before the process exits.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(promRegistry)

	// 3. Message store
	repository, closeStore, err := openStore(config, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// 4. Relay core
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry, config.Routing(), config.SendTimeout, metrics)
	chatService := services.NewChatService(log, repository, registry, broadcaster, metrics)
	chatServer := websocket.NewServer(log, chatService, websocket.Config{
		AllowedOrigins: config.Origins(),
		WriteTimeout:   config.WriteTimeout,
		PongWait:       config.PongWait,
		MaxMessageSize: config.MaxMessageSize,
	})

	// 5. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval, metrics)
	sup.Add(
		workers.NewHeartbeatWorker(log, registry, clock.New(), config.HeartbeatInterval, config.WriteTimeout, metrics),
		workers.NewProcessStatsWorker(log, clock.New(), config.MetricInterval, metrics),
	)

	// 6. Servers
	var healthy atomic.Bool
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           internal.NewRouter(config.ChatPath, chatServer, promRegistry, healthy.Load),
		ReadHeaderTimeout: 10 * time.Second,
	}
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	grpcListener, err := net.Listen("tcp", config.GrpcAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.GrpcAddress(), err)
	}

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sup.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("Starting chat relay", "address", httpServer.Addr, "path", config.ChatPath,
			"routing", config.Routing(), "store", config.StoreDriver)
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("Starting gRPC health server", "address", grpcListener.Addr().String())
		if err := grpcServer.Serve(grpcListener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		healthy.Store(false)
		healthServer.Shutdown()
		return shutdown(chatServer, httpServer, grpcServer)
	})

	healthy.Store(true)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}

// openStore returns the configured repository and the function releasing it.
func openStore(config internal.Config, log *slog.Logger) (repositories.IMessageRepository, func(), error) {
	switch config.StoreDriver {
	case internal.StoreMemory:
		log.Warn("Using in-memory store, history will not survive a restart")
		return repositories.NewMemoryRepository(config.HistoryLimit, clock.New()), func() {}, nil
	default:
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		closeStore := func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}
		return repositories.NewMessageRepository(db, log, config.HistoryLimit, clock.New()), closeStore, nil
	}
}

// shutdown closes live sockets before the HTTP server: hijacked connections are not tracked by it.
func shutdown(chatServer *websocket.Server, httpServer *http.Server, grpcServer *grpc.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	err = multierr.Append(err, chatServer.Shutdown(ctx))
	err = multierr.Append(err, httpServer.Shutdown(ctx))
	grpcServer.GracefulStop()
	return err
}
