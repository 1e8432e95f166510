package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/eventbus"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/transport/rest"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/transport/websocket"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application until a signal arrives or a server fails.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	snapshots, closeSnapshots, err := newSnapshotRepository(ctx, log, conf)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	rooms := repository.NewRoomRepository()

	bus := eventbus.New(logger)
	defer bus.Close()

	dispatcher := usecase.NewDispatcher(logger, rooms, bus, snapshots)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		restServer := rest.New(logger, snapshots, rooms, bus, dispatcher)
		if httpErr := restServer.Start(ctx, conf.HTTPPort); httpErr != nil {
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort, "tls", conf.TLS.CertFile != "")
		wsServer := websocket.New(logger, dispatcher, bus, websocket.Options{
			BufferSize:   conf.EventBus.BufferSize,
			WriteTimeout: conf.WebSocket.WriteTimeout,
			ReadLimit:    conf.WebSocket.ReadLimit,
			PingPeriod:   conf.WebSocket.PingPeriod,
		})
		tls := websocket.TLS{CertFile: conf.TLS.CertFile, KeyFile: conf.TLS.KeyFile}
		if wsErr := wsServer.Start(ctx, conf.SocketPort, tls); wsErr != nil {
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Received signal, shutting down")
		return nil
	}
}

// newSnapshotRepository - redis when enabled, in-memory otherwise.
func newSnapshotRepository(ctx context.Context, log *slog.Logger, conf *config.Config) (repository.SnapshotRepository, func(), error) {
	if !conf.Redis.Enabled {
		log.Info("Redis disabled, keeping room snapshots in memory")
		return repository.NewInMemorySnapshotRepository(), func() {}, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedis(ctx, redisAddrString)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeFn := func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}

	return repository.NewSnapshotRepository(redisStorage, conf.Redis.SnapshotTTL), closeFn, nil
}
