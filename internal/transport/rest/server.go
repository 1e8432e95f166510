package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const shutdownTimeout = 5 * time.Second

type snapshotReader interface {
	GetByID(ctx context.Context, id string) (*entity.RoomSnapshot, error)
}

type counter interface {
	Len() int
}

type roomCloser interface {
	DeleteRoom(ctx context.Context, roomID string) error
}

type Server struct {
	logger *slog.Logger

	snapshots   snapshotReader
	rooms       counter
	subscribers counter
	closer      roomCloser
}

func New(logger *slog.Logger, snapshots snapshotReader, rooms, subscribers counter, closer roomCloser) *Server {
	return &Server{
		logger:      logger.With("component", "rest"),
		snapshots:   snapshots,
		rooms:       rooms,
		subscribers: subscribers,
		closer:      closer,
	}
}

// Routes - gin engine with every REST endpoint.
func (that *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), that.requestLogger())

	engine.GET("/ping", that.handlePing)
	engine.GET("/healthz", that.handleHealthz)
	engine.GET("/rooms/:id", that.handleRoom)
	engine.DELETE("/rooms/:id", that.handleDeleteRoom)

	return engine
}

// Start - serves REST on port until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// requestLogger - logs every request through slog instead of gin's writer.
func (that *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		that.logger.Debug("request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
