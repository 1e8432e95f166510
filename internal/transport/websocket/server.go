package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/eventbus"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
)

const (
	sessionCookie    = "user_session"
	sessionLifetime  = 24 * time.Hour
	shutdownTimeout  = 5 * time.Second
	directBufferSize = 16
)

type dispatcher interface {
	Dispatch(ctx context.Context, cmd usecase.Command) []entity.Event
}

type subscriber interface {
	Subscribe(buffer int) *eventbus.Subscription
}

// Options tunes every connection served by the Server.
type Options struct {
	BufferSize   int
	WriteTimeout time.Duration
	ReadLimit    int64
	PingPeriod   time.Duration
}

// TLS enables wss when both paths are set.
type TLS struct {
	CertFile string
	KeyFile  string
}

func (that TLS) Enabled() bool {
	return that.CertFile != "" && that.KeyFile != ""
}

type Server struct {
	logger     *slog.Logger
	dispatcher dispatcher
	bus        subscriber
	opts       Options
	upgrader   websocket.Upgrader
}

func New(logger *slog.Logger, dispatcher dispatcher, bus subscriber, opts Options) *Server {
	if opts.BufferSize <= 0 {
		opts.BufferSize = eventbus.DefaultBufferSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 4096
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 30 * time.Second
	}

	return &Server{
		logger:     logger.With("component", "websocket"),
		dispatcher: dispatcher,
		bus:        bus,
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler - routes /ws to the upgrader.
func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.serveWS)

	return mux
}

// Start - serves WebSocket clients on port until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string, tls TLS) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	var err error
	if tls.Enabled() {
		err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	} else {
		err = srv.ListenAndServe()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveWS - upgrades the request and runs the connection until either side goes away.
func (that *Server) serveWS(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "serveWS")

	userID, header := that.sessionID(req)

	ws, err := that.upgrader.Upgrade(writer, req, header)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := newConnection(that, ws, userID)

	log.Info("WebSocket connection established", "userID", userID, "remote", req.RemoteAddr)

	conn.run(req.Context())

	log.Info("WebSocket connection closed", "userID", userID)
}

// sessionID - reuses the user_session cookie or issues a new identity.
func (that *Server) sessionID(req *http.Request) (string, http.Header) {
	if cookie, err := req.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    pkg.GenerateNewSessionID(),
		Expires:  time.Now().Add(sessionLifetime),
		Path:     "/ws",
		HttpOnly: true,
	}

	return cookie.Value, http.Header{"Set-Cookie": {cookie.String()}}
}
