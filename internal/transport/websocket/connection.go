package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/eventbus"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
)

// connection pairs one socket with one bus subscription.
// Only the writer goroutine writes to the socket.
type connection struct {
	server *Server
	logger *slog.Logger
	ws     *websocket.Conn
	userID string

	sub    *eventbus.Subscription
	direct chan entity.Event
}

func newConnection(server *Server, ws *websocket.Conn, userID string) *connection {
	return &connection{
		server: server,
		logger: server.logger.With("userID", userID),
		ws:     ws,
		userID: userID,
		direct: make(chan entity.Event, directBufferSize),
	}
}

func (that *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before the greeting so nothing published after CONNECTED is missed.
	that.sub = that.server.bus.Subscribe(that.server.opts.BufferSize)
	defer that.sub.Close()

	that.direct <- entity.Event{Event: entity.EventConnected, UserID: that.userID}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		that.runWriter(ctx, cancel)
	}()

	that.readLoop(ctx)

	cancel()
	wg.Wait()
}

// runWriter - runs the write loop; its exit cancels ctx so a pending reply never blocks.
func (that *connection) runWriter(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	defer that.ws.Close()

	that.writeLoop(ctx)
}

// readLoop - decodes commands and hands them to the dispatcher.
func (that *connection) readLoop(ctx context.Context) {
	log := that.logger.With("method", "readLoop")

	pongWait := that.server.opts.PingPeriod * 10 / 9

	that.ws.SetReadLimit(that.server.opts.ReadLimit)
	_ = that.ws.SetReadDeadline(time.Now().Add(pongWait))
	that.ws.SetPongHandler(func(string) error {
		return that.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := that.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("unexpected close", "error", err)
			}
			return
		}

		var cmd usecase.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Info("failed to decode command", "error", err)
			that.reply(ctx, usecase.ErrorEvent("", that.userID,
				fmt.Errorf("%w: %w", apperror.ErrMalformedCommand, err)))
			continue
		}

		that.server.dispatcher.Dispatch(ctx, cmd)
	}
}

// reply - queues an event for this connection only.
func (that *connection) reply(ctx context.Context, event entity.Event) {
	select {
	case that.direct <- event:
	case <-ctx.Done():
	}
}

// writeLoop - drains direct replies and broadcast payloads and keeps the peer alive.
func (that *connection) writeLoop(ctx context.Context) {
	log := that.logger.With("method", "writeLoop")

	ticker := time.NewTicker(that.server.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			that.closeGracefully()
			return

		case event := <-that.direct:
			if err := that.writeEvent(event); err != nil {
				log.Info("failed to write reply", "error", err)
				return
			}

		case payload, ok := <-that.sub.C():
			if !ok {
				that.closeGracefully()
				return
			}

			if dropped := that.sub.TakeDropped(); dropped > 0 {
				log.Warn("subscriber lagged", "dropped", dropped)
				if err := that.writeEvent(lagNotice(dropped)); err != nil {
					log.Info("failed to write lag notice", "error", err)
					return
				}
			}

			if err := that.write(websocket.TextMessage, payload); err != nil {
				log.Info("failed to write event", "error", err)
				return
			}

		case <-ticker.C:
			if err := that.write(websocket.PingMessage, nil); err != nil {
				log.Info("failed to write ping", "error", err)
				return
			}
		}
	}
}

func (that *connection) writeEvent(event entity.Event) error {
	payload, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return that.write(websocket.TextMessage, payload)
}

func (that *connection) write(messageType int, payload []byte) error {
	if err := that.ws.SetWriteDeadline(time.Now().Add(that.server.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := that.ws.WriteMessage(messageType, payload); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *connection) closeGracefully() {
	_ = that.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(that.server.opts.WriteTimeout),
	)
}

// lagNotice - tells a slow client how many broadcasts it missed.
func lagNotice(dropped uint64) entity.Event {
	return entity.Event{
		Error:   apperror.ErrLagged.Error(),
		Code:    apperror.Code(apperror.ErrLagged),
		Dropped: dropped,
	}
}
