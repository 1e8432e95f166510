package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
)

const snapshotTimeout = 2 * time.Second

type roomRegistry interface {
	Create() string
	WithRoom(id string, fn func(room *entity.Room) error) error
	Delete(id string) error
}

type publisher interface {
	Publish(payload []byte)
}

type snapshotRepo interface {
	Save(ctx context.Context, snapshot *entity.RoomSnapshot) error
	DeleteByID(ctx context.Context, id string) error
}

// Dispatcher turns commands into room mutations and broadcast events.
type Dispatcher struct {
	logger *slog.Logger

	rooms     roomRegistry
	bus       publisher
	snapshots snapshotRepo
}

func NewDispatcher(logger *slog.Logger, rooms roomRegistry, bus publisher, snapshots snapshotRepo) *Dispatcher {
	return &Dispatcher{
		logger:    logger.With("component", "dispatcher"),
		rooms:     rooms,
		bus:       bus,
		snapshots: snapshots,
	}
}

// Dispatch - handles one command, publishes the resulting events and returns them.
// Events of an applied command are published while the room is still locked, so
// subscribers see them in the order the room applied them.
// The command runs to completion even if ctx is canceled.
func (that *Dispatcher) Dispatch(ctx context.Context, cmd Command) []entity.Event {
	ctx = context.WithoutCancel(ctx)

	var (
		events   []entity.Event
		snapshot *entity.RoomSnapshot
	)

	switch cmd.Command {
	case CommandCreate:
		events, snapshot = that.handleCreate()
	case CommandJoin:
		events, snapshot = that.handleJoin(cmd)
	case CommandLeave:
		events, snapshot = that.handleLeave(cmd)
	case CommandMove:
		events, snapshot = that.handleMove(cmd)
	default:
		err := fmt.Errorf("%w: unknown command %q", apperror.ErrMalformedCommand, cmd.Command)
		events = that.reject(cmd, cmd.Params[paramRoomID], cmd.Params[paramUserID], err)
	}

	if snapshot != nil {
		that.saveSnapshot(ctx, snapshot)
	}

	return events
}

func (that *Dispatcher) handleCreate() ([]entity.Event, *entity.RoomSnapshot) {
	roomID := that.rooms.Create()

	events := []entity.Event{{RoomID: roomID, Event: entity.EventRoomCreated}}

	var snapshot *entity.RoomSnapshot
	if err := that.rooms.WithRoom(roomID, func(room *entity.Room) error {
		that.publish(events)
		snapshot = room.Snapshot()
		return nil
	}); err != nil {
		that.logger.Warn("room vanished right after creation", "roomID", roomID, "error", err)
		that.publish(events)
		return events, nil
	}

	that.logger.Info("room created", "roomID", roomID)

	return events, snapshot
}

func (that *Dispatcher) handleJoin(cmd Command) ([]entity.Event, *entity.RoomSnapshot) {
	roomID, userID, err := roomAndUser(cmd)
	if err != nil {
		return that.reject(cmd, roomID, userID, err), nil
	}

	var (
		events   []entity.Event
		snapshot *entity.RoomSnapshot
	)

	err = that.rooms.WithRoom(roomID, func(room *entity.Room) error {
		if room.HasStarted() {
			return apperror.ErrGameAlreadyStarted
		}

		if room.IsFull() {
			return apperror.ErrRoomFull
		}

		symbol, err := room.Join(userID)
		if err != nil {
			return err
		}

		events = append(events, entity.Event{
			RoomID:    roomID,
			UserID:    userID,
			Event:     entity.EventRoomJoined,
			Character: symbol,
		})

		if room.IsFull() {
			room.StartGame()
			events = append(events, entity.Event{RoomID: roomID, Event: entity.EventGameStarted})
		}

		that.publish(events)
		snapshot = room.Snapshot()

		return nil
	})
	if err != nil {
		return that.reject(cmd, roomID, userID, err), nil
	}

	return events, snapshot
}

func (that *Dispatcher) handleLeave(cmd Command) ([]entity.Event, *entity.RoomSnapshot) {
	roomID, userID, err := roomAndUser(cmd)
	if err != nil {
		return that.reject(cmd, roomID, userID, err), nil
	}

	var (
		events   []entity.Event
		snapshot *entity.RoomSnapshot
	)

	err = that.rooms.WithRoom(roomID, func(room *entity.Room) error {
		if room.HasStarted() {
			return apperror.ErrGameAlreadyStarted
		}

		symbol, err := room.Leave(userID)
		if err != nil {
			return err
		}

		events = []entity.Event{{
			RoomID:    roomID,
			UserID:    userID,
			Event:     entity.EventRoomLeft,
			Character: symbol,
		}}

		that.publish(events)
		snapshot = room.Snapshot()

		return nil
	})
	if err != nil {
		return that.reject(cmd, roomID, userID, err), nil
	}

	return events, snapshot
}

func (that *Dispatcher) handleMove(cmd Command) ([]entity.Event, *entity.RoomSnapshot) {
	roomID, userID, err := roomAndUser(cmd)
	if err != nil {
		return that.reject(cmd, roomID, userID, err), nil
	}

	row, err := cmd.cellParam(paramRow)
	if err != nil {
		return that.reject(cmd, roomID, userID, err), nil
	}

	column, err := cmd.cellParam(paramColumn)
	if err != nil {
		return that.reject(cmd, roomID, userID, err), nil
	}

	var (
		events   []entity.Event
		snapshot *entity.RoomSnapshot
	)

	err = that.rooms.WithRoom(roomID, func(room *entity.Room) error {
		if room.HasFinished() {
			return apperror.ErrGameAlreadyFinished
		}

		symbol, ok := room.SymbolOf(userID)
		if !ok {
			return apperror.ErrNotAMember
		}

		if !room.HasStarted() {
			return apperror.ErrGameIsNotStarted
		}

		if room.Turn() != symbol {
			return apperror.ErrNotYourTurn
		}

		board, err := room.RegisterMove(row, column, symbol)
		if err != nil {
			return err
		}

		events = append(events, entity.Event{
			RoomID:         roomID,
			UserID:         userID,
			Event:          entity.EventMoveRegistered,
			BoardAfterMove: &board,
		})

		outcome := room.CheckAndSetWinner()
		switch {
		case outcome.Winner != entity.NoSymbol:
			winner, _ := room.ParticipantOf(outcome.Winner)
			events = append(events, entity.Event{
				RoomID:          roomID,
				UserID:          userID,
				Event:           entity.EventGameFinished,
				WinnerUserID:    winner,
				WinnerCharacter: outcome.Winner,
			})
		case outcome.Draw:
			events = append(events, entity.Event{
				RoomID: roomID,
				UserID: userID,
				Event:  entity.EventGameFinished,
				Draw:   true,
			})
		}

		that.publish(events)
		snapshot = room.Snapshot()

		return nil
	})
	if err != nil {
		return that.reject(cmd, roomID, userID, err), nil
	}

	return events, snapshot
}

func (that *Dispatcher) reject(cmd Command, roomID, userID string, err error) []entity.Event {
	that.logger.Info("command rejected",
		"command", cmd.Command, "roomID", roomID, "userID", userID, "code", apperror.Code(err), "error", err)

	events := []entity.Event{ErrorEvent(roomID, userID, err)}
	that.publish(events)

	return events
}

// DeleteRoom - drops the room from the registry and its snapshot from the store.
// Commands already holding the room finish first; later ones see ROOM_NOT_FOUND.
func (that *Dispatcher) DeleteRoom(ctx context.Context, roomID string) error {
	log := that.logger.With("method", "DeleteRoom")

	if err := that.rooms.Delete(roomID); err != nil {
		return fmt.Errorf("failed to delete room %q: %w", roomID, err)
	}

	that.publish([]entity.Event{{RoomID: roomID, Event: entity.EventRoomClosed}})

	if that.snapshots != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
		defer cancel()

		if err := that.snapshots.DeleteByID(ctx, roomID); err != nil && !errors.Is(err, repository.ErrSnapshotNotFound) {
			log.Error("failed to delete room snapshot", "roomID", roomID, "error", err)
		}
	}

	log.Info("room deleted", "roomID", roomID)

	return nil
}

func (that *Dispatcher) publish(events []entity.Event) {
	log := that.logger.With("method", "publish")

	for i := range events {
		payload, err := json.Marshal(&events[i])
		if err != nil {
			log.Error("failed to marshal event", "event", events[i].Event, "error", err)
			continue
		}

		that.bus.Publish(payload)
	}
}

func (that *Dispatcher) saveSnapshot(ctx context.Context, snapshot *entity.RoomSnapshot) {
	if that.snapshots == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	if err := that.snapshots.Save(ctx, snapshot); err != nil {
		that.logger.Error("failed to save room snapshot", "roomID", snapshot.ID, "error", err)
	}
}

func roomAndUser(cmd Command) (string, string, error) {
	roomID, err := cmd.param(paramRoomID)
	if err != nil {
		return cmd.Params[paramRoomID], cmd.Params[paramUserID], err
	}

	userID, err := cmd.param(paramUserID)
	if err != nil {
		return roomID, "", err
	}

	return roomID, userID, nil
}

// ErrorEvent - builds the broadcast form of a command failure.
func ErrorEvent(roomID, userID string, err error) entity.Event {
	return entity.Event{
		RoomID: roomID,
		UserID: userID,
		Error:  err.Error(),
		Code:   apperror.Code(err),
	}
}
