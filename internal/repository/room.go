package repository

import (
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/pkg"
)

type roomEntry struct {
	mu      sync.Mutex
	room    *entity.Room
	deleted bool
}

// RoomRepository owns every live room. Rooms are only reachable through WithRoom.
type RoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry

	generateID func() string
}

func NewRoomRepository() *RoomRepository {
	return &RoomRepository{
		rooms:      make(map[string]*roomEntry),
		generateID: pkg.GenerateRoomID,
	}
}

// Create - registers an empty room under a fresh id.
func (that *RoomRepository) Create() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	id := that.generateID()
	for that.rooms[id] != nil {
		id = that.generateID()
	}

	that.rooms[id] = &roomEntry{room: entity.NewRoom(id)}

	return id
}

// WithRoom - runs fn with exclusive access to the room. Calls for the same id are
// serialized; calls for different ids only share the map lookup.
// fn must not retain the room or block on anything outside the room.
func (that *RoomRepository) WithRoom(id string, fn func(room *entity.Room) error) error {
	that.mu.RLock()
	entry, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return apperror.ErrRoomNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.deleted {
		return apperror.ErrRoomNotFound
	}

	return fn(entry.room)
}

// Delete - removes the room. A WithRoom already holding the room finishes first.
func (that *RoomRepository) Delete(id string) error {
	that.mu.Lock()
	entry, ok := that.rooms[id]
	delete(that.rooms, id)
	that.mu.Unlock()

	if !ok {
		return apperror.ErrRoomNotFound
	}

	entry.mu.Lock()
	entry.deleted = true
	entry.mu.Unlock()

	return nil
}

func (that *RoomRepository) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}
