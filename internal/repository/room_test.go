package repository

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRepository_Create(t *testing.T) {
	// Given: an empty repository
	repo := NewRoomRepository()

	// When: two rooms are created
	first := repo.Create()
	second := repo.Create()

	// Then: they get distinct ids and start empty
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, repo.Len())

	err := repo.WithRoom(first, func(room *entity.Room) error {
		assert.Equal(t, first, room.ID)
		assert.True(t, room.IsEmpty())
		return nil
	})
	require.NoError(t, err)
}

func TestRoomRepository_Create_RetriesOnCollision(t *testing.T) {
	// Given: an id generator that repeats itself once
	ids := []string{"same", "same", "other"}
	repo := NewRoomRepository()
	repo.generateID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	// When: two rooms are created
	first := repo.Create()
	second := repo.Create()

	// Then: the second one skips the taken id
	assert.Equal(t, "same", first)
	assert.Equal(t, "other", second)
}

func TestRoomRepository_WithRoom(t *testing.T) {
	t.Run("Unknown id returns ErrRoomNotFound", func(t *testing.T) {
		// Given: an empty repository
		repo := NewRoomRepository()
		called := false

		// When: a missing room is accessed
		err := repo.WithRoom("missing", func(*entity.Room) error {
			called = true
			return nil
		})

		// Then: ErrRoomNotFound is returned and fn never runs
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.False(t, called)
	})

	t.Run("Returns the error of fn", func(t *testing.T) {
		// Given: a room
		repo := NewRoomRepository()
		id := repo.Create()
		errBoom := errors.New("boom")

		// When: fn fails
		err := repo.WithRoom(id, func(*entity.Room) error { return errBoom })

		// Then: the error is passed through
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("Mutations persist between calls", func(t *testing.T) {
		// Given: a room alice joined
		repo := NewRoomRepository()
		id := repo.Create()
		require.NoError(t, repo.WithRoom(id, func(room *entity.Room) error {
			_, err := room.Join("alice")
			return err
		}))

		// When: the room is read again
		var symbol entity.Symbol
		var ok bool
		require.NoError(t, repo.WithRoom(id, func(room *entity.Room) error {
			symbol, ok = room.SymbolOf("alice")
			return nil
		}))

		// Then: alice still holds X
		assert.True(t, ok)
		assert.Equal(t, entity.SymbolX, symbol)
	})
}

func TestRoomRepository_WithRoom_SerializesSameRoom(t *testing.T) {
	// Given: one room and many concurrent joiners
	repo := NewRoomRepository()
	id := repo.Create()

	const joiners = 50
	var inside atomic.Int32
	var overlapped atomic.Bool
	var seated atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.WithRoom(id, func(room *entity.Room) error {
				if inside.Add(1) > 1 {
					overlapped.Store(true)
				}
				defer inside.Add(-1)

				if room.IsFull() {
					return apperror.ErrRoomFull
				}
				if _, err := room.Join(fmt.Sprintf("player-%d", i)); err != nil {
					return err
				}
				seated.Add(1)
				return nil
			})
		}(i)
	}
	wg.Wait()

	// Then: closures never overlapped and exactly two players were seated
	assert.False(t, overlapped.Load())
	assert.Equal(t, int32(2), seated.Load())
}

func TestRoomRepository_WithRoom_DifferentRoomsDoNotBlock(t *testing.T) {
	// Given: two rooms, one of them held by a slow closure
	repo := NewRoomRepository()
	slow := repo.Create()
	fast := repo.Create()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = repo.WithRoom(slow, func(*entity.Room) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	// When: the other room is accessed
	done := make(chan error, 1)
	go func() {
		done <- repo.WithRoom(fast, func(*entity.Room) error { return nil })
	}()

	// Then: it completes while the first room is still locked
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("access to an unrelated room was blocked")
	}
}

func TestRoomRepository_Delete(t *testing.T) {
	t.Run("Deleted room is not found", func(t *testing.T) {
		// Given: a room
		repo := NewRoomRepository()
		id := repo.Create()

		// When: it is deleted
		require.NoError(t, repo.Delete(id))

		// Then: later access fails with ErrRoomNotFound
		err := repo.WithRoom(id, func(*entity.Room) error { return nil })
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.Equal(t, 0, repo.Len())
	})

	t.Run("Unknown id returns ErrRoomNotFound", func(t *testing.T) {
		// Given: an empty repository
		repo := NewRoomRepository()

		// When: a missing room is deleted
		err := repo.Delete("missing")

		// Then: ErrRoomNotFound is returned
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}
