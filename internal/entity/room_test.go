package entity

import (
	"encoding/json"
	"testing"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStartedRoom returns a room with alice on X, bob on O and the game started.
func newStartedRoom(t *testing.T) *Room {
	t.Helper()

	room := NewRoom("room-1")
	_, err := room.Join("alice")
	require.NoError(t, err)
	_, err = room.Join("bob")
	require.NoError(t, err)
	room.StartGame()

	return room
}

func TestRoom_Join(t *testing.T) {
	t.Run("Assigns X then O to distinct participants", func(t *testing.T) {
		// Given: an empty room
		room := NewRoom("room-1")

		// When: two participants join
		first, err := room.Join("alice")
		require.NoError(t, err)
		second, err := room.Join("bob")
		require.NoError(t, err)

		// Then: they should get X and O and the room should be full
		assert.Equal(t, SymbolX, first)
		assert.Equal(t, SymbolO, second)
		assert.True(t, room.IsFull())
		assert.False(t, room.IsEmpty())
	})

	t.Run("Third participant gets ErrRoomFull", func(t *testing.T) {
		// Given: a full room
		room := NewRoom("room-1")
		_, _ = room.Join("alice")
		_, _ = room.Join("bob")

		// When: a third participant joins
		symbol, err := room.Join("carol")

		// Then: ErrRoomFull should be returned
		require.ErrorIs(t, err, apperror.ErrRoomFull)
		assert.Equal(t, NoSymbol, symbol)
	})

	t.Run("Re-join returns the same seat", func(t *testing.T) {
		// Given: a room where alice already joined
		room := NewRoom("room-1")
		first, err := room.Join("alice")
		require.NoError(t, err)

		// When: alice joins again
		second, err := room.Join("alice")
		require.NoError(t, err)

		// Then: she keeps X and O stays free
		assert.Equal(t, first, second)
		assert.False(t, room.IsFull())
		_, ok := room.ParticipantOf(SymbolO)
		assert.False(t, ok)
	})

	t.Run("Empty participant is rejected", func(t *testing.T) {
		// Given: an empty room
		room := NewRoom("room-1")

		// When: an empty identity joins
		_, err := room.Join("")

		// Then: ErrMalformedCommand should be returned and no seat taken
		require.ErrorIs(t, err, apperror.ErrMalformedCommand)
		assert.True(t, room.IsEmpty())
	})
}

func TestRoom_Leave(t *testing.T) {
	t.Run("Frees seat O while seat X is empty", func(t *testing.T) {
		// Given: X left, only bob on O
		room := NewRoom("room-1")
		_, _ = room.Join("alice")
		_, _ = room.Join("bob")
		_, err := room.Leave("alice")
		require.NoError(t, err)

		// When: bob leaves
		symbol, err := room.Leave("bob")

		// Then: his O seat should be freed
		require.NoError(t, err)
		assert.Equal(t, SymbolO, symbol)
		assert.True(t, room.IsEmpty())
	})

	t.Run("Stranger gets ErrNotAMember", func(t *testing.T) {
		// Given: a room with one participant
		room := NewRoom("room-1")
		_, _ = room.Join("alice")

		// When: someone else leaves
		_, err := room.Leave("mallory")

		// Then: ErrNotAMember should be returned and alice keeps her seat
		require.ErrorIs(t, err, apperror.ErrNotAMember)
		symbol, ok := room.SymbolOf("alice")
		assert.True(t, ok)
		assert.Equal(t, SymbolX, symbol)
	})

	t.Run("Never succeeds once the game started", func(t *testing.T) {
		// Given: a started game
		room := newStartedRoom(t)

		// When: a seated participant leaves
		_, err := room.Leave("alice")

		// Then: ErrGameAlreadyStarted should be returned and seats stay filled
		require.ErrorIs(t, err, apperror.ErrGameAlreadyStarted)
		assert.True(t, room.IsFull())
	})
}

func TestRoom_StartGame(t *testing.T) {
	// Given: a full room that has not started
	room := NewRoom("room-1")
	_, _ = room.Join("alice")
	_, _ = room.Join("bob")
	require.False(t, room.HasStarted())
	assert.Equal(t, StatusWaiting, room.Status())

	// When: the game starts
	room.StartGame()

	// Then: X has the first turn
	assert.True(t, room.HasStarted())
	assert.Equal(t, SymbolX, room.Turn())
	assert.Equal(t, StatusOngoing, room.Status())
}

func TestRoom_RegisterMove(t *testing.T) {
	t.Run("Places the symbol and passes the turn", func(t *testing.T) {
		// Given: a started game
		room := newStartedRoom(t)

		// When: X moves to the center
		board, err := room.RegisterMove(1, 1, SymbolX)

		// Then: the board should hold X and it should be O's turn
		require.NoError(t, err)
		assert.Equal(t, SymbolX, board[1][1])
		assert.Equal(t, SymbolO, room.Turn())
	})

	t.Run("Occupied cell fails without mutation", func(t *testing.T) {
		// Given: a game where X holds the corner
		room := newStartedRoom(t)
		_, err := room.RegisterMove(0, 0, SymbolX)
		require.NoError(t, err)
		before := room.Board()

		// When: O moves to the same cell
		_, err = room.RegisterMove(0, 0, SymbolO)

		// Then: ErrInvalidMove should be returned and nothing changes
		require.ErrorIs(t, err, apperror.ErrInvalidMove)
		assert.Equal(t, before, room.Board())
		assert.Equal(t, SymbolO, room.Turn())
	})

	t.Run("Out of range cell fails", func(t *testing.T) {
		// Given: a started game
		room := newStartedRoom(t)

		// When: a move targets a cell outside the board
		_, err := room.RegisterMove(3, 0, SymbolX)

		// Then: ErrInvalidMove should be returned
		assert.ErrorIs(t, err, apperror.ErrInvalidMove)
	})

	t.Run("No move after the game finished", func(t *testing.T) {
		// Given: a game X has won on the top row
		room := newStartedRoom(t)
		playMoves(t, room, [][2]int{{0, 0}, {1, 1}, {0, 1}, {2, 2}, {0, 2}})
		require.True(t, room.CheckAndSetWinner().Decided())
		before := room.Board()

		// When: O tries to move
		_, err := room.RegisterMove(2, 0, SymbolO)

		// Then: ErrGameAlreadyFinished should be returned and nothing changes
		require.ErrorIs(t, err, apperror.ErrGameAlreadyFinished)
		assert.Equal(t, before, room.Board())
	})

	t.Run("Alternating moves keep symbol counts balanced", func(t *testing.T) {
		// Given: a started game
		room := newStartedRoom(t)
		cells := [][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 1}, {1, 0}, {1, 2}, {2, 1}, {2, 0}, {2, 2}}

		for _, c := range cells {
			// When: the player on turn moves
			board, err := room.RegisterMove(c[0], c[1], room.Turn())
			require.NoError(t, err)

			// Then: X leads O by zero or one
			diff := board.count(SymbolX) - board.count(SymbolO)
			assert.Contains(t, []int{0, 1}, diff)
		}
	})
}

func TestRoom_CheckAndSetWinner(t *testing.T) {
	t.Run("Top row for X", func(t *testing.T) {
		// Given: X completes the top row
		room := newStartedRoom(t)
		playMoves(t, room, [][2]int{{0, 0}, {1, 1}, {0, 1}, {2, 2}, {0, 2}})

		// When: the outcome is checked
		outcome := room.CheckAndSetWinner()

		// Then: X wins and alice is the winner
		assert.Equal(t, Outcome{Winner: SymbolX}, outcome)
		assert.True(t, room.HasFinished())
		winner, ok := room.ParticipantOf(outcome.Winner)
		assert.True(t, ok)
		assert.Equal(t, "alice", winner)
	})

	t.Run("Anti-diagonal for O", func(t *testing.T) {
		// Given: O completes the anti-diagonal
		room := newStartedRoom(t)
		playMoves(t, room, [][2]int{{0, 0}, {0, 2}, {0, 1}, {1, 1}, {2, 2}, {2, 0}})

		// When: the outcome is checked
		outcome := room.CheckAndSetWinner()

		// Then: O wins
		assert.Equal(t, SymbolO, outcome.Winner)
		assert.False(t, outcome.Draw)
	})

	t.Run("Full board without a line is a draw", func(t *testing.T) {
		// Given: a full board with no three in a row
		room := newStartedRoom(t)
		playMoves(t, room, [][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 1}, {1, 0}, {1, 2}, {2, 1}, {2, 0}, {2, 2}})

		// When: the outcome is checked
		outcome := room.CheckAndSetWinner()

		// Then: it should be a draw without a winner
		assert.Equal(t, Outcome{Draw: true}, outcome)
		assert.Equal(t, StatusFinished, room.Status())
	})

	t.Run("Ongoing game stays undecided", func(t *testing.T) {
		// Given: two moves on the board
		room := newStartedRoom(t)
		playMoves(t, room, [][2]int{{0, 0}, {1, 1}})

		// When: the outcome is checked
		outcome := room.CheckAndSetWinner()

		// Then: nothing is decided
		assert.False(t, outcome.Decided())
		assert.False(t, room.HasFinished())
	})

	t.Run("Second call keeps the winner", func(t *testing.T) {
		// Given: a game X has won
		room := newStartedRoom(t)
		playMoves(t, room, [][2]int{{0, 0}, {1, 1}, {0, 1}, {2, 2}, {0, 2}})
		first := room.CheckAndSetWinner()

		// When: the outcome is checked again
		second := room.CheckAndSetWinner()

		// Then: the same winner is reported and never downgraded to a draw
		assert.Equal(t, first, second)
		assert.False(t, second.Draw)
	})
}

func TestRoom_Snapshot(t *testing.T) {
	// Given: a started game with one move
	room := newStartedRoom(t)
	playMoves(t, room, [][2]int{{2, 1}})

	// When: a snapshot is taken and the room keeps changing
	snapshot := room.Snapshot()
	playMoves(t, room, [][2]int{{0, 0}})

	// Then: the snapshot is detached from the room
	assert.Equal(t, "room-1", snapshot.ID)
	assert.Equal(t, "alice", snapshot.PlayerX)
	assert.Equal(t, "bob", snapshot.PlayerO)
	assert.Equal(t, SymbolX, snapshot.Board[2][1])
	assert.Equal(t, NoSymbol, snapshot.Board[0][0])
	assert.Equal(t, SymbolO, snapshot.Turn)
	assert.Equal(t, StatusOngoing, snapshot.Status)
}

func TestRoom_Version(t *testing.T) {
	t.Run("Every mutation bumps the version", func(t *testing.T) {
		// Given: an empty room
		room := NewRoom("room-1")
		require.Zero(t, room.Version())

		// When: it goes through joins, a leave, a start and a winning game
		_, err := room.Join("alice")
		require.NoError(t, err)
		_, err = room.Join("carol")
		require.NoError(t, err)
		_, err = room.Leave("carol")
		require.NoError(t, err)
		_, err = room.Join("bob")
		require.NoError(t, err)
		room.StartGame()
		require.Equal(t, uint64(5), room.Version())

		for _, m := range [][2]int{{0, 0}, {1, 1}, {0, 1}, {2, 2}, {0, 2}} {
			_, err = room.RegisterMove(m[0], m[1], room.Turn())
			require.NoError(t, err)
		}
		room.CheckAndSetWinner()

		// Then: five moves and the outcome add six, and snapshots carry it
		assert.Equal(t, uint64(11), room.Version())
		assert.Equal(t, uint64(11), room.Snapshot().Version)
	})

	t.Run("Rejected operations leave the version alone", func(t *testing.T) {
		// Given: a started game with one mark
		room := newStartedRoom(t)
		_, err := room.RegisterMove(1, 1, SymbolX)
		require.NoError(t, err)
		before := room.Version()

		// When: nothing legal is asked of it
		_, _ = room.Join("alice")
		_, _ = room.Join("carol")
		_, _ = room.Leave("bob")
		_, _ = room.RegisterMove(1, 1, SymbolO)
		room.CheckAndSetWinner()

		// Then: the version has not moved
		assert.Equal(t, before, room.Version())
	})
}

func TestSymbol_JSON(t *testing.T) {
	// Given: a board with one X
	var board Board
	board[0][0] = SymbolX

	// When: it is encoded
	data, err := json.Marshal(board)
	require.NoError(t, err)

	// Then: empty cells are null
	assert.JSONEq(t, `[["X",null,null],[null,null,null],[null,null,null]]`, string(data))

	var decoded Board
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, board, decoded)
	assert.Error(t, json.Unmarshal([]byte(`"Z"`), new(Symbol)))
}

// playMoves applies moves for whoever is on turn.
func playMoves(t *testing.T, room *Room, cells [][2]int) {
	t.Helper()

	for _, c := range cells {
		_, err := room.RegisterMove(c[0], c[1], room.Turn())
		require.NoError(t, err)
	}
}
