package entity

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
)

const (
	StatusEmpty    = "empty"
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

const BoardSize = 3

// Symbol is the mark a seat places on the board.
type Symbol string

const (
	NoSymbol Symbol = ""
	SymbolX  Symbol = "X"
	SymbolO  Symbol = "O"
)

// Other - returns the opposite symbol.
func (that Symbol) Other() Symbol {
	switch that {
	case SymbolX:
		return SymbolO
	case SymbolO:
		return SymbolX
	default:
		return NoSymbol
	}
}

func (that Symbol) Valid() bool {
	return that == SymbolX || that == SymbolO
}

// MarshalJSON encodes an empty symbol as null.
func (that Symbol) MarshalJSON() ([]byte, error) {
	if that == NoSymbol {
		return []byte("null"), nil
	}

	return json.Marshal(string(that))
}

func (that *Symbol) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*that = NoSymbol
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal symbol: %w", err)
	}

	symbol := Symbol(raw)
	if symbol != NoSymbol && !symbol.Valid() {
		return fmt.Errorf("unknown symbol %q", raw)
	}

	*that = symbol

	return nil
}

// Board is indexed as board[row][column].
type Board [BoardSize][BoardSize]Symbol

func (that *Board) count(symbol Symbol) int {
	n := 0
	for _, row := range that {
		for _, cell := range row {
			if cell == symbol {
				n++
			}
		}
	}
	return n
}

func (that *Board) isFull() bool {
	return that.count(NoSymbol) == 0
}

type cell struct{ row, column int }

// winLines are checked in order: rows top to bottom, columns left to right,
// main diagonal, anti-diagonal.
var winLines = [8][3]cell{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Outcome is the terminal result of a room. The zero value means undecided.
type Outcome struct {
	Winner Symbol
	Draw   bool
}

func (that Outcome) Decided() bool {
	return that.Winner != NoSymbol || that.Draw
}

// Room is one game between two participants.
type Room struct {
	ID string

	playerX string
	playerO string

	board   Board
	turn    Symbol
	outcome Outcome

	// version grows by one on every mutation.
	version uint64
}

func NewRoom(id string) *Room {
	return &Room{ID: id}
}

// Join - seats the participant, X first, then O. Re-joining returns the held seat.
func (that *Room) Join(participant string) (Symbol, error) {
	if participant == "" {
		return NoSymbol, fmt.Errorf("%w: empty participant", apperror.ErrMalformedCommand)
	}

	if symbol, ok := that.SymbolOf(participant); ok {
		return symbol, nil
	}

	if that.HasFinished() {
		return NoSymbol, apperror.ErrGameAlreadyFinished
	}

	switch {
	case that.playerX == "":
		that.playerX = participant
		that.version++
		return SymbolX, nil
	case that.playerO == "":
		that.playerO = participant
		that.version++
		return SymbolO, nil
	default:
		return NoSymbol, apperror.ErrRoomFull
	}
}

// Leave - frees the seat held by the participant.
func (that *Room) Leave(participant string) (Symbol, error) {
	if that.HasStarted() {
		return NoSymbol, apperror.ErrGameAlreadyStarted
	}

	if participant != "" && that.playerX == participant {
		that.playerX = ""
		that.version++
		return SymbolX, nil
	}

	if participant != "" && that.playerO == participant {
		that.playerO = ""
		that.version++
		return SymbolO, nil
	}

	return NoSymbol, apperror.ErrNotAMember
}

func (that *Room) IsFull() bool {
	return that.playerX != "" && that.playerO != ""
}

func (that *Room) IsEmpty() bool {
	return that.playerX == "" && that.playerO == ""
}

// StartGame - hands the first turn to X. Callers invoke it once, when the room first fills.
func (that *Room) StartGame() {
	that.turn = SymbolX
	that.version++
}

func (that *Room) HasStarted() bool {
	return that.turn != NoSymbol
}

func (that *Room) HasFinished() bool {
	return that.outcome.Decided()
}

func (that *Room) Turn() Symbol {
	return that.turn
}

func (that *Room) Outcome() Outcome {
	return that.outcome
}

// Version - mutation counter, compared by snapshot stores to keep the newest state.
func (that *Room) Version() uint64 {
	return that.version
}

func (that *Room) Board() Board {
	return that.board
}

func (that *Room) SymbolOf(participant string) (Symbol, bool) {
	switch {
	case participant == "":
		return NoSymbol, false
	case that.playerX == participant:
		return SymbolX, true
	case that.playerO == participant:
		return SymbolO, true
	default:
		return NoSymbol, false
	}
}

func (that *Room) ParticipantOf(symbol Symbol) (string, bool) {
	switch symbol {
	case SymbolX:
		return that.playerX, that.playerX != ""
	case SymbolO:
		return that.playerO, that.playerO != ""
	default:
		return "", false
	}
}

// RegisterMove - places symbol on an empty cell and passes the turn.
// Turn order is the caller's concern.
func (that *Room) RegisterMove(row, column int, symbol Symbol) (Board, error) {
	if that.HasFinished() {
		return that.board, apperror.ErrGameAlreadyFinished
	}

	if !symbol.Valid() {
		return that.board, fmt.Errorf("%w: unknown symbol %q", apperror.ErrInvalidMove, symbol)
	}

	if row < 0 || row >= BoardSize || column < 0 || column >= BoardSize {
		return that.board, fmt.Errorf("%w: cell (%d, %d) is out of range", apperror.ErrInvalidMove, row, column)
	}

	if that.board[row][column] != NoSymbol {
		return that.board, fmt.Errorf("%w: cell (%d, %d) is occupied", apperror.ErrInvalidMove, row, column)
	}

	that.board[row][column] = symbol
	that.turn = symbol.Other()
	that.version++

	return that.board, nil
}

// CheckAndSetWinner - decides the outcome from the board. Once decided it never changes.
func (that *Room) CheckAndSetWinner() Outcome {
	if that.outcome.Decided() {
		return that.outcome
	}

	for _, line := range winLines {
		a := that.board[line[0].row][line[0].column]
		b := that.board[line[1].row][line[1].column]
		c := that.board[line[2].row][line[2].column]
		if a != NoSymbol && a == b && b == c {
			that.outcome = Outcome{Winner: a}
			that.version++
			return that.outcome
		}
	}

	if that.board.isFull() {
		that.outcome = Outcome{Draw: true}
		that.version++
	}

	return that.outcome
}

func (that *Room) Status() string {
	switch {
	case that.HasFinished():
		return StatusFinished
	case that.HasStarted():
		return StatusOngoing
	case that.IsEmpty():
		return StatusEmpty
	default:
		return StatusWaiting
	}
}

// RoomSnapshot is a detached copy of a room, safe to use outside the registry.
type RoomSnapshot struct {
	ID      string `json:"room_id"`
	PlayerX string `json:"player_x,omitempty"`
	PlayerO string `json:"player_o,omitempty"`
	Board   Board  `json:"board"`
	Turn    Symbol `json:"turn"`
	Winner  Symbol `json:"winner"`
	Draw    bool   `json:"draw"`
	Status  string `json:"status"`
	Version uint64 `json:"version"`
}

func (that *Room) Snapshot() *RoomSnapshot {
	return &RoomSnapshot{
		ID:      that.ID,
		PlayerX: that.playerX,
		PlayerO: that.playerO,
		Board:   that.board,
		Turn:    that.turn,
		Winner:  that.outcome.Winner,
		Draw:    that.outcome.Draw,
		Status:  that.Status(),
		Version: that.version,
	}
}
