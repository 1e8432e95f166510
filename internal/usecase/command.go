package usecase

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const (
	CommandCreate = "create"
	CommandJoin   = "join"
	CommandLeave  = "leave"
	CommandMove   = "move"
)

const (
	paramRoomID = "room_id"
	paramUserID = "user_id"
	paramRow    = "row"
	paramColumn = "column"
)

// Command is the decoded client request.
type Command struct {
	Command string            `json:"command"`
	Params  map[string]string `json:"params,omitempty"`
}

func (that *Command) param(name string) (string, error) {
	value := that.Params[name]
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", apperror.ErrMalformedCommand, name)
	}

	return value, nil
}

// cellParam - parses a board coordinate. Unparseable values are malformed,
// parseable ones outside the board are invalid moves.
func (that *Command) cellParam(name string) (int, error) {
	raw, err := that.param(name)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %s %s is out of range", apperror.ErrInvalidMove, name, raw)
	}

	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", apperror.ErrMalformedCommand, name)
	}

	if value >= entity.BoardSize {
		return 0, fmt.Errorf("%w: %s %d is out of range", apperror.ErrInvalidMove, name, value)
	}

	return int(value), nil
}
