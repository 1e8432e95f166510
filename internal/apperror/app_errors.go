package apperror

import "errors"

var (
	ErrRoomFull            = errors.New("room is already full")
	ErrRoomNotFound        = errors.New("room not found")
	ErrNotAMember          = errors.New("user never joined this room")
	ErrGameAlreadyStarted  = errors.New("game has already started")
	ErrGameAlreadyFinished = errors.New("game has already finished")
	ErrGameIsNotStarted    = errors.New("game is not started")
	ErrInvalidMove         = errors.New("invalid move")
	ErrNotYourTurn         = errors.New("it's not your turn")
	ErrMalformedCommand    = errors.New("malformed command")
	ErrLagged              = errors.New("client fell behind, events were dropped")
)

const CodeInternal = "INTERNAL"

var codes = []struct {
	err  error
	code string
}{
	{ErrRoomFull, "ROOM_FULL"},
	{ErrRoomNotFound, "ROOM_NOT_FOUND"},
	{ErrNotAMember, "NOT_A_MEMBER"},
	{ErrGameAlreadyStarted, "GAME_ALREADY_STARTED"},
	{ErrGameAlreadyFinished, "GAME_ALREADY_FINISHED"},
	{ErrGameIsNotStarted, "GAME_NOT_STARTED"},
	{ErrInvalidMove, "INVALID_MOVE"},
	{ErrNotYourTurn, "NOT_YOUR_TURN"},
	{ErrMalformedCommand, "MALFORMED_COMMAND"},
	{ErrLagged, "LAGGED"},
}

// Code - returns the wire code of the first known error wrapped by err.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}

	return CodeInternal
}
