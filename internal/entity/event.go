package entity

const (
	EventConnected      = "CONNECTED"
	EventRoomCreated    = "ROOM_CREATED"
	EventRoomJoined     = "ROOM_JOINED"
	EventRoomLeft       = "ROOM_LEFT"
	EventGameStarted    = "GAME_STARTED"
	EventMoveRegistered = "MOVE_REGISTERED"
	EventGameFinished   = "GAME_FINISHED"
	EventRoomClosed     = "ROOM_CLOSED"
)

// Event is the envelope broadcast to every client. Either Event or Error is set.
type Event struct {
	RoomID string `json:"room_id,omitempty"`
	UserID string `json:"user_id,omitempty"`

	Event           string `json:"event,omitempty"`
	Character       Symbol `json:"character,omitempty"`
	BoardAfterMove  *Board `json:"board_after_move,omitempty"`
	WinnerUserID    string `json:"winner_user_id,omitempty"`
	WinnerCharacter Symbol `json:"winner_character,omitempty"`
	Draw            bool   `json:"draw,omitempty"`

	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Dropped uint64 `json:"dropped,omitempty"`
}

func (that *Event) IsError() bool {
	return that.Error != ""
}
