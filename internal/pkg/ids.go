package pkg

import "github.com/google/uuid"

// GenerateRoomID - generates a time-ordered unique identifier for the room.
func GenerateRoomID() string {
	return newTimeOrderedID()
}

// GenerateNewSessionID - generates a time-ordered unique identifier for a participant.
func GenerateNewSessionID() string {
	return newTimeOrderedID()
}

func newTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
