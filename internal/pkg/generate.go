package pkg

import "github.com/google/uuid"

// GenerateRoomID - generates a unique identifier for a room.
func GenerateRoomID() string {
	return uuid.NewString()
}
