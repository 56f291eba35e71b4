package service

import (
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

// Roster is the directory of live rooms.
type Roster struct {
	mu    sync.Mutex
	rooms map[string]*entity.Room
}

func NewRoster() *Roster {
	return &Roster{
		rooms: make(map[string]*entity.Room),
	}
}

func (that *Roster) Register(room *entity.Room) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.rooms[room.ID()] = room
}

func (that *Roster) Unregister(roomID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, roomID)
}

func (that *Roster) Lookup(roomID string) (*entity.Room, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]

	return room, ok
}
