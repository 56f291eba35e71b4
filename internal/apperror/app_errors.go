package apperror

import "errors"

var (
	ErrNameInUse       = errors.New("name already in use")
	ErrRoomFull        = errors.New("room already has two players")
	ErrUnknownPlayer   = errors.New("player is not seated in this room")
	ErrGameNotRunning  = errors.New("game is not running")
	ErrNotYourTurn     = errors.New("it's not your turn")
	ErrInvalidPosition = errors.New("invalid cell index")
	ErrCellOccupied    = errors.New("cell is already occupied")

	ErrOpponentNotFound = errors.New("opponent not found")
	ErrUnknownAction    = errors.New("unknown action")
)
