package game

import "errors"

var (
	ErrAllocationExhausted = errors.New("could not allocate a unique room code")
	ErrRoomNotFound        = errors.New("room not found")
	ErrNameTaken           = errors.New("name is already taken in this room")
	ErrNotHost             = errors.New("only the host can do that")
	ErrCannotRemoveHost    = errors.New("the host cannot be removed")
	ErrInsufficientPlayers = errors.New("at least 2 active players are needed to start")
	ErrInsufficientActions = errors.New("not enough enabled actions for every active player")
	ErrOutOfActions        = errors.New("ran out of actions to draw")
	ErrStorageUnavailable  = errors.New("room storage unavailable")

	ErrConflict        = errors.New("room changed concurrently")
	ErrGameStarted     = errors.New("game already started")
	ErrGameNotStarted  = errors.New("game has not started")
	ErrJoinLocked      = errors.New("room is locked for new players")
	ErrInvalidName     = errors.New("invalid display name")
	ErrInvalidAction   = errors.New("invalid action")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrPlayerExists    = errors.New("player already exists")
	ErrNoAssignment    = errors.New("player has no assignment this round")
	ErrInvalidSettings = errors.New("invalid settings")
)
