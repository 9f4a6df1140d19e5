package service

import (
	"errors"
	"time"

	"wildcard-party-be/internal/service/game"
)

var ErrInvalidRequest = errors.New("invalid request")

// isOrphaned reports a room nobody ever entered, e.g. when the creator's
// join failed right after the code was allocated.
func isOrphaned(room game.Room, now time.Time, grace time.Duration) bool {
	if len(room.Players) > 0 {
		return false
	}

	return now.Sub(room.CreatedAt) > grace
}

func isRoomGone(err error) bool {
	return errors.Is(err, game.ErrRoomNotFound)
}
