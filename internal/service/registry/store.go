package registry

import (
	"context"
	"errors"

	"wildcard-party-be/internal/service/game"
)

var ErrCodeTaken = errors.New("room code already in use")

// Store is the backing document store of the registry. Update must run fn on
// a private copy of the room and persist the result atomically; when fn fails
// nothing is written. I/O failures are reported wrapped in
// game.ErrStorageUnavailable.
type Store interface {
	Insert(ctx context.Context, room game.Room) error
	Get(ctx context.Context, code string) (game.Room, error)
	Update(ctx context.Context, code string, fn func(room *game.Room) error) (game.Room, error)
	Delete(ctx context.Context, code string) error
	Codes(ctx context.Context) ([]string, error)
	Close() error
}
