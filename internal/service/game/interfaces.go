package game

import "context"

// Registry is the room store the coordinator and presence tracker work
// against. ApplyUpdate returns the room as it is after the patch.
type Registry interface {
	CreateRoom(ctx context.Context) (Room, error)
	OpenRoom(ctx context.Context, code string) (Room, error)
	ReadRoom(ctx context.Context, code string) (Room, error)
	ApplyUpdate(ctx context.Context, code string, patch Patch) (Room, error)
	DestroyRoom(ctx context.Context, code string) error
}
