package registry

import (
	"context"
	"sort"
	"sync"

	"wildcard-party-be/internal/service/game"
)

type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]game.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]game.Room),
	}
}

func (ms *MemoryStore) Insert(ctx context.Context, room game.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.rooms[room.Code]; exists {
		return ErrCodeTaken
	}

	ms.rooms[room.Code] = room.Clone()

	return nil
}

func (ms *MemoryStore) Get(ctx context.Context, code string) (game.Room, error) {
	if err := ctx.Err(); err != nil {
		return game.Room{}, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	room, ok := ms.rooms[code]
	if !ok {
		return game.Room{}, game.ErrRoomNotFound
	}

	return room.Clone(), nil
}

func (ms *MemoryStore) Update(ctx context.Context, code string, fn func(room *game.Room) error) (game.Room, error) {
	if err := ctx.Err(); err != nil {
		return game.Room{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	cur, ok := ms.rooms[code]
	if !ok {
		return game.Room{}, game.ErrRoomNotFound
	}

	next := cur.Clone()
	if err := fn(&next); err != nil {
		return game.Room{}, err
	}

	ms.rooms[code] = next

	return next.Clone(), nil
}

func (ms *MemoryStore) Delete(ctx context.Context, code string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.rooms, code)

	return nil
}

func (ms *MemoryStore) Codes(ctx context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	codes := make([]string, 0, len(ms.rooms))
	for code := range ms.rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	return codes, nil
}

func (ms *MemoryStore) Close() error {
	return nil
}
