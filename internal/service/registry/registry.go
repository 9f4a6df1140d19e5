// Package registry allocates room codes and is the single choke-point through
// which room documents are read and patched.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wildcard-party-be/internal/service/game"

	"go.uber.org/zap"
)

const DEFAULT_CODE_ATTEMPTS = 8

type Options struct {
	CodeAttempts int
	BuiltIn      []string
	Random       *game.Random
	Now          func() time.Time
}

type Registry struct {
	store    Store
	attempts int
	builtIn  []string
	rnd      *game.Random
	now      func() time.Time

	mu        sync.Mutex
	subs      map[string]map[int]chan game.Room
	published map[string]int64
	nextSub   int
}

func New(store Store, opts Options) *Registry {
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = DEFAULT_CODE_ATTEMPTS
	}
	if opts.BuiltIn == nil {
		opts.BuiltIn = game.DefaultActions
	}
	if opts.Random == nil {
		opts.Random = game.NewRandom()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Registry{
		store:     store,
		attempts:  opts.CodeAttempts,
		builtIn:   opts.BuiltIn,
		rnd:       opts.Random,
		now:       opts.Now,
		subs:      make(map[string]map[int]chan game.Room),
		published: make(map[string]int64),
	}
}

// CreateRoom draws fresh codes until one is free, at most CodeAttempts times.
func (r *Registry) CreateRoom(ctx context.Context) (game.Room, error) {
	for attempt := 1; attempt <= r.attempts; attempt++ {
		code := NewCode(r.rnd)

		_, err := r.store.Get(ctx, code)
		if err == nil {
			zap.L().Debug("房间号冲突，重新生成", zap.String("room_code", code), zap.Int("attempt", attempt))
			continue
		}
		if !errors.Is(err, game.ErrRoomNotFound) {
			return game.Room{}, err
		}

		room := game.NewRoom(code, r.builtIn, r.now())
		room.Version = 1

		err = r.store.Insert(ctx, room)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return game.Room{}, err
		}

		return room, nil
	}

	return game.Room{}, game.ErrAllocationExhausted
}

// OpenRoom resolves user input to an existing room.
func (r *Registry) OpenRoom(ctx context.Context, code string) (game.Room, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return game.Room{}, game.ErrRoomNotFound
	}

	return r.store.Get(ctx, code)
}

// ReadRoom returns a point-in-time copy of the room.
func (r *Registry) ReadRoom(ctx context.Context, code string) (game.Room, error) {
	return r.store.Get(ctx, NormalizeCode(code))
}

// ApplyUpdate merges patch into the room atomically and publishes the result
// to subscribers.
func (r *Registry) ApplyUpdate(ctx context.Context, code string, patch game.Patch) (game.Room, error) {
	code = NormalizeCode(code)

	room, err := r.store.Update(ctx, code, func(room *game.Room) error {
		if err := room.Apply(patch, r.now()); err != nil {
			return err
		}
		room.Version++
		return nil
	})
	if err != nil {
		return game.Room{}, err
	}

	r.publish(room)

	return room, nil
}

// DestroyRoom is idempotent. Subscribers see their channel closed.
func (r *Registry) DestroyRoom(ctx context.Context, code string) error {
	code = NormalizeCode(code)

	if err := r.store.Delete(ctx, code); err != nil {
		return fmt.Errorf("destroy room %s: %w", code, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ch := range r.subs[code] {
		close(ch)
		delete(r.subs[code], id)
	}
	delete(r.subs, code)
	delete(r.published, code)

	return nil
}

func (r *Registry) Codes(ctx context.Context) ([]string, error) {
	return r.store.Codes(ctx)
}

// Subscribe delivers the room after every applied patch. Only the newest
// undelivered snapshot is kept, so consumers must compare versions and
// tolerate gaps. cancel is safe to call more than once.
//
// Only patches applied through this Registry are seen; a second process
// sharing the same SQLite file publishes to its own subscribers.
func (r *Registry) Subscribe(code string) (<-chan game.Room, func()) {
	code = NormalizeCode(code)
	ch := make(chan game.Room, 1)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	if r.subs[code] == nil {
		r.subs[code] = make(map[int]chan game.Room)
	}
	r.subs[code][id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if subs, ok := r.subs[code]; ok {
			if c, ok := subs[id]; ok {
				close(c)
				delete(subs, id)
			}
			if len(subs) == 0 {
				delete(r.subs, code)
			}
		}
	}

	return ch, cancel
}

func (r *Registry) publish(room game.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// concurrent updates may finish out of order; never publish backwards
	if room.Version <= r.published[room.Code] {
		return
	}
	r.published[room.Code] = room.Version

	for _, ch := range r.subs[room.Code] {
		select {
		case ch <- room.Clone():
		default:
			// 丢弃旧快照，只保留最新的
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- room.Clone():
			default:
			}
		}
	}
}
