package game

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memRegistry is a minimal Registry that applies patches under one mutex.
type memRegistry struct {
	mu      sync.Mutex
	rooms   map[string]Room
	builtIn []string
	nextID  int
	now     func() time.Time
}

func newMemRegistry(builtIn []string, now func() time.Time) *memRegistry {
	return &memRegistry{
		rooms:   make(map[string]Room),
		builtIn: builtIn,
		now:     now,
	}
}

func (mr *memRegistry) CreateRoom(ctx context.Context) (Room, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mr.nextID++
	room := NewRoom(fmt.Sprintf("R%04d", mr.nextID), mr.builtIn, mr.now())
	room.Version = 1
	mr.rooms[room.Code] = room

	return room.Clone(), nil
}

func (mr *memRegistry) OpenRoom(ctx context.Context, code string) (Room, error) {
	return mr.ReadRoom(ctx, code)
}

func (mr *memRegistry) ReadRoom(ctx context.Context, code string) (Room, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	room, ok := mr.rooms[code]
	if !ok {
		return Room{}, ErrRoomNotFound
	}

	return room.Clone(), nil
}

func (mr *memRegistry) ApplyUpdate(ctx context.Context, code string, patch Patch) (Room, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	room, ok := mr.rooms[code]
	if !ok {
		return Room{}, ErrRoomNotFound
	}

	next := room.Clone()
	if err := next.Apply(patch, mr.now()); err != nil {
		return Room{}, err
	}
	next.Version++
	mr.rooms[code] = next

	return next.Clone(), nil
}

func (mr *memRegistry) DestroyRoom(ctx context.Context, code string) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	delete(mr.rooms, code)

	return nil
}

func (mr *memRegistry) exists(code string) bool {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	_, ok := mr.rooms[code]
	return ok
}

// testClock ticks one millisecond per reading so join order is strict.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 12, 24, 20, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

type harness struct {
	ctx      context.Context
	clock    *testClock
	reg      *memRegistry
	presence *PresenceTracker
	coord    *Coordinator
}

func newHarness(t *testing.T, builtIn []string) *harness {
	t.Helper()

	clock := newTestClock()
	reg := newMemRegistry(builtIn, clock.Now)
	presence := NewPresenceTracker(reg, PresenceOptions{
		Timeout:   30 * time.Second,
		HostGrace: time.Minute,
		Now:       clock.Now,
	})
	coord := NewCoordinator(reg, presence, CoordinatorOptions{
		Random: NewSeededRandom(42, 7),
		Now:    clock.Now,
	})

	return &harness{
		ctx:      context.Background(),
		clock:    clock,
		reg:      reg,
		presence: presence,
		coord:    coord,
	}
}

// newRoomWith creates a room hosted by the first name and joins the rest.
func (h *harness) newRoomWith(t *testing.T, names ...string) (string, []Player) {
	t.Helper()

	host, room, err := h.coord.CreateRoom(h.ctx, names[0])
	require.NoError(t, err)

	players := []Player{host}
	for _, name := range names[1:] {
		p, _, err := h.coord.JoinRoom(h.ctx, room.Code, name, "")
		require.NoError(t, err)
		players = append(players, p)
	}

	return room.Code, players
}

func (h *harness) room(t *testing.T, code string) Room {
	t.Helper()

	room, err := h.reg.ReadRoom(h.ctx, code)
	require.NoError(t, err)
	return room
}

func (h *harness) settings(t *testing.T, code, hostID string, noRepeat, wildcard bool) {
	t.Helper()

	_, err := h.coord.SetSettings(h.ctx, code, hostID, SettingsPatch{
		NoRepeatActions: &noRepeat,
		UseWildcard:     &wildcard,
	})
	require.NoError(t, err)
}

// executeAll marks every Active non-wildcard assignment executed.
func (h *harness) executeAll(t *testing.T, code string) {
	t.Helper()

	room := h.room(t, code)
	for id, a := range room.Assignments {
		if a.IsWildcard || !room.IsActive(id) {
			continue
		}
		_, err := h.coord.MarkExecuted(h.ctx, code, id, true)
		require.NoError(t, err)
	}
}

func actionPool(n int) []string {
	actions := make([]string, 0, n)
	for i := range n {
		actions = append(actions, fmt.Sprintf("action-%02d", i))
	}
	return actions
}
