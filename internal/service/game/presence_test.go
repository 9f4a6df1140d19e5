package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessLost_KeepsMembership(t *testing.T) {
	h := newHarness(t, actionPool(5))
	code, ps := h.newRoomWith(t, "Ana", "Ben", "Cai")

	for _, p := range ps {
		require.NoError(t, h.presence.OnLivenessLost(h.ctx, code, p.ID))
	}
	// 重复调用无副作用
	require.NoError(t, h.presence.OnLivenessLost(h.ctx, code, ps[0].ID))

	require.True(t, h.reg.exists(code), "losing every connection must not destroy the room")

	room := h.room(t, code)
	assert.Len(t, room.ActivePlayers(), 3)
	assert.Equal(t, ps[0].ID, room.HostPlayerID)
	for _, p := range room.ActivePlayers() {
		assert.False(t, p.Presence.Online)
	}

	err := h.presence.OnLivenessLost(h.ctx, code, "ghost")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	require.NoError(t, h.presence.RegisterHeartbeat(h.ctx, code, ps[1].ID))
	assert.True(t, h.room(t, code).Players[ps[1].ID].Presence.Online)
}

func TestExplicitLeave_HostSuccessionAndDestroy(t *testing.T) {
	h := newHarness(t, actionPool(5))
	code, ps := h.newRoomWith(t, "Ana", "Ben", "Cai")

	require.NoError(t, h.presence.OnLivenessLost(h.ctx, code, ps[1].ID))

	destroyed, err := h.presence.ExplicitLeave(h.ctx, code, ps[0].ID)
	require.NoError(t, err)
	assert.False(t, destroyed)

	room := h.room(t, code)
	assert.Equal(t, MEMBERSHIP_LEFT, room.Players[ps[0].ID].Membership)
	assert.Equal(t, ps[2].ID, room.HostPlayerID, "an online player is preferred over an earlier offline one")

	destroyed, err = h.presence.ExplicitLeave(h.ctx, code, ps[0].ID)
	require.NoError(t, err)
	assert.False(t, destroyed)

	err = h.presence.RegisterHeartbeat(h.ctx, code, ps[0].ID)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	assert.False(t, h.room(t, code).Players[ps[0].ID].Presence.Online)

	destroyed, err = h.presence.ExplicitLeave(h.ctx, code, ps[1].ID)
	require.NoError(t, err)
	assert.False(t, destroyed)
	assert.Equal(t, ps[2].ID, h.room(t, code).HostPlayerID)

	destroyed, err = h.presence.ExplicitLeave(h.ctx, code, ps[2].ID)
	require.NoError(t, err)
	assert.True(t, destroyed)
	assert.False(t, h.reg.exists(code))
}

func TestExplicitLeave_FallsBackToOfflineSuccessor(t *testing.T) {
	h := newHarness(t, actionPool(5))
	code, ps := h.newRoomWith(t, "Ana", "Ben")

	require.NoError(t, h.presence.OnLivenessLost(h.ctx, code, ps[1].ID))

	_, err := h.presence.ExplicitLeave(h.ctx, code, ps[0].ID)
	require.NoError(t, err)

	assert.Equal(t, ps[1].ID, h.room(t, code).HostPlayerID)
}

func TestExplicitLeave_StripsAssignment(t *testing.T) {
	h := newHarness(t, actionPool(10))
	code, ps := h.newRoomWith(t, "Ana", "Ben", "Cai")
	h.settings(t, code, ps[0].ID, true, false)

	_, err := h.coord.StartGame(h.ctx, code, ps[0].ID)
	require.NoError(t, err)

	_, err = h.coord.MarkExecuted(h.ctx, code, ps[0].ID, true)
	require.NoError(t, err)
	_, err = h.coord.MarkExecuted(h.ctx, code, ps[1].ID, true)
	require.NoError(t, err)

	_, err = h.coord.Leave(h.ctx, code, ps[2].ID)
	require.NoError(t, err)

	room := h.room(t, code)
	assert.NotContains(t, room.Assignments, ps[2].ID)
	assert.True(t, IsRoundComplete(room))
}

func TestSweep_MarksStalePlayersOffline(t *testing.T) {
	h := newHarness(t, actionPool(5))
	code, ps := h.newRoomWith(t, "Ana", "Ben", "Cai")

	h.clock.Advance(31 * time.Second)
	require.NoError(t, h.presence.RegisterHeartbeat(h.ctx, code, ps[2].ID))
	require.NoError(t, h.presence.Sweep(h.ctx, code))

	room := h.room(t, code)
	assert.False(t, room.Players[ps[0].ID].Presence.Online)
	assert.False(t, room.Players[ps[1].ID].Presence.Online)
	assert.True(t, room.Players[ps[2].ID].Presence.Online)
	assert.Len(t, room.ActivePlayers(), 3)
	assert.Equal(t, ps[0].ID, room.HostPlayerID, "host is still within grace")

	h.clock.Advance(40 * time.Second)
	require.NoError(t, h.presence.RegisterHeartbeat(h.ctx, code, ps[2].ID))
	require.NoError(t, h.presence.Sweep(h.ctx, code))

	assert.Equal(t, ps[2].ID, h.room(t, code).HostPlayerID)
}

func TestSweep_HostGraceDisabled(t *testing.T) {
	h := newHarness(t, actionPool(5))
	code, ps := h.newRoomWith(t, "Ana", "Ben")

	tracker := NewPresenceTracker(h.reg, PresenceOptions{
		Timeout: time.Second,
		Now:     h.clock.Now,
	})

	h.clock.Advance(time.Hour)
	require.NoError(t, h.presence.RegisterHeartbeat(h.ctx, code, ps[1].ID))
	require.NoError(t, tracker.Sweep(h.ctx, code))

	room := h.room(t, code)
	assert.False(t, room.Players[ps[0].ID].Presence.Online)
	assert.Equal(t, ps[0].ID, room.HostPlayerID)

	before := room.Version
	require.NoError(t, tracker.Sweep(h.ctx, code))
	assert.Equal(t, before, h.room(t, code).Version, "a sweep with nothing to do writes nothing")
}

// interleavedRegistry runs beforeApply once, right before the first write, so a
// test can land a concurrent change between a decision's read and its write.
type interleavedRegistry struct {
	Registry
	beforeApply func()
}

func (ir *interleavedRegistry) ApplyUpdate(ctx context.Context, code string, patch Patch) (Room, error) {
	if fn := ir.beforeApply; fn != nil {
		ir.beforeApply = nil
		fn()
	}
	return ir.Registry.ApplyUpdate(ctx, code, patch)
}

func TestExplicitLeave_SuccessorLeavesFirst(t *testing.T) {
	h := newHarness(t, actionPool(5))
	code, ps := h.newRoomWith(t, "Ana", "Ben", "Cai")

	reg := &interleavedRegistry{Registry: h.reg}
	reg.beforeApply = func() {
		_, err := h.presence.ExplicitLeave(h.ctx, code, ps[1].ID)
		require.NoError(t, err)
	}
	tracker := NewPresenceTracker(reg, PresenceOptions{Now: h.clock.Now})

	destroyed, err := tracker.ExplicitLeave(h.ctx, code, ps[0].ID)
	require.NoError(t, err)
	assert.False(t, destroyed)

	room := h.room(t, code)
	assert.Equal(t, MEMBERSHIP_LEFT, room.Players[ps[0].ID].Membership)
	assert.Equal(t, MEMBERSHIP_LEFT, room.Players[ps[1].ID].Membership)
	assert.Equal(t, ps[2].ID, room.HostPlayerID)
}

func TestExplicitLeave_ConcurrentLeaveOfSamePlayer(t *testing.T) {
	h := newHarness(t, actionPool(5))
	code, ps := h.newRoomWith(t, "Ana", "Ben")

	reg := &interleavedRegistry{Registry: h.reg}
	reg.beforeApply = func() {
		_, err := h.presence.ExplicitLeave(h.ctx, code, ps[1].ID)
		require.NoError(t, err)
	}
	tracker := NewPresenceTracker(reg, PresenceOptions{Now: h.clock.Now})

	destroyed, err := tracker.ExplicitLeave(h.ctx, code, ps[1].ID)
	require.NoError(t, err)
	assert.False(t, destroyed)
	assert.Len(t, h.room(t, code).ActivePlayers(), 1)
}

func TestSweep_HandOverUsesCurrentRoom(t *testing.T) {
	h := newHarness(t, actionPool(5))
	code, ps := h.newRoomWith(t, "Ana", "Ben", "Cai")

	require.NoError(t, h.presence.OnLivenessLost(h.ctx, code, ps[0].ID))
	h.clock.Advance(2 * time.Minute)
	require.NoError(t, h.presence.RegisterHeartbeat(h.ctx, code, ps[1].ID))
	require.NoError(t, h.presence.RegisterHeartbeat(h.ctx, code, ps[2].ID))

	reg := &interleavedRegistry{Registry: h.reg}
	reg.beforeApply = func() {
		_, err := h.presence.ExplicitLeave(h.ctx, code, ps[1].ID)
		require.NoError(t, err)
	}
	tracker := NewPresenceTracker(reg, PresenceOptions{
		Timeout:   30 * time.Second,
		HostGrace: time.Minute,
		Now:       h.clock.Now,
	})

	require.NoError(t, tracker.Sweep(h.ctx, code))
	assert.Equal(t, ps[2].ID, h.room(t, code).HostPlayerID)
}

func TestSweep_HostBackOnlineKeepsRole(t *testing.T) {
	h := newHarness(t, actionPool(5))
	code, ps := h.newRoomWith(t, "Ana", "Ben")

	require.NoError(t, h.presence.OnLivenessLost(h.ctx, code, ps[0].ID))
	h.clock.Advance(2 * time.Minute)
	require.NoError(t, h.presence.RegisterHeartbeat(h.ctx, code, ps[1].ID))

	reg := &interleavedRegistry{Registry: h.reg}
	reg.beforeApply = func() {
		require.NoError(t, h.presence.RegisterHeartbeat(h.ctx, code, ps[0].ID))
	}
	tracker := NewPresenceTracker(reg, PresenceOptions{
		Timeout:   30 * time.Second,
		HostGrace: time.Minute,
		Now:       h.clock.Now,
	})

	require.NoError(t, tracker.Sweep(h.ctx, code))

	room := h.room(t, code)
	assert.Equal(t, ps[0].ID, room.HostPlayerID)
	assert.True(t, room.Players[ps[0].ID].Presence.Online)
}
