package game

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const LEAVE_ATTEMPTS = 3

type PresenceOptions struct {
	// Sweep marks Active players offline once lastSeenAt is older than Timeout.
	Timeout time.Duration
	// HostGrace is how long the host may stay offline before Sweep hands the
	// role to the earliest-joined online player. 0 disables it.
	HostGrace time.Duration

	Now func() time.Time
}

// PresenceTracker decides which players count as Active. Losing the
// connection only ever flips presence.online; membership changes come from an
// explicit leave or a host removal.
type PresenceTracker struct {
	reg  Registry
	opts PresenceOptions
}

func NewPresenceTracker(reg Registry, opts PresenceOptions) *PresenceTracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &PresenceTracker{
		reg:  reg,
		opts: opts,
	}
}

func (pt *PresenceTracker) RegisterHeartbeat(ctx context.Context, code, playerID string) error {
	room, err := pt.reg.ReadRoom(ctx, code)
	if err != nil {
		return err
	}

	if !room.IsActive(playerID) {
		return ErrPlayerNotFound
	}

	now := pt.opts.Now()
	online := true

	_, err = pt.reg.ApplyUpdate(ctx, code, Patch{
		Players: map[string]PlayerPatch{
			playerID: {Online: &online, LastSeenAt: &now},
		},
	})

	return err
}

func (pt *PresenceTracker) OnLivenessLost(ctx context.Context, code, playerID string) error {
	room, err := pt.reg.ReadRoom(ctx, code)
	if err != nil {
		return err
	}

	player, ok := room.Players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}

	if !player.IsActive() || !player.Presence.Online {
		return nil
	}

	offline := false

	_, err = pt.reg.ApplyUpdate(ctx, code, Patch{
		Players: map[string]PlayerPatch{
			playerID: {Online: &offline},
		},
	})
	if err != nil {
		return err
	}

	zap.L().Debug(
		"玩家掉线",
		zap.String("room_code", code),
		zap.String("player_id", playerID),
	)

	return nil
}

// ExplicitLeave is idempotent. destroyed reports whether the room was removed
// because no Active player was left.
func (pt *PresenceTracker) ExplicitLeave(ctx context.Context, code, playerID string) (destroyed bool, err error) {
	var room Room

	// 并发离开时终态校验会冲突，重读后再判断
	for range LEAVE_ATTEMPTS {
		room, err = pt.reg.ReadRoom(ctx, code)
		if err != nil {
			return false, err
		}

		player, ok := room.Players[playerID]
		if !ok {
			return false, ErrPlayerNotFound
		}
		if !player.IsActive() {
			return false, nil
		}

		patch := terminatePatch(playerID, MEMBERSHIP_LEFT)
		patch.HandOver = &HostHandover{From: playerID}

		wasHost := room.HostPlayerID == playerID

		room, err = pt.reg.ApplyUpdate(ctx, code, patch)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return false, err
		}

		if wasHost {
			zap.L().Info(
				"房主离开，移交房主",
				zap.String("room_code", code),
				zap.String("old_host", playerID),
				zap.String("new_host", room.HostPlayerID),
			)
		}

		zap.L().Info(
			"玩家离开房间",
			zap.String("room_code", code),
			zap.String("player_id", playerID),
		)

		return pt.destroyIfEmpty(ctx, room)
	}

	return false, err
}

func (pt *PresenceTracker) HostRemove(ctx context.Context, code, actingHostID, targetID string) (destroyed bool, err error) {
	room, err := pt.reg.ReadRoom(ctx, code)
	if err != nil {
		return false, err
	}

	if !room.IsHost(actingHostID) {
		return false, ErrNotHost
	}
	if targetID == room.HostPlayerID {
		return false, ErrCannotRemoveHost
	}
	if !room.IsActive(targetID) {
		return false, ErrPlayerNotFound
	}

	room, err = pt.reg.ApplyUpdate(ctx, code, terminatePatch(targetID, MEMBERSHIP_REMOVED))
	if err != nil {
		return false, err
	}

	zap.L().Info(
		"房主移除了玩家",
		zap.String("room_code", code),
		zap.String("player_id", targetID),
	)

	return pt.destroyIfEmpty(ctx, room)
}

// FindActiveByName is used at join time to tell a rejoin from a name clash.
func (pt *PresenceTracker) FindActiveByName(room Room, name string) (Player, bool) {
	return room.FindActiveByName(name)
}

// Sweep marks stale players offline and, when enabled, replaces a host that has
// been offline for longer than HostGrace.
func (pt *PresenceTracker) Sweep(ctx context.Context, code string) error {
	room, err := pt.reg.ReadRoom(ctx, code)
	if err != nil {
		return err
	}

	now := pt.opts.Now()
	offline := false
	patch := Patch{Players: make(map[string]PlayerPatch)}

	for _, p := range room.ActivePlayers() {
		if pt.opts.Timeout > 0 && p.Presence.Online && now.Sub(p.Presence.LastSeenAt) > pt.opts.Timeout {
			patch.Players[p.ID] = PlayerPatch{Online: &offline}
			p.Presence.Online = false
			room.Players[p.ID] = p
		}
	}

	if pt.opts.HostGrace > 0 && room.HasActiveHost() {
		host := room.Players[room.HostPlayerID]
		if !host.Presence.Online && now.Sub(host.Presence.LastSeenAt) > pt.opts.HostGrace &&
			room.NextOnlineHost(host.ID) != "" {
			patch.HandOver = &HostHandover{From: host.ID, OnlineOnly: true}
		}
	}

	if len(patch.Players) == 0 && patch.HandOver == nil {
		return nil
	}

	updated, err := pt.reg.ApplyUpdate(ctx, code, patch)
	if err != nil {
		return err
	}

	if patch.HandOver != nil && updated.HostPlayerID != patch.HandOver.From {
		zap.L().Info(
			"房主离线过久，移交房主",
			zap.String("room_code", code),
			zap.String("old_host", patch.HandOver.From),
			zap.String("new_host", updated.HostPlayerID),
		)
	}

	return nil
}

func (pt *PresenceTracker) destroyIfEmpty(ctx context.Context, room Room) (bool, error) {
	if len(room.ActivePlayers()) > 0 {
		return false, nil
	}

	if err := pt.reg.DestroyRoom(ctx, room.Code); err != nil {
		return false, err
	}

	zap.L().Info("房间已无玩家，销毁房间", zap.String("room_code", room.Code))

	return true, nil
}

func terminatePatch(playerID string, membership Membership) Patch {
	offline := false

	return Patch{
		Players: map[string]PlayerPatch{
			playerID: {Membership: &membership, Online: &offline},
		},
		DeleteAssignments: []string{playerID},
	}
}
