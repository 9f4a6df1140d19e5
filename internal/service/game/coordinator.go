package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

const MAX_PUNISHMENT_LENGTH = 200

type CoordinatorOptions struct {
	Random *Random
	Now    func() time.Time
}

// Coordinator owns the phase transitions of a room: host election, the start
// of the game, rotations and the out-of-actions sub-state. Every decision is
// taken on one snapshot read from the registry and written back as one patch.
type Coordinator struct {
	reg      Registry
	catalog  *ActionCatalog
	presence *PresenceTracker
	rnd      *Random
	now      func() time.Time
}

func NewCoordinator(reg Registry, presence *PresenceTracker, opts CoordinatorOptions) *Coordinator {
	if opts.Random == nil {
		opts.Random = NewRandom()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Coordinator{
		reg:      reg,
		catalog:  NewActionCatalog(opts.Random),
		presence: presence,
		rnd:      opts.Random,
		now:      opts.Now,
	}
}

func (c *Coordinator) Presence() *PresenceTracker {
	return c.presence
}

func (c *Coordinator) Snapshot(ctx context.Context, code string) (Room, error) {
	return c.reg.ReadRoom(ctx, code)
}

// CreateRoom allocates a new room and enters it as its first player, who
// becomes the host.
func (c *Coordinator) CreateRoom(ctx context.Context, displayName string) (Player, Room, error) {
	name, err := validateName(displayName)
	if err != nil {
		return Player{}, Room{}, err
	}

	room, err := c.reg.CreateRoom(ctx)
	if err != nil {
		return Player{}, Room{}, err
	}

	zap.L().Info("房间已创建", zap.String("room_code", room.Code))

	return c.enter(ctx, room, name, "")
}

// JoinRoom enters an existing room. A known playerID of an Active player, or
// the name of an Active player that is currently offline, resumes that
// identity instead of creating a new one.
func (c *Coordinator) JoinRoom(ctx context.Context, code, displayName, playerID string) (Player, Room, error) {
	name, err := validateName(displayName)
	if err != nil {
		return Player{}, Room{}, err
	}

	room, err := c.reg.OpenRoom(ctx, code)
	if err != nil {
		return Player{}, Room{}, err
	}

	return c.enter(ctx, room, name, playerID)
}

func (c *Coordinator) enter(ctx context.Context, room Room, name, playerID string) (Player, Room, error) {
	if playerID != "" {
		if p, ok := room.Players[playerID]; ok && p.IsActive() {
			return c.rejoin(ctx, room, p)
		}
	}

	if p, ok := c.presence.FindActiveByName(room, name); ok {
		if p.Presence.Online {
			return Player{}, Room{}, ErrNameTaken
		}
		return c.rejoin(ctx, room, p)
	}

	if room.Settings.LockJoin && len(room.ActivePlayers()) > 0 {
		return Player{}, Room{}, ErrJoinLocked
	}

	now := c.now()
	player := Player{
		ID:         GenID(),
		Name:       name,
		Membership: MEMBERSHIP_ACTIVE,
		Presence:   Presence{Online: true, LastSeenAt: now},
		JoinedAt:   now,
	}

	room, err := c.reg.ApplyUpdate(ctx, room.Code, Patch{
		AddPlayers: []Player{player},
		ClaimHost:  player.ID,
	})
	if err != nil {
		return Player{}, Room{}, err
	}

	zap.L().Info(
		"玩家加入房间",
		zap.String("room_code", room.Code),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
		zap.Bool("is_host", room.HostPlayerID == player.ID),
	)

	return room.Players[player.ID], room, nil
}

func (c *Coordinator) rejoin(ctx context.Context, room Room, p Player) (Player, Room, error) {
	now := c.now()
	online := true

	room, err := c.reg.ApplyUpdate(ctx, room.Code, Patch{
		Players: map[string]PlayerPatch{
			p.ID: {Online: &online, LastSeenAt: &now},
		},
		ClaimHost: p.ID,
	})
	if err != nil {
		return Player{}, Room{}, err
	}

	zap.L().Info(
		"玩家重新加入房间",
		zap.String("room_code", room.Code),
		zap.String("player_id", p.ID),
	)

	return room.Players[p.ID], room, nil
}

// EnsureHost claims the host role for playerID when the room has no Active
// host. Losing the race is fine: the returned room carries the winner.
func (c *Coordinator) EnsureHost(ctx context.Context, code, playerID string) (Room, error) {
	room, err := c.reg.ReadRoom(ctx, code)
	if err != nil {
		return Room{}, err
	}

	if room.HasActiveHost() || !room.IsActive(playerID) {
		return room, nil
	}

	return c.reg.ApplyUpdate(ctx, code, Patch{ClaimHost: playerID})
}

// StartGame moves the room from Lobby to the first round. When the pool runs
// dry halfway through the deal, the partial deal is kept, the room enters the
// out-of-actions sub-state and ErrOutOfActions is returned with it.
func (c *Coordinator) StartGame(ctx context.Context, code, hostID string) (Room, error) {
	room, err := c.hostRoom(ctx, code, hostID)
	if err != nil {
		return Room{}, err
	}

	if room.Phase == PHASE_GAME {
		return room, ErrGameStarted
	}

	active := room.ActiveIDs()
	if len(active) < 2 {
		return room, ErrInsufficientPlayers
	}

	// 即使开启了 wildcard，也要求每个玩家都能分到不同的行动
	if len(room.Catalog.EnabledPool()) < len(active) {
		return room, ErrInsufficientActions
	}

	wildcard := ""
	if room.Settings.UseWildcard {
		wildcard, _ = Pick(c.rnd, active)
	}

	draw := c.catalog.NewDraw(room.Catalog, room.Settings.NoRepeatActions)
	assignments := make(map[string]Assignment, len(active))
	outOfActions := false

	for _, id := range Shuffled(c.rnd, active) {
		if id == wildcard {
			assignments[id] = WildcardAssignment()
			continue
		}
		if outOfActions {
			continue
		}

		action, err := draw.Next()
		if err != nil {
			outOfActions = true
			continue
		}
		assignments[id] = Assignment{Action: action}
	}

	now := c.now()
	lobby := PHASE_LOBBY
	phase := PHASE_GAME
	round := 1

	patch := Patch{
		IfPhase:            &lobby,
		Phase:              &phase,
		Round:              &round,
		LastRotationAt:     &now,
		WildcardPlayerID:   &wildcard,
		OutOfActions:       &outOfActions,
		ReplaceAssignments: assignments,
	}
	draw.Record(&patch)

	room, err = c.reg.ApplyUpdate(ctx, code, patch)
	if err != nil {
		return Room{}, err
	}

	zap.L().Info(
		"游戏开始",
		zap.String("room_code", code),
		zap.Int("players", len(active)),
		zap.String("wildcard", wildcard),
		zap.Bool("out_of_actions", outOfActions),
	)

	if outOfActions {
		return room, ErrOutOfActions
	}

	return room, nil
}

// IsRoundComplete is the completion predicate: every Active player holds an
// assignment with an action and executed set. A round with only the wildcard
// in it never completes, otherwise it would rotate forever.
func IsRoundComplete(room Room) bool {
	if room.Phase != PHASE_GAME {
		return false
	}

	ordinary := 0
	for _, p := range room.ActivePlayers() {
		a, ok := room.Assignments[p.ID]
		if !ok || a.Action == "" || !a.Executed {
			return false
		}
		if !a.IsWildcard {
			ordinary++
		}
	}

	return ordinary > 0
}

// AdvanceIfComplete is run by the host's session on every room change. It
// re-reads the room, evaluates the completion predicate and rotates. A rotation
// that lost a race against another one is reported as rotated=false, nil.
func (c *Coordinator) AdvanceIfComplete(ctx context.Context, code, actingID string) (rotated bool, err error) {
	room, err := c.reg.ReadRoom(ctx, code)
	if err != nil {
		return false, err
	}

	if room.Phase != PHASE_GAME || room.OutOfActions {
		return false, nil
	}
	if !room.IsHost(actingID) {
		return false, ErrNotHost
	}
	if !IsRoundComplete(room) {
		return false, nil
	}

	return c.rotate(ctx, room)
}

func (c *Coordinator) rotate(ctx context.Context, room Room) (bool, error) {
	patch, err := c.rotationPatch(room)
	if errors.Is(err, ErrOutOfActions) {
		// 本轮保持不变，只标记缺少行动，等待房主处理
		flag := true
		round := room.Round

		_, aerr := c.reg.ApplyUpdate(ctx, room.Code, Patch{IfRound: &round, OutOfActions: &flag})
		if aerr != nil && !errors.Is(aerr, ErrConflict) {
			return false, aerr
		}

		zap.L().Warn(
			"换轮时行动不足",
			zap.String("room_code", room.Code),
			zap.Int("round", room.Round),
		)

		return false, ErrOutOfActions
	}
	if err != nil {
		return false, err
	}

	updated, err := c.reg.ApplyUpdate(ctx, room.Code, patch)
	if errors.Is(err, ErrConflict) {
		zap.L().Debug(
			"换轮基于过期快照，已跳过",
			zap.String("room_code", room.Code),
			zap.Int("round", room.Round),
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	zap.L().Info(
		"已进入下一轮",
		zap.String("room_code", room.Code),
		zap.Int("round", updated.Round),
		zap.String("wildcard", updated.WildcardPlayerID),
	)

	return true, nil
}

// rotationPatch builds the next round. With the wildcard on, only the wildcard
// moves: the new holder gets the sentinel, the previous holder gets a fresh
// action and everybody else keeps their action text with executed reset.
// Without it every Active player gets a fresh action.
func (c *Coordinator) rotationPatch(room Room) (Patch, error) {
	active := room.ActiveIDs()
	draw := c.catalog.NewDraw(room.Catalog, room.Settings.NoRepeatActions)
	assignments := make(map[string]Assignment, len(active))
	wildcard := ""

	fresh := func(id string) error {
		action, err := draw.Next()
		if err != nil {
			return err
		}
		assignments[id] = Assignment{Action: action}
		return nil
	}

	if room.Settings.UseWildcard {
		old := room.WildcardPlayerID

		candidates := slices.DeleteFunc(slices.Clone(active), func(id string) bool { return id == old })
		if len(candidates) == 0 {
			candidates = active
		}
		wildcard, _ = Pick(c.rnd, candidates)

		for _, id := range active {
			prev, hasPrev := room.Assignments[id]

			switch {
			case id == wildcard:
				assignments[id] = WildcardAssignment()
			case id == old, !hasPrev, prev.Action == "", prev.IsWildcard:
				if err := fresh(id); err != nil {
					return Patch{}, err
				}
			default:
				assignments[id] = Assignment{Action: prev.Action}
			}
		}
	} else {
		for _, id := range active {
			if err := fresh(id); err != nil {
				return Patch{}, err
			}
		}
	}

	now := c.now()
	ifRound := room.Round
	next := room.Round + 1
	outOfActions := false

	patch := Patch{
		IfRound:            &ifRound,
		Round:              &next,
		LastRotationAt:     &now,
		WildcardPlayerID:   &wildcard,
		OutOfActions:       &outOfActions,
		ReplaceAssignments: assignments,
	}
	draw.Record(&patch)

	return patch, nil
}

// RetryDraw is the host's forced retry out of the out-of-actions sub-state.
// Active players without an assignment (a partial deal, late joiners) are
// dealt in. When nobody is missing one, a completed round is rotated and an
// unfinished one is returned unchanged.
func (c *Coordinator) RetryDraw(ctx context.Context, code, hostID string) (Room, error) {
	room, err := c.hostRoom(ctx, code, hostID)
	if err != nil {
		return Room{}, err
	}

	if room.Phase != PHASE_GAME {
		return room, ErrGameNotStarted
	}

	missing := make([]string, 0)
	for _, id := range room.ActiveIDs() {
		if a, ok := room.Assignments[id]; !ok || a.Action == "" {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		// 只有本轮全部完成时才能换轮，否则什么都不做
		if !IsRoundComplete(room) {
			return room, nil
		}
		if _, err := c.rotate(ctx, room); err != nil {
			return Room{}, err
		}
		return c.reg.ReadRoom(ctx, code)
	}

	needWildcard := room.Settings.UseWildcard && !holdsWildcard(room, room.WildcardPlayerID)
	draw := c.catalog.NewDraw(room.Catalog, room.Settings.NoRepeatActions)
	set := make(map[string]Assignment, len(missing))
	outOfActions := false
	round := room.Round

	patch := Patch{IfRound: &round}

	for _, id := range missing {
		if needWildcard {
			set[id] = WildcardAssignment()
			wildcard := id
			patch.WildcardPlayerID = &wildcard
			needWildcard = false
			continue
		}

		action, err := draw.Next()
		if err != nil {
			outOfActions = true
			break
		}
		set[id] = Assignment{Action: action}
	}

	patch.SetAssignments = set
	patch.OutOfActions = &outOfActions
	draw.Record(&patch)

	room, err = c.reg.ApplyUpdate(ctx, code, patch)
	if err != nil {
		return Room{}, err
	}

	zap.L().Info(
		"已为缺少行动的玩家补发",
		zap.String("room_code", code),
		zap.Int("dealt", len(set)),
		zap.Bool("out_of_actions", outOfActions),
	)

	if outOfActions {
		return room, ErrOutOfActions
	}

	return room, nil
}

func holdsWildcard(room Room, playerID string) bool {
	if !room.IsActive(playerID) {
		return false
	}
	a, ok := room.Assignments[playerID]
	return ok && a.IsWildcard
}

// ReenableAllActions clears the disabled set and the out-of-actions flag. The
// used set stays, so no-repeat holds for the whole life of the room.
func (c *Coordinator) ReenableAllActions(ctx context.Context, code, hostID string) (Room, error) {
	if _, err := c.hostRoom(ctx, code, hostID); err != nil {
		return Room{}, err
	}

	outOfActions := false

	return c.reg.ApplyUpdate(ctx, code, Patch{
		ClearDisabled: true,
		OutOfActions:  &outOfActions,
	})
}

func (c *Coordinator) ToggleAction(ctx context.Context, code, hostID, action string, enabled bool) (Room, error) {
	room, err := c.hostRoom(ctx, code, hostID)
	if err != nil {
		return Room{}, err
	}

	patch, err := c.catalog.SetEnabled(room.Catalog, action, enabled)
	if err != nil {
		return room, err
	}

	return c.reg.ApplyUpdate(ctx, code, patch)
}

func (c *Coordinator) SetAllActions(ctx context.Context, code, hostID string, enabled bool) (Room, error) {
	room, err := c.hostRoom(ctx, code, hostID)
	if err != nil {
		return Room{}, err
	}

	return c.reg.ApplyUpdate(ctx, code, c.catalog.SetAllEnabled(room.Catalog, enabled))
}

func (c *Coordinator) AddCustomAction(ctx context.Context, code, hostID, text string) (Room, error) {
	room, err := c.hostRoom(ctx, code, hostID)
	if err != nil {
		return Room{}, err
	}

	patch, ok, err := c.catalog.AddCustomAction(room.Catalog, text)
	if err != nil {
		return room, err
	}
	if !ok {
		return room, nil
	}

	return c.reg.ApplyUpdate(ctx, code, patch)
}

func (c *Coordinator) SetSettings(ctx context.Context, code, hostID string, sp SettingsPatch) (Room, error) {
	room, err := c.hostRoom(ctx, code, hostID)
	if err != nil {
		return Room{}, err
	}

	if sp.PunishmentText != nil && len([]rune(*sp.PunishmentText)) > MAX_PUNISHMENT_LENGTH {
		return room, fmt.Errorf("%w: punishment text longer than %d characters", ErrInvalidSettings, MAX_PUNISHMENT_LENGTH)
	}
	if sp.IsEmpty() {
		return room, nil
	}

	return c.reg.ApplyUpdate(ctx, code, Patch{Settings: &sp})
}

// MarkExecuted sets the caller's own executed flag. The wildcard holder's flag
// is fixed to true, so setting it is a no-op.
func (c *Coordinator) MarkExecuted(ctx context.Context, code, playerID string, executed bool) (Room, error) {
	room, err := c.reg.ReadRoom(ctx, code)
	if err != nil {
		return Room{}, err
	}

	if !room.IsActive(playerID) {
		return room, ErrPlayerNotFound
	}
	if room.Phase != PHASE_GAME {
		return room, ErrGameNotStarted
	}

	a, ok := room.Assignments[playerID]
	if !ok {
		return room, ErrNoAssignment
	}
	if a.IsWildcard || a.Executed == executed {
		return room, nil
	}

	return c.reg.ApplyUpdate(ctx, code, Patch{
		Executed: map[string]bool{playerID: executed},
	})
}

func (c *Coordinator) Leave(ctx context.Context, code, playerID string) (destroyed bool, err error) {
	return c.presence.ExplicitLeave(ctx, code, playerID)
}

func (c *Coordinator) RemovePlayer(ctx context.Context, code, hostID, targetID string) (destroyed bool, err error) {
	return c.presence.HostRemove(ctx, code, hostID, targetID)
}

func (c *Coordinator) hostRoom(ctx context.Context, code, hostID string) (Room, error) {
	room, err := c.reg.ReadRoom(ctx, code)
	if err != nil {
		return Room{}, err
	}

	if !room.IsHost(hostID) {
		return room, ErrNotHost
	}

	return room, nil
}

func validateName(displayName string) (string, error) {
	name := NormalizeName(displayName)
	if name == "" || len([]rune(name)) > MAX_NAME_LENGTH {
		return "", fmt.Errorf("%w: must be 1-%d characters", ErrInvalidName, MAX_NAME_LENGTH)
	}
	return name, nil
}
