package game

import (
	"slices"
	"strings"
	"time"
)

// 房间阶段，只允许 Lobby -> Game 单向切换
type Phase string

const (
	PHASE_LOBBY Phase = "Lobby"
	PHASE_GAME  Phase = "Game"
)

// 玩家成员状态，Left 与 Removed 都是终态
type Membership string

const (
	MEMBERSHIP_ACTIVE  Membership = "Active"
	MEMBERSHIP_LEFT    Membership = "LeftExplicitly"
	MEMBERSHIP_REMOVED Membership = "Removed"
)

// WILDCARD_ACTION marks the assignment of the round's wildcard holder.
const WILDCARD_ACTION = "WILDCARD"

const MAX_NAME_LENGTH = 32

type Settings struct {
	NoRepeatActions bool   `json:"no_repeat_actions"`
	UseWildcard     bool   `json:"use_wildcard"`
	LockJoin        bool   `json:"lock_join"`
	PunishmentText  string `json:"punishment_text"`
}

func DefaultSettings() Settings {
	return Settings{
		NoRepeatActions: true,
		UseWildcard:     true,
	}
}

type Presence struct {
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type Player struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Membership Membership `json:"membership"`
	Presence   Presence   `json:"presence"`
	JoinedAt   time.Time  `json:"joined_at"`
}

func (p Player) IsActive() bool {
	return p.Membership == MEMBERSHIP_ACTIVE
}

type Assignment struct {
	Action     string `json:"action"`
	Executed   bool   `json:"executed"`
	IsWildcard bool   `json:"is_wildcard"`
}

func WildcardAssignment() Assignment {
	return Assignment{
		Action:     WILDCARD_ACTION,
		Executed:   true,
		IsWildcard: true,
	}
}

// Catalog is the per-room action state. BuiltIn is copied in when the room is
// created and never changes afterwards.
type Catalog struct {
	BuiltIn  []string        `json:"built_in"`
	Custom   []string        `json:"custom"`
	Disabled map[string]bool `json:"disabled"`
	Used     map[string]bool `json:"used"`
}

func NewCatalog(builtIn []string) Catalog {
	return Catalog{
		BuiltIn:  slices.Clone(builtIn),
		Custom:   make([]string, 0),
		Disabled: make(map[string]bool),
		Used:     make(map[string]bool),
	}
}

// Known returns builtIn ∪ custom in catalog order.
func (c Catalog) Known() []string {
	known := make([]string, 0, len(c.BuiltIn)+len(c.Custom))
	known = append(known, c.BuiltIn...)
	known = append(known, c.Custom...)
	return known
}

func (c Catalog) Has(action string) bool {
	return slices.Contains(c.BuiltIn, action) || slices.Contains(c.Custom, action)
}

func (c Catalog) IsBuiltIn(action string) bool {
	return slices.Contains(c.BuiltIn, action)
}

// EnabledPool returns (builtIn ∪ custom) \ disabled.
func (c Catalog) EnabledPool() []string {
	pool := make([]string, 0, len(c.BuiltIn)+len(c.Custom))
	for _, a := range c.Known() {
		if !c.Disabled[a] {
			pool = append(pool, a)
		}
	}
	return pool
}

func (c Catalog) Clone() Catalog {
	return Catalog{
		BuiltIn:  slices.Clone(c.BuiltIn),
		Custom:   slices.Clone(c.Custom),
		Disabled: cloneSet(c.Disabled),
		Used:     cloneSet(c.Used),
	}
}

// Room is the whole shared document of one session. It is owned by the
// registry; everybody else works on copies returned by ReadRoom.
type Room struct {
	Code         string   `json:"code"`
	Phase        Phase    `json:"phase"`
	HostPlayerID string   `json:"host_player_id,omitempty"`
	Settings     Settings `json:"settings"`

	Round            int       `json:"round"`
	LastRotationAt   time.Time `json:"last_rotation_at"`
	WildcardPlayerID string    `json:"wildcard_player_id,omitempty"`
	OutOfActions     bool      `json:"out_of_actions"`

	Players     map[string]Player     `json:"players"`
	Assignments map[string]Assignment `json:"assignments"`
	Catalog     Catalog               `json:"catalog"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// 每次成功的 ApplyUpdate 都会递增
	Version int64 `json:"version"`
}

func NewRoom(code string, builtIn []string, now time.Time) Room {
	return Room{
		Code:        code,
		Phase:       PHASE_LOBBY,
		Settings:    DefaultSettings(),
		Players:     make(map[string]Player),
		Assignments: make(map[string]Assignment),
		Catalog:     NewCatalog(builtIn),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r Room) Clone() Room {
	out := r

	out.Players = make(map[string]Player, len(r.Players))
	for id, p := range r.Players {
		out.Players[id] = p
	}

	out.Assignments = make(map[string]Assignment, len(r.Assignments))
	for id, a := range r.Assignments {
		out.Assignments[id] = a
	}

	out.Catalog = r.Catalog.Clone()

	return out
}

// ActivePlayers returns the Active players ordered by join time.
func (r Room) ActivePlayers() []Player {
	active := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsActive() {
			active = append(active, p)
		}
	}

	slices.SortFunc(active, func(a, b Player) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return active
}

func (r Room) ActiveIDs() []string {
	active := r.ActivePlayers()
	ids := make([]string, 0, len(active))
	for _, p := range active {
		ids = append(ids, p.ID)
	}
	return ids
}

func (r Room) IsActive(playerID string) bool {
	p, ok := r.Players[playerID]
	return ok && p.IsActive()
}

func (r Room) IsHost(playerID string) bool {
	return playerID != "" && r.HostPlayerID == playerID && r.IsActive(playerID)
}

// HasActiveHost reports whether hostPlayerId points at an Active player.
func (r Room) HasActiveHost() bool {
	return r.IsActive(r.HostPlayerID)
}

// NextHost prefers the earliest-joined online player and falls back to the
// earliest-joined Active one. "" when nobody but exclude is Active.
func (r Room) NextHost(exclude string) string {
	if id := r.NextOnlineHost(exclude); id != "" {
		return id
	}

	for _, p := range r.ActivePlayers() {
		if p.ID != exclude {
			return p.ID
		}
	}

	return ""
}

func (r Room) NextOnlineHost(exclude string) string {
	for _, p := range r.ActivePlayers() {
		if p.ID != exclude && p.Presence.Online {
			return p.ID
		}
	}

	return ""
}

// FindActiveByName looks up an Active player by normalized name.
func (r Room) FindActiveByName(name string) (Player, bool) {
	key := NameKey(name)
	for _, p := range r.Players {
		if p.IsActive() && NameKey(p.Name) == key {
			return p, true
		}
	}
	return Player{}, false
}

// NormalizeName trims and collapses inner whitespace; the result is what gets
// displayed.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NameKey is the comparison form of a display name.
func NameKey(name string) string {
	return strings.ToLower(NormalizeName(name))
}

func cloneSet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		if v {
			out[k] = true
		}
	}
	return out
}
