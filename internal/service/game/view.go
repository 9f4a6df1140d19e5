package game

import (
	"slices"
	"strings"
	"time"
)

// View is the read-only projection of a room that clients render.
type View struct {
	Code             string       `json:"code"`
	Phase            Phase        `json:"phase"`
	HostPlayerID     string       `json:"host_player_id"`
	Settings         Settings     `json:"settings"`
	Round            int          `json:"round"`
	LastRotationAt   time.Time    `json:"last_rotation_at"`
	WildcardPlayerID string       `json:"wildcard_player_id,omitempty"`
	OutOfActions     bool         `json:"out_of_actions"`
	RoundComplete    bool         `json:"round_complete"`
	Players          []PlayerView `json:"players"`
	Actions          []ActionView `json:"actions,omitempty"`
	Version          int64        `json:"version"`

	You    string `json:"you,omitempty"`
	IsHost bool   `json:"is_host"`
}

type PlayerView struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Online     bool        `json:"online"`
	IsHost     bool        `json:"is_host"`
	IsWildcard bool        `json:"is_wildcard"`
	Assignment *Assignment `json:"assignment,omitempty"`
}

type ActionView struct {
	Text    string `json:"text"`
	Custom  bool   `json:"custom"`
	Enabled bool   `json:"enabled"`
	Used    bool   `json:"used"`
}

// NewView projects room for viewerID; an empty viewerID gives the anonymous
// view without the action list. In the lobby players are listed by join
// order, in game by name.
func NewView(room Room, viewerID string) View {
	v := View{
		Code:             room.Code,
		Phase:            room.Phase,
		HostPlayerID:     room.HostPlayerID,
		Settings:         room.Settings,
		Round:            room.Round,
		LastRotationAt:   room.LastRotationAt,
		WildcardPlayerID: room.WildcardPlayerID,
		OutOfActions:     room.OutOfActions,
		RoundComplete:    IsRoundComplete(room),
		Version:          room.Version,
	}

	if room.IsActive(viewerID) {
		v.You = viewerID
		v.IsHost = room.IsHost(viewerID)
	}

	active := room.ActivePlayers()
	if room.Phase == PHASE_GAME {
		slices.SortStableFunc(active, func(a, b Player) int {
			return strings.Compare(NameKey(a.Name), NameKey(b.Name))
		})
	}

	v.Players = make([]PlayerView, 0, len(active))
	for _, p := range active {
		pv := PlayerView{
			ID:     p.ID,
			Name:   p.Name,
			Online: p.Presence.Online,
			IsHost: p.ID == room.HostPlayerID,
		}
		if a, ok := room.Assignments[p.ID]; ok {
			pv.Assignment = &a
			pv.IsWildcard = a.IsWildcard
		}
		v.Players = append(v.Players, pv)
	}

	if v.You != "" {
		v.Actions = make([]ActionView, 0, len(room.Catalog.BuiltIn)+len(room.Catalog.Custom))
		for _, text := range room.Catalog.Known() {
			v.Actions = append(v.Actions, ActionView{
				Text:    text,
				Custom:  !room.Catalog.IsBuiltIn(text),
				Enabled: !room.Catalog.Disabled[text],
				Used:    room.Catalog.Used[text],
			})
		}
	}

	return v
}
