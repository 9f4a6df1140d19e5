package game

import (
	"fmt"
	"strings"
	"time"
)

type SettingsPatch struct {
	NoRepeatActions *bool   `json:"no_repeat_actions,omitempty"`
	UseWildcard     *bool   `json:"use_wildcard,omitempty"`
	LockJoin        *bool   `json:"lock_join,omitempty"`
	PunishmentText  *string `json:"punishment_text,omitempty"`
}

func (sp SettingsPatch) IsEmpty() bool {
	return sp.NoRepeatActions == nil && sp.UseWildcard == nil && sp.LockJoin == nil && sp.PunishmentText == nil
}

type PlayerPatch struct {
	Membership *Membership
	Online     *bool
	LastSeenAt *time.Time
}

// Patch is a field-scoped update of a Room. Only the fields that are set are
// touched, so two patches over disjoint leaves never clobber each other.
//
// A patch is applied as a whole or not at all.
type Patch struct {
	// 前置条件，不满足时返回 ErrConflict
	IfPhase *Phase
	IfRound *int

	// ClaimHost sets the host only if there is currently no Active host.
	ClaimHost string
	// SetHost transfers the host role unconditionally; "" clears it.
	SetHost *string
	// HandOver picks the successor on the room being written, after the
	// membership changes of the same patch.
	HandOver *HostHandover

	Phase            *Phase
	Settings         *SettingsPatch
	Round            *int
	LastRotationAt   *time.Time
	WildcardPlayerID *string
	OutOfActions     *bool

	AddPlayers []Player
	Players    map[string]PlayerPatch

	// ReplaceAssignments swaps the whole map and runs before SetAssignments.
	ReplaceAssignments map[string]Assignment
	SetAssignments     map[string]Assignment
	DeleteAssignments  []string
	Executed           map[string]bool

	AddCustom     []string
	Disable       []string
	Enable        []string
	ClearDisabled bool
	MarkUsed      []string
}

// HostHandover moves the host role away from From if From still holds it.
// The earliest-joined online player wins, then the earliest-joined Active one.
// With OnlineOnly the role only moves to an online player and only while From
// is offline; nobody eligible keeps From as host.
type HostHandover struct {
	From       string
	OnlineOnly bool
}

func (r *Room) handOverHost(h HostHandover) {
	if !h.OnlineOnly {
		r.HostPlayerID = r.NextHost(h.From)
		return
	}

	if host, ok := r.Players[h.From]; ok && host.IsActive() && host.Presence.Online {
		return
	}
	if next := r.NextOnlineHost(h.From); next != "" {
		r.HostPlayerID = next
	}
}

// Apply merges the patch into r. The caller owns r and must discard it when an
// error is returned.
func (r *Room) Apply(p Patch, now time.Time) error {
	if p.IfPhase != nil && r.Phase != *p.IfPhase {
		return fmt.Errorf("%w: phase is %s, want %s", ErrConflict, r.Phase, *p.IfPhase)
	}
	if p.IfRound != nil && r.Round != *p.IfRound {
		return fmt.Errorf("%w: round is %d, want %d", ErrConflict, r.Round, *p.IfRound)
	}

	if p.Phase != nil {
		if r.Phase == PHASE_GAME && *p.Phase != PHASE_GAME {
			return fmt.Errorf("%w: phase cannot go back to %s", ErrConflict, *p.Phase)
		}
		r.Phase = *p.Phase
	}

	if p.Settings != nil {
		applySettings(&r.Settings, *p.Settings)
	}
	if p.Round != nil {
		if *p.Round < r.Round {
			return fmt.Errorf("%w: round cannot decrease", ErrConflict)
		}
		r.Round = *p.Round
	}
	if p.LastRotationAt != nil {
		r.LastRotationAt = *p.LastRotationAt
	}
	if p.WildcardPlayerID != nil {
		r.WildcardPlayerID = *p.WildcardPlayerID
	}
	if p.OutOfActions != nil {
		r.OutOfActions = *p.OutOfActions
	}

	for _, np := range p.AddPlayers {
		if _, exists := r.Players[np.ID]; exists {
			return fmt.Errorf("%w: %s", ErrPlayerExists, np.ID)
		}
		if np.IsActive() {
			if _, taken := r.FindActiveByName(np.Name); taken {
				return ErrNameTaken
			}
		}
		r.Players[np.ID] = np
	}

	for id, pp := range p.Players {
		player, ok := r.Players[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
		}
		if pp.Membership != nil && *pp.Membership != player.Membership {
			if !player.IsActive() {
				// 终态不可逆
				return fmt.Errorf("%w: player %s already %s", ErrConflict, id, player.Membership)
			}
			player.Membership = *pp.Membership
		}
		// a late heartbeat must not bring a departed player back online
		if pp.Online != nil && (!*pp.Online || player.IsActive()) {
			player.Presence.Online = *pp.Online
		}
		if pp.LastSeenAt != nil && pp.LastSeenAt.After(player.Presence.LastSeenAt) {
			player.Presence.LastSeenAt = *pp.LastSeenAt
		}
		r.Players[id] = player
	}

	// host changes run after membership changes so a claim sees who is Active
	if p.SetHost != nil {
		if *p.SetHost != "" && !r.IsActive(*p.SetHost) {
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, *p.SetHost)
		}
		r.HostPlayerID = *p.SetHost
	}
	if p.ClaimHost != "" && !r.HasActiveHost() && r.IsActive(p.ClaimHost) {
		r.HostPlayerID = p.ClaimHost
	}
	if h := p.HandOver; h != nil && r.HostPlayerID == h.From {
		r.handOverHost(*h)
	}

	if p.ReplaceAssignments != nil {
		r.Assignments = make(map[string]Assignment, len(p.ReplaceAssignments))
		for id, a := range p.ReplaceAssignments {
			r.Assignments[id] = a
		}
	}
	for id, a := range p.SetAssignments {
		r.Assignments[id] = a
	}
	for _, id := range p.DeleteAssignments {
		delete(r.Assignments, id)
	}
	for id, executed := range p.Executed {
		a, ok := r.Assignments[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoAssignment, id)
		}
		if a.IsWildcard {
			continue
		}
		a.Executed = executed
		r.Assignments[id] = a
	}

	for _, text := range p.AddCustom {
		text = strings.TrimSpace(text)
		if text == "" || r.Catalog.Has(text) {
			continue
		}
		r.Catalog.Custom = append(r.Catalog.Custom, text)
	}
	if p.ClearDisabled {
		r.Catalog.Disabled = make(map[string]bool)
	}
	for _, a := range p.Enable {
		delete(r.Catalog.Disabled, a)
	}
	for _, a := range p.Disable {
		r.Catalog.Disabled[a] = true
	}
	for _, a := range p.MarkUsed {
		r.Catalog.Used[a] = true
	}

	r.UpdatedAt = now

	return nil
}

func applySettings(s *Settings, sp SettingsPatch) {
	if sp.NoRepeatActions != nil {
		s.NoRepeatActions = *sp.NoRepeatActions
	}
	if sp.UseWildcard != nil {
		s.UseWildcard = *sp.UseWildcard
	}
	if sp.LockJoin != nil {
		s.LockJoin = *sp.LockJoin
	}
	if sp.PunishmentText != nil {
		s.PunishmentText = strings.TrimSpace(*sp.PunishmentText)
	}
}
