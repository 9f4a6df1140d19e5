package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewView(t *testing.T) {
	now := time.Now()
	room := NewRoom("ABCDE", []string{"x", "y"}, now)
	room.Catalog.Custom = []string{"c"}
	room.Catalog.Disabled["y"] = true
	room.Catalog.Used["y"] = true

	add := func(id, name string, offset time.Duration, m Membership) {
		room.Players[id] = Player{
			ID: id, Name: name, Membership: m,
			Presence: Presence{Online: true, LastSeenAt: now},
			JoinedAt: now.Add(offset),
		}
	}
	add("p1", "zoe", 0, MEMBERSHIP_ACTIVE)
	add("p2", "Adam", time.Second, MEMBERSHIP_ACTIVE)
	add("p3", "gone", 2*time.Second, MEMBERSHIP_LEFT)
	room.HostPlayerID = "p1"

	lobby := NewView(room, "p2")
	require.Len(t, lobby.Players, 2)
	assert.Equal(t, "p1", lobby.Players[0].ID)
	assert.True(t, lobby.Players[0].IsHost)
	assert.Equal(t, "p2", lobby.You)
	assert.False(t, lobby.IsHost)
	assert.Equal(t, []ActionView{
		{Text: "x", Enabled: true},
		{Text: "y", Enabled: false, Used: true},
		{Text: "c", Custom: true, Enabled: true},
	}, lobby.Actions)

	room.Phase = PHASE_GAME
	room.Round = 1
	room.WildcardPlayerID = "p1"
	room.Assignments["p1"] = WildcardAssignment()
	room.Assignments["p2"] = Assignment{Action: "x"}

	inGame := NewView(room, "p1")
	require.Len(t, inGame.Players, 2)
	assert.Equal(t, "Adam", inGame.Players[0].Name)
	assert.True(t, inGame.Players[1].IsWildcard)
	assert.True(t, inGame.IsHost)
	assert.False(t, inGame.RoundComplete)

	anonymous := NewView(room, "p3")
	assert.Empty(t, anonymous.You)
	assert.Nil(t, anonymous.Actions)
}
