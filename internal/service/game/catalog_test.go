package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraw_NoRepeatSkipsUsed(t *testing.T) {
	ac := NewActionCatalog(NewSeededRandom(1, 1))
	used := map[string]bool{"x": true, "y": true}

	for range 20 {
		action, err := ac.Draw([]string{"x", "y", "z"}, used, true)
		require.NoError(t, err)
		assert.Equal(t, "z", action)
	}

	_, err := ac.Draw([]string{"x", "y"}, used, true)
	assert.ErrorIs(t, err, ErrOutOfActions)

	action, err := ac.Draw([]string{"x"}, used, false)
	require.NoError(t, err)
	assert.Equal(t, "x", action)

	_, err = ac.Draw(nil, nil, false)
	assert.ErrorIs(t, err, ErrOutOfActions)
}

func TestNewDraw_RecordsUsedAndDisabled(t *testing.T) {
	ac := NewActionCatalog(NewSeededRandom(2, 2))
	cat := NewCatalog([]string{"x", "y", "z"})

	d := ac.NewDraw(cat, true)
	first, err := d.Next()
	require.NoError(t, err)
	second, err := d.Next()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	var p Patch
	d.Record(&p)
	assert.ElementsMatch(t, []string{first, second}, p.MarkUsed)
	assert.ElementsMatch(t, []string{first, second}, p.Disable)

	// the snapshot is not touched
	assert.Empty(t, cat.Used)

	loose := ac.NewDraw(cat, false)
	_, err = loose.Next()
	require.NoError(t, err)

	var q Patch
	loose.Record(&q)
	assert.Empty(t, q.MarkUsed)
	assert.Empty(t, loose.Drawn())
}

func TestCatalogPatches(t *testing.T) {
	ac := NewActionCatalog(NewSeededRandom(3, 3))
	cat := NewCatalog([]string{"x", "y"})

	_, ok, err := ac.AddCustomAction(cat, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ac.AddCustomAction(cat, strings.Repeat("a", MAX_ACTION_LENGTH+1))
	assert.ErrorIs(t, err, ErrInvalidAction)

	p, ok, err := ac.AddCustomAction(cat, " new one ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"new one"}, p.AddCustom)

	p, err = ac.SetEnabled(cat, "y", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, p.Disable)

	_, err = ac.SetEnabled(cat, "nope", true)
	assert.ErrorIs(t, err, ErrInvalidAction)

	assert.True(t, ac.SetAllEnabled(cat, true).ClearDisabled)
	assert.Equal(t, []string{"x", "y"}, ac.SetAllEnabled(cat, false).Disable)
}
