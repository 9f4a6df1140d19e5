package game

import (
	"fmt"
	"slices"
	"strings"
)

const MAX_ACTION_LENGTH = 200

// ActionCatalog turns catalog operations into patches and draws actions.
// It holds no room state of its own; the catalog lives inside the Room.
type ActionCatalog struct {
	rnd *Random
}

func NewActionCatalog(rnd *Random) *ActionCatalog {
	return &ActionCatalog{rnd: rnd}
}

// AddCustomAction returns ok=false when text is already known, which callers
// treat as a silent no-op.
func (ac *ActionCatalog) AddCustomAction(cat Catalog, text string) (Patch, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > MAX_ACTION_LENGTH {
		return Patch{}, false, fmt.Errorf("%w: custom action must be 1-%d characters", ErrInvalidAction, MAX_ACTION_LENGTH)
	}

	if cat.Has(text) {
		return Patch{}, false, nil
	}

	return Patch{AddCustom: []string{text}}, true, nil
}

func (ac *ActionCatalog) SetEnabled(cat Catalog, action string, enabled bool) (Patch, error) {
	if !cat.Has(action) {
		return Patch{}, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, action)
	}

	if enabled {
		return Patch{Enable: []string{action}}, nil
	}
	return Patch{Disable: []string{action}}, nil
}

func (ac *ActionCatalog) SetAllEnabled(cat Catalog, enabled bool) Patch {
	if enabled {
		return Patch{ClearDisabled: true}
	}
	return Patch{Disable: cat.Known()}
}

// Draw picks one action from pool. With noRepeat the pick is restricted to
// pool \ used and an empty remainder is ErrOutOfActions rather than a repeat.
func (ac *ActionCatalog) Draw(pool []string, used map[string]bool, noRepeat bool) (string, error) {
	candidates := pool
	if noRepeat {
		candidates = make([]string, 0, len(pool))
		for _, a := range pool {
			if !used[a] {
				candidates = append(candidates, a)
			}
		}
	}

	action, ok := Pick(ac.rnd, candidates)
	if !ok {
		return "", ErrOutOfActions
	}

	return action, nil
}

// NewDraw starts a multi-draw over a snapshot of cat, used when one decision
// deals several actions at once.
func (ac *ActionCatalog) NewDraw(cat Catalog, noRepeat bool) *Draw {
	return &Draw{
		ac:       ac,
		pool:     cat.EnabledPool(),
		used:     cloneSet(cat.Used),
		noRepeat: noRepeat,
	}
}

type Draw struct {
	ac       *ActionCatalog
	pool     []string
	used     map[string]bool
	noRepeat bool
	drawn    []string
}

func (d *Draw) Next() (string, error) {
	action, err := d.ac.Draw(d.pool, d.used, d.noRepeat)
	if err != nil {
		return "", err
	}

	if d.noRepeat {
		d.used[action] = true
		d.drawn = append(d.drawn, action)
	}

	return action, nil
}

// Record adds the bookkeeping for everything drawn so far to p. Under no-repeat
// each drawn action is marked used and disabled in the same write as the
// assignments that carry it.
func (d *Draw) Record(p *Patch) {
	if len(d.drawn) == 0 {
		return
	}

	p.MarkUsed = append(p.MarkUsed, d.drawn...)
	p.Disable = append(p.Disable, d.drawn...)
}

func (d *Draw) Drawn() []string {
	return slices.Clone(d.drawn)
}
