package game

import (
	"encoding/json"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

func GenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("Failed to generate UUID: " + err.Error())
	}

	return id.String()
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("Failed to marshal: " + err.Error())
	}

	return data
}

// Random is a goroutine-safe wrapper around *rand.Rand. Picks here are for
// fairness only and do not need a cryptographic source.
type Random struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRandom() *Random {
	return NewSeededRandom(rand.Uint64(), rand.Uint64())
}

func NewSeededRandom(seed1, seed2 uint64) *Random {
	return &Random{
		r: rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (rnd *Random) IntN(n int) int {
	rnd.mu.Lock()
	defer rnd.mu.Unlock()

	return rnd.r.IntN(n)
}

// Pick returns a uniformly random element; ok is false for an empty slice.
func Pick[T any](rnd *Random, items []T) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	return items[rnd.IntN(len(items))], true
}

// Shuffled returns a shuffled copy of items.
func Shuffled[T any](rnd *Random, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)

	rnd.mu.Lock()
	defer rnd.mu.Unlock()

	rnd.r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})

	return out
}
