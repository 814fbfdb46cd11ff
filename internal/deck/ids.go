package deck

import (
	"errors"
	"math/rand/v2"
	"sync"
)

// Identifier range for decks and note models: [2^30, 2^31).
const (
	MinID int64 = 1 << 30
	MaxID int64 = 1 << 31
)

// ErrIDSpaceExhausted is returned when no unused id can be drawn.
var ErrIDSpaceExhausted = errors.New("no unused identifier available")

// maxDraws bounds the redraws spent looking for an unused id.
const maxDraws = 64

// IDSource supplies deck and note model identifiers.
type IDSource interface {
	NextID() (int64, error)
}

// RandomIDs draws uniformly from [MinID, MaxID) and never hands out the same
// id twice within a process. Ids issued by other processes or earlier runs
// are not tracked; with 2^30 candidates a cross-run collision is treated as
// negligible.
type RandomIDs struct {
	mu     sync.Mutex
	rng    *rand.Rand
	issued map[int64]struct{}
}

// NewRandomIDs returns a RandomIDs seeded from the runtime's random source.
func NewRandomIDs() *RandomIDs {
	return NewSeededIDs(rand.Uint64(), rand.Uint64())
}

// NewSeededIDs returns a RandomIDs with a fixed PCG seed, for reproducible tests.
func NewSeededIDs(seed1, seed2 uint64) *RandomIDs {
	return &RandomIDs{
		rng:    rand.New(rand.NewPCG(seed1, seed2)),
		issued: make(map[int64]struct{}),
	}
}

// NextID returns an id in [MinID, MaxID) not previously returned by r.
func (r *RandomIDs) NextID() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < maxDraws; i++ {
		id := MinID + r.rng.Int64N(MaxID-MinID)
		if _, seen := r.issued[id]; seen {
			continue
		}
		r.issued[id] = struct{}{}
		return id, nil
	}
	return 0, ErrIDSpaceExhausted
}
