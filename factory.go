package delphes

import "sync"

// Factory is the per-event Candidate arena. It generalizes the
// teacher's entity-id allocator (Ecs.nextEntityId's mutex-guarded
// counter) and its particle-pool recycling idiom down to a single
// record type: instead of archetype-keyed component storage, a pool of
// *Candidate is handed out by NewCandidate and reused across events via
// Clear, exactly like the teacher zeroes pl.alive instead of
// reallocating its particle pool. Each Candidate keeps a stable address
// for its lifetime so pointers handed to callers are never invalidated
// by the pool growing.
type Factory struct {
	mu     sync.Mutex
	pool   []*Candidate
	issued int
	idSeq  uint32
}

func NewFactory() *Factory {
	return &Factory{pool: make([]*Candidate, 0, 1024)}
}

// NewCandidate draws the next slot from the arena, allocating a new
// backing Candidate only when the pool is exhausted.
func (f *Factory) NewCandidate() *Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.idSeq++
	id := f.idSeq

	if f.issued < len(f.pool) {
		c := f.pool[f.issued]
		*c = Candidate{}
		c.ID = id
		f.issued++
		return c
	}

	c := &Candidate{ID: id}
	f.pool = append(f.pool, c)
	f.issued = len(f.pool)
	return c
}

// Clear resets the arena for the next event without shrinking the
// underlying pool, mirroring the teacher's pool-capacity reuse.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = 0
	f.idSeq = 0
}
