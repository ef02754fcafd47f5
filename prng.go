package delphes

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// newRunID stamps a run with a uuid.UUID, exactly as the teacher's
// asset registry tagged each load with a fresh uuid — repurposed here
// as provenance and PRNG seed material instead of an asset key.
func newRunID() [16]byte {
	return uuid.New()
}

// eventRand is a *rand.Rand seeded from a hash of (run, event), so a
// replayed event is bit-for-bit reproducible regardless of what ran
// before it — the teacher seeds one *rand.Rand per emitter job for the
// same reason: never share one global source across concurrent units
// of work.
type eventRand struct {
	*rand.Rand
}

func newEventRand(runID [16]byte, event int) *eventRand {
	h := fnv.New64a()
	h.Write(runID[:])
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(event))
	h.Write(buf[:])
	seed := int64(h.Sum64())
	return &eventRand{Rand: rand.New(rand.NewSource(seed))}
}

// logNormal mirrors Calorimeter.cc's LogNormal(mean, sigma): returns 0
// for a non-positive mean (the silent fallback spec.md's error-handling
// table requires for this numerical edge case) instead of panicking
// on log(<=0).
func (r *eventRand) logNormal(mean, sigma float64) float64 {
	if mean <= 0 {
		return 0
	}
	if sigma <= 0 {
		return mean
	}
	b := math.Sqrt(math.Log(1 + (sigma*sigma)/(mean*mean)))
	a := math.Log(mean) - 0.5*b*b
	return math.Exp(a + b*r.NormFloat64())
}
