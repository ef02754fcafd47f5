package delphes

import "github.com/go-gl/mathgl/mgl64"

// GeneratorEvent is the input record spec.md's external-interfaces
// section requires: a caller feeds these in-process, synthesized or
// decoded however it likes, since no generator-file reader is part of
// this kernel.
type GeneratorEvent struct {
	PID      int32
	Status   int32
	M1, M2   int32
	D1, D2   int32
	Charge   int32
	Mass     float64
	Position mgl64.Vec4
	Momentum mgl64.Vec4
	IsPU     bool
}

// PileUpSource is the minimal pile-up side channel spec.md §6
// describes: a caller can iterate interactions, and within each,
// iterate particles. No binary pile-up file format is parsed here.
type PileUpSource interface {
	Entries() int
	ReadEntry(k int) error
	ReadParticle() (*GeneratorEvent, bool)
}

// SlicePileUpSource is an in-memory PileUpSource, for tests and for
// callers that already hold decoded pile-up events.
type SlicePileUpSource struct {
	entries [][]*GeneratorEvent
	cursor  []*GeneratorEvent
	pos     int
}

func NewSlicePileUpSource(entries [][]*GeneratorEvent) *SlicePileUpSource {
	return &SlicePileUpSource{entries: entries}
}

func (s *SlicePileUpSource) Entries() int { return len(s.entries) }

func (s *SlicePileUpSource) ReadEntry(k int) error {
	if k < 0 || k >= len(s.entries) {
		return &EventError{Module: "PileUpSource", Event: k, Reason: "entry index out of range"}
	}
	s.cursor = s.entries[k]
	s.pos = 0
	return nil
}

func (s *SlicePileUpSource) ReadParticle() (*GeneratorEvent, bool) {
	if s.pos >= len(s.cursor) {
		return nil, false
	}
	p := s.cursor[s.pos]
	s.pos++
	return p, true
}
