package delphes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestUniqueObjectFinder_DropsOverlap checks that a lower-priority
// collection's candidate is dropped when it overlaps (via a shared
// constituent) a higher-priority collection's candidate.
func TestUniqueObjectFinder_DropsOverlap(t *testing.T) {
	store := NewEventStore()
	factory := NewFactory()
	electrons := store.Export("electrons")
	jets := store.Export("jets")

	track := factory.NewCandidate()

	electron := factory.NewCandidate()
	electron.AddCandidate(track)
	electrons.Add(electron)

	jet := factory.NewCandidate()
	jet.AddCandidate(track) // shares the same track as the electron
	jets.Add(jet)

	cleanJet := factory.NewCandidate()
	cleanJet.AddCandidate(factory.NewCandidate())
	jets.Add(cleanJet)

	finder := NewUniqueObjectFinder()
	finder.AddPair("electrons", "uniqueElectrons")
	finder.AddPair("jets", "uniqueJets")

	cfg := NewConfig("UniqueObjectFinder", nil)
	require.NoError(t, finder.Init(cfg, store))

	ev := &Event{Factory: factory, Store: store, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder.Process(ev))

	require.Len(t, store.collections["uniqueElectrons"].Items(), 1)
	uniqueJets := store.collections["uniqueJets"].Items()
	require.Len(t, uniqueJets, 1)
	require.Equal(t, cleanJet.ID, uniqueJets[0].ID)
}

// TestUniqueObjectFinder_Idempotent matches spec.md §8: feeding the
// finder's own outputs back in yields the same outputs.
func TestUniqueObjectFinder_Idempotent(t *testing.T) {
	store := NewEventStore()
	factory := NewFactory()
	electrons := store.Export("electrons")
	jets := store.Export("jets")

	e1 := factory.NewCandidate()
	e1.AddCandidate(factory.NewCandidate())
	electrons.Add(e1)

	j1 := factory.NewCandidate()
	j1.AddCandidate(factory.NewCandidate())
	jets.Add(j1)

	finder := NewUniqueObjectFinder()
	finder.AddPair("electrons", "uniqueElectrons")
	finder.AddPair("jets", "uniqueJets")
	cfg := NewConfig("UniqueObjectFinder", nil)
	require.NoError(t, finder.Init(cfg, store))

	ev := &Event{Factory: factory, Store: store, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder.Process(ev))

	firstElectrons := append([]*Candidate(nil), store.collections["uniqueElectrons"].Items()...)
	firstJets := append([]*Candidate(nil), store.collections["uniqueJets"].Items()...)

	store2 := NewEventStore()
	electrons2 := store2.Export("electrons")
	jets2 := store2.Export("jets")
	for _, c := range firstElectrons {
		electrons2.Add(c)
	}
	for _, c := range firstJets {
		jets2.Add(c)
	}

	finder2 := NewUniqueObjectFinder()
	finder2.AddPair("electrons", "uniqueElectrons")
	finder2.AddPair("jets", "uniqueJets")
	require.NoError(t, finder2.Init(cfg, store2))

	ev2 := &Event{Factory: factory, Store: store2, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder2.Process(ev2))

	require.ElementsMatch(t, idSlice(firstElectrons), idSlice(store2.collections["uniqueElectrons"].Items()))
	require.ElementsMatch(t, idSlice(firstJets), idSlice(store2.collections["uniqueJets"].Items()))
}

func idSlice(cs []*Candidate) []uint32 {
	ids := make([]uint32, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}
