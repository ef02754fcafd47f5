package delphes

import (
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func newTrackAt(f *Factory, z, t float64) *Candidate {
	c := f.NewCandidate()
	c.PID = 211
	c.Charge = 1
	c.Momentum = ptEtaPhiE(2, 0.1, 0, 2)
	c.DZ = z
	c.ErrorDZ = 0.05
	c.ErrorD0 = 0.02
	c.ErrorT = 0.01 // ps
	c.Position = mgl64.Vec4{0, 0, 0, t}
	return c
}

// TestDAVertexFinder_SingleTrackYieldsOneVertex matches spec.md §8's
// one-track boundary behavior: a vertex finder run on one track yields
// one vertex at that track's z, with the track as its only member.
func TestDAVertexFinder_SingleTrackYieldsOneVertex(t *testing.T) {
	store := NewEventStore()
	factory := NewFactory()
	tracks := store.Export("tracks")
	tracks.Add(newTrackAt(factory, 1.5, 5.0))

	finder := NewDAVertexFinder()
	cfg := NewConfig("VertexFinderDA4D", map[string]any{
		"MinNTrack": 1,
	})
	require.NoError(t, finder.Init(cfg, store))

	ev := &Event{Factory: factory, Store: store, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder.Process(ev))

	vertices := store.collections["vertices"].Items()
	require.Len(t, vertices, 1)
	require.InDelta(t, 1.5, vertices[0].Position.Z(), 1e-6)
	require.EqualValues(t, 1, vertices[0].ClusterNDF)
}

// TestDAVertexFinder_AllTracksSameVertexCluster exercises the simplest
// convergence case: many tracks at the same (z,t) converge to a single
// vertex at their common z.
func TestDAVertexFinder_AllTracksSameVertexCluster(t *testing.T) {
	store := NewEventStore()
	factory := NewFactory()
	tracks := store.Export("tracks")
	for i := 0; i < 20; i++ {
		tracks.Add(newTrackAt(factory, 0.0, 0.0))
	}

	finder := NewDAVertexFinder()
	cfg := NewConfig("VertexFinderDA4D", nil)
	require.NoError(t, finder.Init(cfg, store))

	ev := &Event{Factory: factory, Store: store, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder.Process(ev))

	vertices := store.collections["vertices"].Items()
	require.Len(t, vertices, 1)
	require.InDelta(t, 0.0, vertices[0].Position.Z(), 1e-3)
}

// TestDAVertexFinder_FillRejectsOutOfWindowTracks checks that the pT
// window in fill() excludes tracks below PtMin and above PtMax before
// they ever reach the annealing loop.
func TestDAVertexFinder_FillRejectsOutOfWindowTracks(t *testing.T) {
	finder := NewDAVertexFinder()
	cfg := NewConfig("VertexFinderDA4D", map[string]any{"PtMin": 1.0, "PtMax": 10.0})
	store := NewEventStore()
	require.NoError(t, finder.Init(cfg, store))

	lowPt := &Candidate{Momentum: ptEtaPhiE(0.1, 0, 0, 0.1), ErrorDZ: 0.1, ErrorT: 0.1, ErrorD0: 0.1}
	highPt := &Candidate{Momentum: ptEtaPhiE(100, 0, 0, 100), ErrorDZ: 0.1, ErrorT: 0.1, ErrorD0: 0.1}
	ok := &Candidate{Momentum: ptEtaPhiE(3, 0, 0, 3), ErrorDZ: 0.1, ErrorT: 0.1, ErrorD0: 0.1}

	tracks, rejected := finder.fill([]*Candidate{lowPt, highPt, ok})
	require.Len(t, tracks, 1)
	require.Len(t, rejected, 2)
}

// TestDAVertexFinder_TwoVerticesSeparatedInZSameTime matches spec.md
// §8 scenario 4: two populations of tracks at the same time but 2mm
// apart in z resolve into two distinct vertices near their true
// positions, with every track assigned (none sent to noise).
func TestDAVertexFinder_TwoVerticesSeparatedInZSameTime(t *testing.T) {
	store := NewEventStore()
	factory := NewFactory()
	tracks := store.Export("tracks")
	for i := 0; i < 20; i++ {
		tracks.Add(newTrackAt(factory, 0.0, 0.0))
	}
	for i := 0; i < 20; i++ {
		tracks.Add(newTrackAt(factory, 2.0, 0.0))
	}

	finder := NewDAVertexFinder()
	cfg := NewConfig("VertexFinderDA4D", nil)
	require.NoError(t, finder.Init(cfg, store))

	ev := &Event{Factory: factory, Store: store, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder.Process(ev))

	vertices := store.collections["vertices"].Items()
	require.Len(t, vertices, 2)
	sort.Slice(vertices, func(i, j int) bool { return vertices[i].Position.Z() < vertices[j].Position.Z() })

	require.InDelta(t, 0.0, vertices[0].Position.Z(), 1e-3)
	require.InDelta(t, 2.0, vertices[1].Position.Z(), 1e-3)
	require.EqualValues(t, 20, vertices[0].ClusterNDF)
	require.EqualValues(t, 20, vertices[1].ClusterNDF)
}

// TestDAVertexFinder_TwoVerticesSeparatedInTimeSameZ matches spec.md
// §8 scenario 5: two populations at the same z but 60ps apart in time
// resolve into two distinct vertices separated on the time axis.
func TestDAVertexFinder_TwoVerticesSeparatedInTimeSameZ(t *testing.T) {
	store := NewEventStore()
	factory := NewFactory()
	tracks := store.Export("tracks")
	for i := 0; i < 20; i++ {
		trk := newTrackAt(factory, 0.0, -30.0)
		trk.ErrorDZ = 1.0
		trk.ErrorT = 10.0
		tracks.Add(trk)
	}
	for i := 0; i < 20; i++ {
		trk := newTrackAt(factory, 0.0, 30.0)
		trk.ErrorDZ = 1.0
		trk.ErrorT = 10.0
		tracks.Add(trk)
	}

	finder := NewDAVertexFinder()
	cfg := NewConfig("VertexFinderDA4D", nil)
	require.NoError(t, finder.Init(cfg, store))

	ev := &Event{Factory: factory, Store: store, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder.Process(ev))

	vertices := store.collections["vertices"].Items()
	require.Len(t, vertices, 2)
	sort.Slice(vertices, func(i, j int) bool { return vertices[i].Position.T() < vertices[j].Position.T() })

	require.InDelta(t, -30.0, vertices[0].Position.T(), 1.0)
	require.InDelta(t, 30.0, vertices[1].Position.T(), 1.0)
}

// TestDAVertexFinder_OutlierRejection matches spec.md §8 scenario 6:
// a handful of tracks far outside the signal cluster in both z and t
// are rejected as noise (ClusterIndex -1) rather than forming their
// own under-populated vertex or contaminating the real one.
func TestDAVertexFinder_OutlierRejection(t *testing.T) {
	store := NewEventStore()
	factory := NewFactory()
	tracks := store.Export("tracks")

	for i := 0; i < 10; i++ {
		tracks.Add(newTrackAt(factory, 0.0, 0.0))
	}

	outlier1 := newTrackAt(factory, 10.0, 200.0)
	outlier2 := newTrackAt(factory, 10.0, 200.0)
	tracks.Add(outlier1)
	tracks.Add(outlier2)

	finder := NewDAVertexFinder()
	cfg := NewConfig("VertexFinderDA4D", map[string]any{"MinNTrack": 10})
	require.NoError(t, finder.Init(cfg, store))

	ev := &Event{Factory: factory, Store: store, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder.Process(ev))

	vertices := store.collections["vertices"].Items()
	require.Len(t, vertices, 1)
	require.EqualValues(t, 10, vertices[0].ClusterNDF)
	require.EqualValues(t, -1, outlier1.ClusterIndex)
	require.EqualValues(t, -1, outlier2.ClusterIndex)
}

// TestClusterZOnly_SingleTrackYieldsOneVertex checks the z-only
// reference finder's degenerate one-track case.
func TestClusterZOnly_SingleTrackYieldsOneVertex(t *testing.T) {
	store := NewEventStore()
	factory := NewFactory()
	tracks := store.Export("tracks")
	trk := newTrackAt(factory, 2.0, 0)
	trk.Momentum = ptEtaPhiE(6, 0.1, 0, 6)
	tracks.Add(trk)

	finder := NewClusterZOnly()
	cfg := NewConfig("VertexFinder", map[string]any{"MinNDF": 1, "SeedMinPT": 1.0})
	require.NoError(t, finder.Init(cfg, store))

	ev := &Event{Factory: factory, Store: store, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder.Process(ev))

	vertices := store.collections["vertices"].Items()
	require.Len(t, vertices, 1)
	require.InDelta(t, 2.0, vertices[0].Position.Z(), 1e-9)
	require.EqualValues(t, 1, vertices[0].ClusterNDF)
}

// TestClusterZOnly_TwoSeparatedClusters checks that two well-separated
// groups of tracks form two distinct vertices.
func TestClusterZOnly_TwoSeparatedClusters(t *testing.T) {
	store := NewEventStore()
	factory := NewFactory()
	tracks := store.Export("tracks")
	for i := 0; i < 5; i++ {
		trk := newTrackAt(factory, 0.0, 0)
		trk.Momentum = ptEtaPhiE(6, 0.1, 0, 6)
		tracks.Add(trk)
	}
	for i := 0; i < 5; i++ {
		trk := newTrackAt(factory, 50.0, 0)
		trk.Momentum = ptEtaPhiE(6, 0.1, 0, 6)
		tracks.Add(trk)
	}

	finder := NewClusterZOnly()
	cfg := NewConfig("VertexFinder", map[string]any{"MinNDF": 3, "SeedMinPT": 1.0, "Sigma": 3.0})
	require.NoError(t, finder.Init(cfg, store))

	ev := &Event{Factory: factory, Store: store, Logger: NewNopLogger(), rng: newEventRand([16]byte{}, 0)}
	require.NoError(t, finder.Process(ev))

	vertices := store.collections["vertices"].Items()
	require.Len(t, vertices, 2)
}
