package delphes

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// EnergyFractions is the (ECAL, HCAL) response split for one PDG code.
type EnergyFractions struct {
	ECAL, HCAL float64
}

// Geometry is the non-uniform eta x phi tower grid: a sorted list of
// eta edges, and for each eta bin a sorted list of phi edges. This
// generalizes the teacher's SpatialHashGrid (mod_spatialgrid.go): the
// teacher's grid is uniform-cell so a hash works, but calorimeter
// segmentation is non-uniform (finer in the barrel, coarser forward),
// so binning here is done by binary search over sorted edges instead
// of a cell hash — same "spatial index over a configured geometry"
// role, different search structure.
type Geometry struct {
	etaEdges []float64
	phiEdges [][]float64 // phiEdges[i] applies to eta bin i (between etaEdges[i], etaEdges[i+1])
}

func NewGeometry(etaEdges []float64, phiEdges [][]float64) *Geometry {
	return &Geometry{etaEdges: etaEdges, phiEdges: phiEdges}
}

// findBin returns the index i such that edges[i] <= v < edges[i+1], or
// -1 if v is outside [edges[0], edges[len-1]) — the same
// out-of-range-at-begin/end rejection the reference lower_bound-based
// binning performs.
func findBin(edges []float64, v float64) int {
	if len(edges) < 2 || v < edges[0] || v >= edges[len(edges)-1] {
		return -1
	}
	i := sort.Search(len(edges), func(i int) bool { return edges[i] > v }) - 1
	if i < 0 || i >= len(edges)-1 {
		return -1
	}
	return i
}

// Bin returns (etaBin, phiBin) for a hit at (eta, phi), or (-1, -1) if
// the hit falls outside the configured geometry.
func (g *Geometry) Bin(eta, phi float64) (int, int) {
	etaBin := findBin(g.etaEdges, eta)
	if etaBin < 0 || etaBin >= len(g.phiEdges) {
		return -1, -1
	}
	phiBin := findBin(g.phiEdges[etaBin], phi)
	if phiBin < 0 {
		return -1, -1
	}
	return etaBin, phiBin
}

func (g *Geometry) Edges(etaBin, phiBin int) (etaLo, etaHi, phiLo, phiHi float64) {
	return g.etaEdges[etaBin], g.etaEdges[etaBin+1], g.phiEdges[etaBin][phiBin], g.phiEdges[etaBin][phiBin+1]
}

// Calorimeter bins incoming particles into eta-phi towers, smears the
// accumulated ECAL/HCAL energy, and emits energy-flow objects: the
// track-matched fraction of a tower's energy is replaced by the
// (presumably better-measured) sum of associated track momenta, and
// the residual is emitted as a photon or neutral hadron.
type Calorimeter struct {
	geom *Geometry

	fractions       map[int32]EnergyFractions
	defaultFraction EnergyFractions

	ecalResolution func(eta, energy float64) float64
	hcalResolution func(eta, energy float64) float64

	// energyFloor and significance implement spec.md §4.3's
	// zero-suppression: a tower (or e-flow residual) below the
	// absolute floor, or below `significance` multiples of its own
	// resolution sigma, is silently dropped (spec.md §7's
	// "under-populated calorimeter tower ... silently dropped").
	energyFloor  float64
	significance float64

	smearCenter bool

	particlesName, tracksName string
	towersName, photonsName   string
	eflowTracksName           string
	eflowPhotonsName          string
	eflowNeutralHadronsName   string

	towers, photons                         *Collection
	eflowTracks, eflowPhotons, eflowNeutrals *Collection
}

func NewCalorimeter(geom *Geometry) *Calorimeter {
	return &Calorimeter{geom: geom, fractions: map[int32]EnergyFractions{}}
}

// SetFraction registers the (ECAL, HCAL) response for a PDG code;
// SetDefaultFraction sets the fallback used for any PID not present —
// spec.md's Open Question (ii), resolved the same way the reference
// fraction map defaults an unlisted key to (0.0, 1.0) (all-hadronic).
func (c *Calorimeter) SetFraction(pid int32, f EnergyFractions) { c.fractions[pid] = f }
func (c *Calorimeter) SetDefaultFraction(f EnergyFractions)     { c.defaultFraction = f }

func (c *Calorimeter) fractionFor(pid int32) EnergyFractions {
	if f, ok := c.fractions[abs32(pid)]; ok {
		return f
	}
	return c.defaultFraction
}

func (c *Calorimeter) Init(cfg *Config, store *EventStore) error {
	c.particlesName = cfg.StringDefault("ParticleInputArray", "stableParticles")
	c.tracksName = cfg.StringDefault("TrackInputArray", "tracks")
	c.towersName = cfg.StringDefault("TowerOutputArray", "towers")
	c.photonsName = cfg.StringDefault("PhotonOutputArray", "photons")
	c.eflowTracksName = cfg.StringDefault("EFlowTrackOutputArray", "eflowTracks")
	c.eflowPhotonsName = cfg.StringDefault("EFlowPhotonOutputArray", "eflowPhotons")
	c.eflowNeutralHadronsName = cfg.StringDefault("EFlowNeutralHadronOutputArray", "eflowNeutralHadrons")

	if c.defaultFraction == (EnergyFractions{}) {
		c.defaultFraction = EnergyFractions{ECAL: 0.0, HCAL: 1.0}
	}
	if c.ecalResolution == nil {
		c.ecalResolution = func(eta, energy float64) float64 { return 0.05 * math.Sqrt(math.Max(energy, 0)) }
	}
	if c.hcalResolution == nil {
		c.hcalResolution = func(eta, energy float64) float64 { return 0.15 * math.Sqrt(math.Max(energy, 0)) }
	}
	c.energyFloor = cfg.FloatDefault("EnergyMin", 0.0)
	c.significance = cfg.FloatDefault("EnergySignificanceMin", 0.0)
	c.smearCenter = cfg.BoolDefault("SmearTowerCenter", false)

	c.towers = store.Export(c.towersName)
	c.photons = store.Export(c.photonsName)
	c.eflowTracks = store.Export(c.eflowTracksName)
	c.eflowPhotons = store.Export(c.eflowPhotonsName)
	c.eflowNeutrals = store.Export(c.eflowNeutralHadronsName)
	return nil
}

func (c *Calorimeter) Finish() {}

type towerAccumulator struct {
	ecal, hcal    float64
	timeWeighted  float64
	timeWeightSum float64
	nHits         int
	nPhotonHits   int
	tracks        []*Candidate // contributing tracks, emitted individually as e-flow tracks

	// trackEcalEnergy/trackHcalEnergy are the PDG-fraction split of the
	// contributing tracks' own energy, subtracted from the matching
	// ECAL/HCAL residual so a track's calorimeter deposit isn't double
	// counted against its e-flow track object.
	trackEcalEnergy, trackHcalEnergy float64
	sample                           *Candidate // one representative hit, for eta/phi/edges
}

// Process groups particle and track hits per tower in a map keyed by
// (etaBin, phiBin), allocated afresh for every event, then finalizes
// the towers in ascending key order: it smears each tower's
// accumulated energy and emits tower + e-flow collections.
func (c *Calorimeter) Process(ev *Event) error {
	particles, _ := ev.Store.Import(c.particlesName)
	tracks, _ := ev.Store.Import(c.tracksName)

	towerKey := func(etaBin, phiBin int) int64 {
		return int64(etaBin)<<32 | int64(phiBin)
	}

	accum := map[int64]*towerAccumulator{}

	addHit := func(cand *Candidate, fromTrack bool) {
		eta := cand.Eta()
		phi := cand.MomentumPhi()
		etaBin, phiBin := c.geom.Bin(eta, phi)
		if etaBin < 0 || phiBin < 0 {
			return
		}
		key := towerKey(etaBin, phiBin)
		acc, ok := accum[key]
		if !ok {
			acc = &towerAccumulator{sample: cand}
			accum[key] = acc
		}
		energy := cand.Momentum.W()
		if fromTrack {
			frac := c.fractionFor(cand.PID)
			acc.trackEcalEnergy += energy * frac.ECAL
			acc.trackHcalEnergy += energy * frac.HCAL
			acc.tracks = append(acc.tracks, cand)
			return
		}
		frac := c.fractionFor(cand.PID)
		acc.ecal += energy * frac.ECAL
		acc.hcal += energy * frac.HCAL
		w := math.Sqrt(math.Max(energy, 0))
		acc.timeWeighted += w * cand.Position.W()
		acc.timeWeightSum += w
		acc.nHits++
		absPID := abs32(cand.PID)
		if absPID == 11 || absPID == 22 {
			acc.nPhotonHits++
		}
	}

	if particles != nil {
		for _, p := range particles.Items() {
			addHit(p, false)
		}
	}
	if tracks != nil {
		for _, t := range tracks.Items() {
			addHit(t, true)
		}
	}

	keys := make([]int64, 0, len(accum))
	for k := range accum {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		acc := accum[key]
		c.finalizeTower(ev, acc)
	}
	return nil
}

// passesThreshold implements spec.md §4.3's zero-suppression: an energy
// is kept only if it clears both the absolute floor and `significance`
// multiples of its own resolution sigma.
func (c *Calorimeter) passesThreshold(energy, sigma float64) bool {
	if energy <= c.energyFloor {
		return false
	}
	if c.significance > 0 && energy <= c.significance*sigma {
		return false
	}
	return true
}

func (c *Calorimeter) finalizeTower(ev *Event, acc *towerAccumulator) {
	eta := acc.sample.Eta()
	phi := acc.sample.MomentumPhi()
	if c.smearCenter {
		etaBin, phiBin := c.geom.Bin(eta, phi)
		etaLo, etaHi, phiLo, phiHi := c.geom.Edges(etaBin, phiBin)
		eta = etaLo + ev.rng.Float64()*(etaHi-etaLo)
		phi = phiLo + ev.rng.Float64()*(phiHi-phiLo)
	}

	ecalSigma := c.ecalResolution(eta, acc.ecal)
	hcalSigma := c.hcalResolution(eta, acc.hcal)
	ecalSmeared := ev.rng.logNormal(acc.ecal, ecalSigma)
	hcalSmeared := ev.rng.logNormal(acc.hcal, hcalSigma)

	if !c.passesThreshold(ecalSmeared, ecalSigma) {
		ecalSmeared = 0
	}
	if !c.passesThreshold(hcalSmeared, hcalSigma) {
		hcalSmeared = 0
	}

	totalTowerEnergy := ecalSmeared + hcalSmeared
	if totalTowerEnergy <= 0 && len(acc.tracks) == 0 {
		return
	}

	if totalTowerEnergy > 0 {
		tower := ev.Factory.NewCandidate()
		tower.Kind = KindTower
		tower.Eem = ecalSmeared
		tower.Ehad = hcalSmeared
		tower.NTimeHits = acc.nHits
		tower.NPhotonHits = acc.nPhotonHits
		tower.NTrackHits = len(acc.tracks)
		tower.EdgeEta[0], tower.EdgeEta[1], tower.EdgePhi[0], tower.EdgePhi[1] = c.geom.Edges(c.geom.Bin(eta, phi))
		t := 0.0
		if acc.timeWeightSum > 0 {
			t = acc.timeWeighted / acc.timeWeightSum
		}
		tower.Position = mgl64.Vec4{0, 0, 0, t}
		tower.Momentum = ptEtaPhiE(totalTowerEnergy/math.Cosh(eta), eta, phi, totalTowerEnergy)
		c.towers.Add(tower)
	}

	// A tower with no matched track deposits its full smeared energy as
	// pure calorimeter objects; if every contributing particle was an
	// e/gamma it is additionally emitted as a photon candidate — the
	// same asymmetric emission the reference FinalizeTower performs.
	if len(acc.tracks) == 0 {
		if ecalSmeared > 0 {
			photon := ev.Factory.NewCandidate()
			photon.PID = 22
			photon.Kind = KindTower
			photon.Eem = ecalSmeared
			photon.Momentum = ptEtaPhiE(ecalSmeared/math.Cosh(eta), eta, phi, ecalSmeared)
			c.eflowPhotons.Add(photon)
			if acc.nPhotonHits == acc.nHits {
				c.photons.Add(photon)
			}
		}
		if hcalSmeared > 0 {
			neutral := ev.Factory.NewCandidate()
			neutral.PID = 130
			neutral.Kind = KindTower
			neutral.Ehad = hcalSmeared
			neutral.Momentum = ptEtaPhiE(hcalSmeared/math.Cosh(eta), eta, phi, hcalSmeared)
			c.eflowNeutrals.Add(neutral)
		}
		return
	}

	// Tower has tracks: emit every contributing track as-is, then
	// replace the corresponding fraction of the calorimeter measurement
	// with the (better-resolved) track momentum sum and emit whichever
	// residual remains significant.
	for _, trk := range acc.tracks {
		eflow := ev.Factory.NewCandidate()
		*eflow = *trk
		eflow.children = nil
		eflow.AddCandidate(trk)
		c.eflowTracks.Add(eflow)
	}

	ecalResidual := ecalSmeared - acc.trackEcalEnergy
	if c.passesThreshold(ecalResidual, ecalSigma) {
		photon := ev.Factory.NewCandidate()
		photon.PID = 22
		photon.Kind = KindTower
		photon.Eem = ecalResidual
		photon.Momentum = ptEtaPhiE(ecalResidual/math.Cosh(eta), eta, phi, ecalResidual)
		c.eflowPhotons.Add(photon)
	}

	hcalResidual := hcalSmeared - acc.trackHcalEnergy
	if c.passesThreshold(hcalResidual, hcalSigma) {
		neutral := ev.Factory.NewCandidate()
		neutral.PID = 130
		neutral.Kind = KindTower
		neutral.Ehad = hcalResidual
		neutral.Momentum = ptEtaPhiE(hcalResidual/math.Cosh(eta), eta, phi, hcalResidual)
		c.eflowNeutrals.Add(neutral)
	}
}
