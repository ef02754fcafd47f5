package delphes

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const speedOfLight = 2.99792458e8 // m/s

// Propagator transports charged and neutral particles from their
// production vertex to a cylinder of given radius and half-length,
// centered at the origin with its axis along z, in a uniform axial
// magnetic field Bz. Implements the three branches of the reference
// ParticlePropagator verbatim: pass-through for particles already
// outside the outer cylinder, a straight-line branch for neutrals (or
// Bz ~ 0), and a full helix branch otherwise.
type Propagator struct {
	radius, radius2  float64
	halfLength       float64
	radiusMax        float64
	halfLengthMax    float64
	bz               float64

	inputName                                                    string
	outputName, neutralName, chargedHadronName, electronName, muonName string

	input                                                                   *Collection
	output, neutrals, chargedHadrons, electrons, muons                      *Collection
}

func NewPropagator() *Propagator { return &Propagator{} }

func (p *Propagator) Init(cfg *Config, store *EventStore) error {
	p.radius = cfg.FloatDefault("Radius", 1.0)
	p.radius2 = p.radius * p.radius
	p.halfLength = cfg.FloatDefault("HalfLength", 3.0)
	p.bz = cfg.FloatDefault("Bz", 0.0)

	if p.radius < 1.0e-2 {
		return &ConfigError{Module: "ParticlePropagator", Reason: "magnetic field radius is too low"}
	}
	if p.halfLength < 1.0e-2 {
		return &ConfigError{Module: "ParticlePropagator", Reason: "magnetic field length is too low"}
	}

	p.radiusMax = cfg.FloatDefault("RadiusMax", p.radius)
	p.halfLengthMax = cfg.FloatDefault("HalfLengthMax", p.halfLength)

	p.inputName = cfg.StringDefault("InputArray", "stableParticles")
	p.outputName = cfg.StringDefault("OutputArray", "stableParticles")
	p.neutralName = cfg.StringDefault("NeutralOutputArray", "neutralParticles")
	p.chargedHadronName = cfg.StringDefault("ChargedHadronOutputArray", "chargedHadrons")
	p.electronName = cfg.StringDefault("ElectronOutputArray", "electrons")
	p.muonName = cfg.StringDefault("MuonOutputArray", "muons")

	p.output = store.Export(p.outputName)
	p.neutrals = store.Export(p.neutralName)
	p.chargedHadrons = store.Export(p.chargedHadronName)
	p.electrons = store.Export(p.electronName)
	p.muons = store.Export(p.muonName)
	return nil
}

func (p *Propagator) Finish() {}

func (p *Propagator) Process(ev *Event) error {
	input, ok := ev.Store.Import(p.inputName)
	if !ok {
		return nil
	}

	items := input.Items()
	if input == p.output {
		// Input and output share a name: the propagated candidates
		// replace the unpropagated ones instead of being appended to them.
		items = append([]*Candidate(nil), items...)
		p.output.Clear()
	}

	for _, candidate := range items {
		particle := candidate
		if children := candidate.Candidates(); len(children) > 0 {
			particle = children[0]
		}

		x := particle.Position.X() * 1e-3
		y := particle.Position.Y() * 1e-3
		z := particle.Position.Z() * 1e-3

		q := float64(particle.Charge)

		if math.Hypot(x, y) > p.radiusMax || math.Abs(z) > p.halfLengthMax {
			p.output.Add(cloneOutsideCylinder(ev.Factory, candidate, particle))
			continue
		}

		px := particle.Momentum.X()
		py := particle.Momentum.Y()
		pz := particle.Momentum.Z()
		pt2 := px*px + py*py
		pt := math.Sqrt(pt2)
		e := particle.Momentum.W()

		if pt2 < 1.0e-9 {
			continue
		}

		if math.Hypot(x, y) > p.radius || math.Abs(z) > p.halfLength {
			nc := cloneOutsideCylinder(ev.Factory, candidate, particle)
			p.output.Add(nc)
			continue
		}

		if math.Abs(q) < 1.0e-9 || math.Abs(p.bz) < 1.0e-9 {
			nc := p.propagateStraightLine(ev.Factory, candidate, particle, x, y, z, px, py, pz, pt2, e)
			p.output.Add(nc)
			p.routeCharged(nc, q)
			continue
		}

		nc := p.propagateHelix(ev.Factory, candidate, particle, x, y, z, px, py, pz, pt, e, q)
		if nc != nil {
			p.output.Add(nc)
			p.routeCharged(nc, q)
		}
	}
	return nil
}

func cloneOutsideCylinder(f *Factory, candidate, particle *Candidate) *Candidate {
	nc := f.NewCandidate()
	*nc = *candidate
	nc.children = nil
	nc.InitialPosition = particle.Position
	nc.Position = particle.Position
	nc.PathLength = 0
	nc.Momentum = particle.Momentum
	nc.AddCandidate(candidate)
	return nc
}

func (p *Propagator) propagateStraightLine(f *Factory, candidate, particle *Candidate, x, y, z, px, py, pz, pt2, e float64) *Candidate {
	tmp := px*y - py*x
	tR := (math.Sqrt(pt2*p.radius2-tmp*tmp) - px*x - py*y) / pt2
	tZ := (math.Copysign(p.halfLength, pz) - z) / pz
	t := math.Min(tR, tZ)

	xT := x + px*t
	yT := y + py*t
	zT := z + pz*t
	l := math.Sqrt((xT-x)*(xT-x) + (yT-y)*(yT-y) + (zT-z)*(zT-z))

	nc := f.NewCandidate()
	*nc = *candidate
	nc.children = nil
	nc.InitialPosition = particle.Position
	nc.Position = mgl64.Vec4{xT * 1e3, yT * 1e3, zT * 1e3, particle.Position.W() + t*e*1e3}
	nc.PathLength = l * 1e3
	nc.Momentum = particle.Momentum
	nc.AddCandidate(candidate)
	return nc
}

func (p *Propagator) propagateHelix(f *Factory, candidate, particle *Candidate, x, y, z, px, py, pz, pt, e, q float64) *Candidate {
	gammam := e * 1e9 / (speedOfLight * speedOfLight)
	omega := q * p.bz / gammam
	r := pt / (q * p.bz) * 1e9 / speedOfLight

	phi0 := math.Atan2(py, px)

	xc := x + r*math.Sin(phi0)
	yc := y - r*math.Cos(phi0)
	rc := math.Hypot(xc, yc)

	td := (phi0 + math.Atan2(xc, yc)) / omega
	pio := math.Abs(math.Pi / omega)
	for math.Abs(td) > 0.5*pio {
		td -= math.Copysign(1.0, td) * pio
	}

	vz := pz * speedOfLight / e

	phid := phi0 - omega*td
	xd := xc - r*math.Sin(phid)
	yd := yc + r*math.Cos(phid)
	zd := z + vz*td

	pxd := pt * math.Cos(phid)
	pyd := pt * math.Sin(phid)
	eta := pseudorapidity(mgl64.Vec4{px, py, pz, e})
	caMomentum := ptEtaPhiE(pt, eta, phid, e)

	d0 := (xd*pyd - yd*pxd) / pt
	dz := zd
	ctgTheta := 1.0 / math.Tan(polarAngle(caMomentum))

	var tZ float64
	if vz == 0 {
		tZ = 1e99
	} else {
		tZ = (math.Copysign(p.halfLength, pz) - z) / vz
	}

	var t float64
	if rc+math.Abs(r) < p.radius {
		t = tZ
	} else {
		alpha := math.Acos(clamp((r*r+rc*rc-p.radius*p.radius)/(2*math.Abs(r)*rc), -1, 1))
		tR := td + math.Abs(alpha/omega)
		t = math.Min(tR, tZ)
	}

	phiT := phi0 - omega*t
	xT := xc - r*math.Sin(phiT)
	yT := yc + r*math.Cos(phiT)
	zT := z + vz*t
	rT := math.Hypot(xT, yT)

	l := t * math.Hypot(vz, r*omega)

	if rT <= 0 {
		return nil
	}

	if particle == candidate {
		particle.D0 = d0 * 1e3
		particle.DZ = dz * 1e3
		particle.P = vecLen4(caMomentum)
		particle.PT = pt
		particle.CtgTheta = ctgTheta
		particle.Phi = azimuth(caMomentum.X(), caMomentum.Y())
	}

	nc := f.NewCandidate()
	*nc = *candidate
	nc.children = nil
	nc.InitialPosition = particle.Position
	nc.Position = mgl64.Vec4{xT * 1e3, yT * 1e3, zT * 1e3, particle.Position.W() + t*speedOfLight*1e3}
	nc.Momentum = caMomentum
	nc.PathLength = l * 1e3
	nc.ClosestApproach = mgl64.Vec4{xd * 1e3, yd * 1e3, zd * 1e3, 0}
	nc.AddCandidate(candidate)
	return nc
}

func (p *Propagator) routeCharged(nc *Candidate, q float64) {
	if math.Abs(q) > 1.0e-9 {
		nc.Kind = KindTrack
		switch abs32(nc.PID) {
		case 11:
			p.electrons.Add(nc)
		case 13:
			p.muons.Add(nc)
		default:
			p.chargedHadrons.Add(nc)
		}
	} else {
		p.neutrals.Add(nc)
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ptEtaPhiE builds a 4-momentum from (pt, eta, phi, E), matching
// ROOT::Math::PtEtaPhiEVector's convention.
func ptEtaPhiE(pt, eta, phi, e float64) mgl64.Vec4 {
	px := pt * math.Cos(phi)
	py := pt * math.Sin(phi)
	pz := pt * math.Sinh(eta)
	return mgl64.Vec4{px, py, pz, e}
}

func polarAngle(p mgl64.Vec4) float64 {
	pMag := vecLen3(p)
	if pMag == 0 {
		return 0
	}
	return math.Acos(p.Z() / pMag)
}

func vecLen3(p mgl64.Vec4) float64 {
	return math.Sqrt(p.X()*p.X() + p.Y()*p.Y() + p.Z()*p.Z())
}

func vecLen4(p mgl64.Vec4) float64 {
	return vecLen3(p)
}
