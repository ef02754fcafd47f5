package delphes

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// pseudorapidity mirrors TLorentzVector::Eta(): particles traveling
// exactly along the beam axis are given a large finite pseudorapidity
// instead of +/-Inf, so tower binning never has to guard against
// infinities separately from the normal out-of-range case.
func pseudorapidity(p mgl64.Vec4) float64 {
	pMag := mgl64.Vec3{p.X(), p.Y(), p.Z()}.Len()
	pz := p.Z()
	if pMag == math.Abs(pz) {
		if pz == 0 {
			return 0
		}
		const big = 1e10
		if pz > 0 {
			return big
		}
		return -big
	}
	return 0.5 * math.Log((pMag+pz)/(pMag-pz))
}

func azimuth(x, y float64) float64 {
	return math.Atan2(y, x)
}

// deltaPhi wraps the azimuthal separation into (-pi, pi].
func deltaPhi(a, b float64) float64 {
	d := a - b
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

func deltaR(eta1, phi1, eta2, phi2 float64) float64 {
	dEta := eta1 - eta2
	dPhi := deltaPhi(phi1, phi2)
	return math.Hypot(dEta, dPhi)
}
