package delphes

import "math"

// JetFlavorAssociation stamps each jet with an algorithmic flavour
// (heaviest b/c parton found in a cone, otherwise the highest-pT parton
// in the cone, otherwise the nearest one) and a physics flavour (the flavour of
// the unique hard-scatter parton in the cone, left unset on
// contamination). Grounded on
// original_source/modules/JetFlavorAssociation.cc.
type JetFlavorAssociation struct {
	deltaR float64
	partonPtMin float64

	jetName, partonName string
	output               *Collection
}

func NewJetFlavorAssociation() *JetFlavorAssociation { return &JetFlavorAssociation{} }

func (j *JetFlavorAssociation) Init(cfg *Config, store *EventStore) error {
	j.deltaR = cfg.FloatDefault("DeltaR", 0.5)
	j.partonPtMin = cfg.FloatDefault("PartonPTMin", 0.0)

	j.jetName = cfg.StringDefault("JetInputArray", "jets")
	j.partonName = cfg.StringDefault("PartonInputArray", "partons")

	j.output = store.Export(cfg.StringDefault("OutputArray", "jets"))
	return nil
}

func (j *JetFlavorAssociation) Finish() {}

// isHeavyFlavor reports whether pid is a b or c quark, the only codes the
// algorithmic flavour tracks beyond light/gluon.
func isHeavyFlavor(pid int32) bool {
	a := abs32(pid)
	return a == 4 || a == 5
}

func (j *JetFlavorAssociation) Process(ev *Event) error {
	jets, ok := ev.Store.Import(j.jetName)
	if !ok {
		return nil
	}
	partons, hasPartons := ev.Store.Import(j.partonName)

	for _, jet := range jets.Items() {
		j.output.Add(jet)
		if !hasPartons {
			continue
		}

		eta := jet.Eta()
		phi := jet.MomentumPhi()

		var heaviest int32
		var heaviestPt float64
		var nearest int32
		nearestDR := math.Inf(1)
		var highestPt int32
		var highestPtVal float64

		var uniquePhysPID int32
		nPhysCandidates := 0

		for _, p := range partons.Items() {
			if p.Pt() < j.partonPtMin {
				continue
			}
			dr := deltaR(eta, phi, p.Eta(), p.MomentumPhi())
			if dr > j.deltaR {
				continue
			}
			abs := abs32(p.PID)

			if dr < nearestDR {
				nearestDR = dr
				nearest = abs
			}
			if p.Pt() > highestPtVal {
				highestPtVal = p.Pt()
				highestPt = abs
			}

			// Algorithmic flavor: the heaviest b/c parton wins; a b
			// always outranks a c already found (JetFlavorAssociation.cc's
			// GetAlgoFlavor ordering), gluons and light quarks never
			// override a heavy flavor already found.
			if isHeavyFlavor(p.PID) {
				outranks := heaviest == 0 || (abs == 5 && heaviest != 5) || (abs == heaviest && p.Pt() > heaviestPt)
				if outranks {
					heaviest = abs
					heaviestPt = p.Pt()
				}
			}

			// Physics flavor: the jet must contain exactly one
			// hard-scatter parton candidate (status == 23, the
			// outgoing-hard-process code); more than one candidate
			// contaminates the match and the physics flavor is left 0.
			if p.Status == 23 {
				nPhysCandidates++
				uniquePhysPID = abs
			}
		}

		if heaviest != 0 {
			jet.FlavorAlgo = uint32(heaviest)
		} else if highestPt != 0 {
			jet.FlavorAlgo = uint32(highestPt)
		} else {
			jet.FlavorAlgo = uint32(nearest)
		}
		jet.FlavorHeaviest = uint32(heaviest)
		jet.FlavorHighestPt = uint32(highestPt)
		jet.FlavorNearest = uint32(nearest)

		if nPhysCandidates == 1 {
			jet.FlavorPhys = uint32(uniquePhysPID)
		}

		jet.Flavor = jet.FlavorAlgo
	}
	return nil
}
