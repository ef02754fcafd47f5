package delphes

import "math"

// Isolation sums the transverse momentum of tracks and towers in a
// cone around each candidate, splitting the sum into prompt-charged,
// pile-up-charged, and neutral contributions so a caller can apply
// either a Delta-beta or a rho*area pile-up correction. Grounded on
// original_source/modules/Isolation.cc; the candidate/track/tower
// geometry it walks is the same EventStore collections every other
// module here reads, so no new indexing structure is introduced.
type Isolation struct {
	deltaRMax float64
	ptMin     float64
	ptRatioMax, sumPtMax float64
	useRhoCorrection     bool

	candidateName, isolationName string
	rhoName                      string

	output *Collection
}

func NewIsolation() *Isolation { return &Isolation{} }

func (iso *Isolation) Init(cfg *Config, store *EventStore) error {
	iso.deltaRMax = cfg.FloatDefault("DeltaRMax", 0.5)
	iso.ptMin = cfg.FloatDefault("PTMin", 0.5)
	iso.ptRatioMax = cfg.FloatDefault("PTRatioMax", 0.1)
	iso.sumPtMax = cfg.FloatDefault("SumPtMax", -1) // negative disables the absolute cut
	iso.useRhoCorrection = cfg.BoolDefault("UseRhoCorrection", false)

	iso.candidateName = cfg.StringDefault("CandidateInputArray", "electrons")
	iso.isolationName = cfg.StringDefault("IsolationInputArray", "eflowTracks")
	iso.rhoName = cfg.StringDefault("RhoInputArray", "")

	iso.output = store.Export(cfg.StringDefault("OutputArray", "electrons"))
	return nil
}

func (iso *Isolation) Finish() {}

func (iso *Isolation) Process(ev *Event) error {
	candidates, ok := ev.Store.Import(iso.candidateName)
	if !ok {
		return nil
	}
	isolation, hasIso := ev.Store.Import(iso.isolationName)

	var rho float64
	if iso.rhoName != "" {
		if rhoCol, ok := ev.Store.Import(iso.rhoName); ok {
			for _, r := range rhoCol.Items() {
				rho += r.Momentum.W()
			}
			if n := len(rhoCol.Items()); n > 0 {
				rho /= float64(n)
			}
		}
	}

	for _, cand := range candidates.Items() {
		eta := cand.Eta()
		phi := cand.MomentumPhi()

		var sumCharged, sumChargedPU, sumNeutral float64
		if hasIso {
			for _, obj := range isolation.Items() {
				if obj.Overlaps(cand) {
					continue
				}
				if obj.Pt() < iso.ptMin {
					continue
				}
				dr := deltaR(eta, phi, obj.Eta(), obj.MomentumPhi())
				if dr > iso.deltaRMax {
					continue
				}
				pt := obj.Pt()
				switch {
				case obj.Charge != 0 && obj.IsRecoPU:
					sumChargedPU += pt
				case obj.Charge != 0:
					sumCharged += pt
				default:
					sumNeutral += pt
				}
			}
		}

		cand.SumPtCharged = sumCharged
		cand.SumPtChargedPU = sumChargedPU
		cand.SumPtNeutral = sumNeutral
		cand.SumPt = sumCharged + sumChargedPU + sumNeutral

		// Delta-beta correction: PU-charged contamination in the cone is
		// used as a proxy for the neutral PU contamination that cannot be
		// vertex-associated, scaled by the standard one-half hadronic
		// factor (Isolation.cc's betaFactor term).
		const betaFactor = 0.5
		sumNeutralCorrected := math.Max(sumNeutral-betaFactor*sumChargedPU, 0)
		sumTotal := sumCharged + sumNeutralCorrected

		var sumRhoCorrected float64
		if iso.useRhoCorrection {
			area := math.Pi * iso.deltaRMax * iso.deltaRMax
			sumRhoCorrected = sumCharged + math.Max(sumNeutral-rho*area, 0)
		}

		pt := cand.Pt()
		if pt > 0 {
			cand.IsolationVar = sumTotal / pt
			cand.IsolationVarRhoCorr = sumRhoCorrected / pt
		}

		pass := true
		if iso.sumPtMax >= 0 && sumTotal > iso.sumPtMax {
			pass = false
		}
		if pt > 0 && cand.IsolationVar > iso.ptRatioMax {
			pass = false
		}
		if pass {
			iso.output.Add(cand)
		}
	}
	return nil
}
