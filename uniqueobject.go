package delphes

// UniqueObjectFinder de-duplicates a sequence of candidate collections
// against each other in priority order: higher-priority collections are
// copied through unchanged, and every later collection drops any
// candidate that Overlaps an already-kept one (recursively through
// composite children, e.g. a jet sharing a track with an electron).
// Grounded on original_source/modules/UniqueObjectFinder.cc, which
// walks a fixed list of (input, output) array pairs the same way.
type UniqueObjectFinder struct {
	pairs []uniquePair
}

type uniquePair struct {
	inputName, outputName string
	output                *Collection
}

func NewUniqueObjectFinder() *UniqueObjectFinder { return &UniqueObjectFinder{} }

// AddPair registers one (input, output) array pair, in priority order:
// pairs added earlier win ties against pairs added later.
func (u *UniqueObjectFinder) AddPair(inputName, outputName string) *UniqueObjectFinder {
	u.pairs = append(u.pairs, uniquePair{inputName: inputName, outputName: outputName})
	return u
}

func (u *UniqueObjectFinder) Init(cfg *Config, store *EventStore) error {
	if len(u.pairs) == 0 {
		if arr, err := cfg.Array("InputArray"); err == nil {
			outArr, outErr := cfg.Array("OutputArray")
			if outErr != nil || len(outArr) != len(arr) {
				return &ConfigError{Module: "UniqueObjectFinder", Reason: "InputArray and OutputArray must be the same length"}
			}
			for i := range arr {
				in, ok1 := arr[i].(string)
				out, ok2 := outArr[i].(string)
				if !ok1 || !ok2 {
					return &ConfigError{Module: "UniqueObjectFinder", Reason: "InputArray/OutputArray entries must be strings"}
				}
				u.pairs = append(u.pairs, uniquePair{inputName: in, outputName: out})
			}
		}
	}
	for i := range u.pairs {
		u.pairs[i].output = store.Export(u.pairs[i].outputName)
	}
	return nil
}

func (u *UniqueObjectFinder) Finish() {}

func (u *UniqueObjectFinder) Process(ev *Event) error {
	var kept []*Candidate

	for _, pair := range u.pairs {
		input, ok := ev.Store.Import(pair.inputName)
		if !ok {
			continue
		}
		var accepted []*Candidate
		for _, cand := range input.Items() {
			overlapped := false
			for _, k := range kept {
				if k.Overlaps(cand) {
					overlapped = true
					break
				}
			}
			if overlapped {
				continue
			}
			pair.output.Add(cand)
			accepted = append(accepted, cand)
		}
		kept = append(kept, accepted...)
	}
	return nil
}
