package trace

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/erigontech/erigon-lib/common"
)

// TouchedAddresses summarizes a completed trace's external/creation frames
// into the set of addresses involved, split into senders and receivers —
// the same address-set-from-Capture{Start,Enter} idea the teacher's call
// tracer builds for its own indexing, applied here as a post-processing
// summary over a finished []StepState rather than an index maintained
// live during execution.
type TouchedAddresses struct {
	From    mapset.Set[common.Address]
	To      mapset.Set[common.Address]
	Created mapset.Set[common.Address] // subset of To: addresses deployed to by a Creation frame in this trace
}

// Touched walks every external/creation frame that appears anywhere in
// steps' frame snapshots and accumulates the addresses it sent from,
// received at, or deployed to. A frame appears in every StepState between
// its push and pop, so frames are deduplicated by StartStep.
func Touched(steps []StepState) TouchedAddresses {
	out := TouchedAddresses{
		From:    mapset.NewSet[common.Address](),
		To:      mapset.NewSet[common.Address](),
		Created: mapset.NewSet[common.Address](),
	}
	seen := mapset.NewSet[int]() // StartStep values already accounted for
	for _, step := range steps {
		for _, f := range step.Frames {
			if !f.IsExternal() || seen.Contains(f.StartStep) {
				continue
			}
			seen.Add(f.StartStep)
			out.From.Add(f.Sender)
			if f.Kind == FrameCreation {
				// Receiver is the zero address until the deployed address is
				// known, which this data model never back-fills onto the
				// frame (§3: Frame.Receiver doc) — nothing to record yet.
				if f.Receiver != (common.Address{}) {
					out.Created.Add(f.Receiver)
					out.To.Add(f.Receiver)
				}
				continue
			}
			out.To.Add(f.Receiver)
		}
	}
	return out
}
