package trace

// TraceOptions are the capture toggles a host can use to shrink the
// returned trace's footprint — the zero value retains everything. Mirrors
// the teacher's struct-logger LogConfig (DisableMemory/DisableStack/
// DisableStorage); Debug/Limit/Overrides had no analogue once logging
// moved to C10 and chain-fork config moved out of scope.
//
// The toggles only affect what's retained in the StepState handed back to
// the host: the reconciler (C6) and event extractor (C7) still need the
// full stack/memory/storage to do their job on every step, so stripping
// happens once, after those have already run, not during normalization.
type TraceOptions struct {
	DisableMemory  bool
	DisableStack   bool
	DisableStorage bool
}

// Strip returns a copy of step with the buffers opts asked to discard
// cleared. Frames, SourceTriple, ASTNode and Event are never affected —
// those are exactly what a host retaining a slim trace still wants.
func (opts TraceOptions) Strip(step StepState) StepState {
	if opts.DisableMemory {
		step.Memory = nil
	}
	if opts.DisableStack {
		step.Stack = nil
	}
	if opts.DisableStorage {
		step.Storage = nil
	}
	return step
}
