package trace

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ConsenSys/sol-dbg/core/vm"
)

// NormalizeStep converts one raw VM callback into a canonical
// StepVMState (C3, §4.3).
//
// Memory is copied from ev.Memory only when prev is nil or prev.Op wrote
// to memory; otherwise the returned state shares prev.Memory's backing
// array. Storage is re-read from state only when prev is nil or prev.Op
// was SSTORE; otherwise the returned state shares prev.Storage directly.
// This is the structural-sharing discipline data model invariant 4
// requires, generalizing the lazy-copy idiom the teacher's
// StructLogger.OnOpcode uses for its memory/stack snapshots.
func NormalizeStep(prev *StepVMState, ev vm.StepEvent, state vm.StateReader) (StepVMState, error) {
	stack := make([]uint256.Int, len(ev.Stack))
	copy(stack, ev.Stack)

	mem := normalizeMemory(prev, ev)

	storage, err := normalizeStorage(prev, ev, state)
	if err != nil {
		return StepVMState{}, fmt.Errorf("normalizing storage at pc=%d: %w", ev.PC, err)
	}

	return StepVMState{
		Stack:             stack,
		Memory:            mem,
		Storage:           storage,
		Op:                ev.Op,
		PC:                ev.PC,
		StaticGasCost:     ev.StaticGasCost,
		DynamicGasCost:    ev.DynamicGasCost,
		GasRemaining:      ev.GasRemaining,
		Depth:             vm.NormalizeDepth(ev.Depth),
		ExecutingAddress:  ev.ExecutingAddress,
		CodeSourceAddress: ev.CodeSourceAddress,
	}, nil
}

func normalizeMemory(prev *StepVMState, ev vm.StepEvent) []byte {
	if prev == nil || prev.Op.ChangesMemory() {
		mem := make([]byte, len(ev.Memory))
		copy(mem, ev.Memory)
		return mem
	}
	return prev.Memory
}

func normalizeStorage(prev *StepVMState, ev vm.StepEvent, state vm.StateReader) (Storage, error) {
	if prev != nil && prev.Op != vm.OpSSTORE {
		return prev.Storage, nil
	}
	dump, err := state.DumpStorage(ev.ExecutingAddress)
	if err != nil {
		return nil, err
	}
	return storageFromDump(dump), nil
}
