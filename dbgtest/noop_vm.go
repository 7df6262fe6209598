package dbgtest

import (
	"github.com/ConsenSys/sol-dbg/core/vm"
	"github.com/ConsenSys/sol-dbg/trace"
)

// NoopVM delivers zero steps and returns Result as-is. Mostly useful for
// testing the wiring around DebugTx (initial-frame construction, VMFactory
// plumbing) without needing a single real instruction — the same role the
// teacher's noop tracer plays for its own hook registry.
type NoopVM struct {
	Result trace.RunTxResult
}

func (v *NoopVM) Execute(trace.Tx, trace.ExecOptions, vm.StateReader, func(vm.StepEvent) error) (trace.RunTxResult, error) {
	return v.Result, nil
}

// NoopVMFactory always returns the same *NoopVM.
type NoopVMFactory struct {
	VM *NoopVM
}

func (f *NoopVMFactory) NewVM(*trace.BlockContext, vm.StateReader) (trace.VM, error) {
	return f.VM, nil
}
