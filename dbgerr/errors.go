// Package dbgerr is the error taxonomy the core's components report
// through (§7). Hosts distinguish recoverable degradation from fatal
// reconciler bugs with errors.Is against the sentinels below.
package dbgerr

import "errors"

var (
	// ErrInvariantViolation marks a bug in the reconciler or an
	// incompatible VM: a depth increase whose prior opcode isn't
	// depth-increasing, an internal return whose top frame isn't
	// InternalCall, or a stack underflow while decoding arguments. Fatal —
	// never recovered locally.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrMissingDebugInfo marks an unresolved ContractInfo, source triple,
	// AST node, or type. Recovered locally: the affected StepState field is
	// left undefined and processing continues.
	ErrMissingDebugInfo = errors.New("missing debug info")

	// ErrDecodeFailure marks a failed ABI decode of msg-data or arguments.
	// Recovered locally: arguments are left undefined.
	ErrDecodeFailure = errors.New("abi decode failure")

	// ErrVM marks an error propagated from the VM itself. The trace ends
	// at the last successful step; the VM's result object carries the
	// failure.
	ErrVM = errors.New("vm error")
)
