// Copyright 2016 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
// Copyright 2024 The sol-dbg Authors
// (further modifications: narrowed to the VM-facing boundary consumed by
// the trace annotator)
// This file is part of sol-dbg.
//
// sol-dbg is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// sol-dbg is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

package vm

import (
	"github.com/erigontech/erigon-lib/common"
	"github.com/holiman/uint256"
)

// StateReader is the slice of the VM's state manager the core queries.
// Implemented by the host, consumed read-only by the trace annotator.
type StateReader interface {
	// GetContractCode returns the deployed bytecode at addr, or an empty
	// slice if addr has no code.
	GetContractCode(addr common.Address) ([]byte, error)
	// DumpStorage returns every storage slot the account at addr has set.
	// Implementations may return only slots touched so far in the current
	// transaction; the normalizer (C3) only re-reads this when the prior
	// step wrote storage, so a full dump per call is acceptable.
	DumpStorage(addr common.Address) (map[common.Hash][]byte, error)
}

// StepEvent is the raw per-instruction callback the VM delivers. One
// StepEvent arrives per executed instruction, in program order, before the
// instruction has mutated state (matching the VM's per-step model — see
// the data model invariant that a step snapshot reflects pre-execution
// state).
type StepEvent struct {
	Op                OpCode
	PC                uint64
	Depth             int // VM-reported depth, not yet normalized (see NormalizeDepth)
	GasRemaining      uint64
	StaticGasCost     uint64
	DynamicGasCost    uint64
	ExecutingAddress  common.Address
	CodeSourceAddress common.Address
	// Stack is the operand stack with the top element last, matching the
	// teacher's ScopeContext.StackData() convention.
	Stack  []uint256.Int
	Memory []byte
}

// NormalizeDepth applies the fixed off-by-one convention (§6): the VM's
// outermost call context is reported as depth 0; the core's frame-stack
// invariant wants the outermost frame to read as depth 1.
func NormalizeDepth(vmDepth int) int { return vmDepth + 1 }
