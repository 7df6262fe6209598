package trace

import (
	"fmt"

	"github.com/erigontech/erigon-lib/common"
	"github.com/holiman/uint256"

	"github.com/ConsenSys/sol-dbg/core/vm"
	"github.com/ConsenSys/sol-dbg/dbgerr"
	"github.com/ConsenSys/sol-dbg/srcmap"
)

// Reconcile is the stack reconciler (C6, §4.6): the heart of the
// annotator. Given the frame stack as of the previous step and everything
// known about the step about to be recorded, it returns the frame stack
// as of the current step.
//
// prevStep is nil only for the very first step of a trace, in which case
// frames is returned unchanged — the initial external frame is the
// driver's (C8) responsibility, not the reconciler's.
//
// curTriple/curASTNode are the already-resolved source location of the
// current PC within the nearest external frame (as returned by
// DecodeSourceLoc) — resolved once by the caller and threaded through here
// so Rule B doesn't re-run the source-map lookup.
func Reconcile(
	frames FrameStack,
	cur StepVMState,
	prevStep *StepState,
	curTriple *srcmap.Triple,
	curASTNode srcmap.ASTNode,
	code []byte,
	codeHash *common.Hash,
	am ArtifactManager,
	dec ABIDecoder,
	stepIdx int,
) (FrameStack, error) {
	if prevStep == nil {
		return frames, nil
	}
	prev := prevStep.StepVMState

	if cur.Depth != prev.Depth {
		return reconcileDepthChange(frames, cur, prev, code, codeHash, am, dec, stepIdx)
	}
	return reconcileSameDepth(frames, cur, prevStep, curTriple, curASTNode, stepIdx)
}

func reconcileDepthChange(
	frames FrameStack,
	cur, prev StepVMState,
	code []byte,
	codeHash *common.Hash,
	am ArtifactManager,
	dec ABIDecoder,
	stepIdx int,
) (FrameStack, error) {
	if cur.Depth > prev.Depth {
		if cur.Depth != prev.Depth+1 || !prev.Op.IncreasesDepth() {
			return nil, fmt.Errorf("%w: depth went %d -> %d but prior opcode %s does not increase depth",
				dbgerr.ErrInvariantViolation, prev.Depth, cur.Depth, prev.Op)
		}
		if prev.Op.CreatesContract() {
			offset := stackAt(prev.Stack, 1)
			size := stackAt(prev.Stack, 2)
			initcode, ok := sliceMemory(prev.Memory, offset, size)
			if !ok {
				initcode = nil
			}
			f := MakeCreationFrame(prev.ExecutingAddress, initcode, am, stepIdx)
			return frames.Push(f), nil
		}

		argOffPos, argSizePos := 3, 4
		if prev.Op == vm.OpDELEGATECALL || prev.Op == vm.OpSTATICCALL {
			argOffPos, argSizePos = 2, 3
		}
		offset := stackAt(prev.Stack, argOffPos)
		size := stackAt(prev.Stack, argSizePos)
		msgData, ok := sliceMemory(prev.Memory, offset, size)
		if !ok {
			msgData = nil
		}
		receiver := addressFromWord(stackAt(prev.Stack, 1))
		f := MakeCallFrame(prev.ExecutingAddress, receiver, msgData, code, codeHash, am, dec, stepIdx)
		return frames.Push(f), nil
	}

	// cur.Depth < prev.Depth: unwind. Pop until the external-frame quota
	// is met; internal frames riding on top are discarded for free.
	want := prev.Depth - cur.Depth
	popped := 0
	for popped < want {
		top, ok := frames.Top()
		if !ok {
			return nil, fmt.Errorf("%w: depth decreased by %d but frame stack ran out after popping %d",
				dbgerr.ErrInvariantViolation, want, popped)
		}
		frames = frames.Pop()
		if top.IsExternal() {
			popped++
		}
	}
	return frames, nil
}

// reconcileSameDepth implements Rule B (§4.6): entry into, and return
// from, an internal (same-contract) function, inferred purely from
// source-map jump annotations since the VM itself reports no depth change
// for either transition.
func reconcileSameDepth(
	frames FrameStack,
	cur StepVMState,
	prevStep *StepState,
	curTriple *srcmap.Triple,
	curASTNode srcmap.ASTNode,
	stepIdx int,
) (FrameStack, error) {
	prevTriple := prevStep.SourceTriple
	if cur.Op == vm.OpJUMPDEST && prevStep.Op == vm.OpJUMP &&
		prevTriple != nil && prevTriple.Jump == srcmap.JumpInto {
		return pushInternalCall(frames, cur, curASTNode, stepIdx)
	}

	if curTriple == nil {
		return frames, nil // MissingDebugInfo: no further decision to make
	}
	if cur.Op == vm.OpJUMP && curTriple.Jump == srcmap.JumpOut {
		top, ok := frames.Top()
		if !ok || top.Kind != FrameInternalCall {
			return nil, fmt.Errorf("%w: internal return at pc=%d but top frame is not an internal call",
				dbgerr.ErrInvariantViolation, cur.PC)
		}
		return frames.Pop(), nil
	}
	return frames, nil
}

func pushInternalCall(frames FrameStack, cur StepVMState, curASTNode srcmap.ASTNode, stepIdx int) (FrameStack, error) {
	_, extIdx, _ := frames.NearestExternal()
	f := Frame{
		Kind:               FrameInternalCall,
		ExternalFrameIndex: extIdx,
		EntryPC:            cur.PC,
		StartStep:          stepIdx,
	}
	// Only meaningful if the AST node at this source triple is a function
	// definition or a public state-variable getter (§4.6); anything else
	// leaves Callee nil without failing the push.
	if callee, ok := curASTNode.(CalleeNode); ok {
		f.Callee = callee
		args, err := DecodeFunArgs(callee, cur.Stack)
		if err != nil {
			return nil, err // stack underflow: fatal, never recovered locally (§7)
		}
		f.Arguments = args
	}
	return frames.Push(f), nil
}

func sliceMemory(mem []byte, offset, size uint256.Int) ([]byte, bool) {
	off, sz := offset.Uint64(), size.Uint64()
	if off+sz > uint64(len(mem)) || off+sz < off {
		return nil, false
	}
	return mem[off : off+sz], true
}

func addressFromWord(w uint256.Int) common.Address {
	var b [32]byte
	w.WriteToSlice(b[:])
	var addr common.Address
	copy(addr[:], b[len(b)-len(addr):])
	return addr
}
