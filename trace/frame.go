package trace

import (
	"fmt"

	"github.com/erigontech/erigon-lib/common"
	"github.com/holiman/uint256"

	"github.com/ConsenSys/sol-dbg/dbgerr"
)

// MakeCallFrame builds an ExternalCall frame for a CALL/CALLCODE/
// DELEGATECALL/STATICCALL entry (C5, §4.5). am and dec may be nil, in
// which case the frame is built with Info/Callee/Arguments left
// undefined — a frame with unresolved metadata is still a valid frame.
func MakeCallFrame(sender, receiver common.Address, msgData, code []byte, codeHash *common.Hash, am ArtifactManager, dec ABIDecoder, stepIdx int) Frame {
	f := Frame{
		Kind:      FrameExternalCall,
		Sender:    sender,
		Receiver:  receiver,
		MsgData:   msgData,
		Code:      code,
		StartStep: stepIdx,
	}
	if am == nil || codeHash == nil {
		return f
	}
	info, ok := am.ContractFromMDHash(*codeHash)
	if !ok {
		return f
	}
	f.Info = info

	selector := selectorOf(msgData)
	f.Callee = resolveCallee(info, selector)
	if f.Callee == nil || dec == nil {
		return f
	}
	args, err := dec.DecodeMsgData(f.Callee, msgData, LocationCalldata, info.ABIEncoderVersion())
	if err == nil {
		f.Arguments = args
	}
	// On DecodeFailure, Arguments is left nil — recovered locally (§7).
	return f
}

// MakeCreationFrame builds a Creation frame for a CREATE/CREATE2 entry or
// the transaction's own top-level contract creation (§4.5). Argument
// decoding from the constructor tail is explicitly left undecoded per the
// open design question in §9 — Arguments is always nil here.
func MakeCreationFrame(sender common.Address, data []byte, am ArtifactManager, stepIdx int) Frame {
	f := Frame{
		Kind:      FrameCreation,
		Sender:    sender,
		Code:      data,
		StartStep: stepIdx,
	}
	if am == nil {
		return f
	}
	info, ok := am.ContractFromCreationBytecode(data)
	if !ok {
		return f
	}
	f.Info = info
	if ctor, ok := info.Constructor(); ok {
		f.Callee = ctor
	}
	return f
}

func selectorOf(msgData []byte) [4]byte {
	var sel [4]byte
	copy(sel[:], msgData)
	return sel
}

// resolveCallee picks the unique function whose selector matches, then
// falls back to the unique public state-variable getter whose selector
// matches, per §4.5. Ambiguity (which should not arise from a correct
// compiler) or no match leaves the callee undefined.
func resolveCallee(info ContractInfo, selector [4]byte) CalleeNode {
	if n := uniqueBySelector(info.Functions(), selector); n != nil {
		return n
	}
	return uniqueBySelector(info.StateVariableGetters(), selector)
}

func uniqueBySelector(nodes []CalleeNode, selector [4]byte) CalleeNode {
	var found CalleeNode
	for _, n := range nodes {
		if n.Selector() == selector {
			if found != nil {
				return nil // ambiguous; treat as unresolved
			}
			found = n
		}
	}
	return found
}

// DecodeFunArgs reconstructs DataViews for each of callee's formal
// parameters from the current operand stack, for an internal-call frame
// (§4.6). Formals are walked last-to-first, accumulating the stack-slot
// offset each one occupies; dynamic-size calldata types occupy two slots
// (an offset/length pair), everything else occupies one.
//
// Returns an InvariantViolation-flavored error if the stack is shallower
// than the accumulated offset (stack underflow is a reconciler bug or an
// incompatible VM, never tolerated). Returns (nil, nil) — not an error —
// if callee has no parameters, or any parameter's type could not be
// resolved (caller tolerates missing arguments, §4.6).
func DecodeFunArgs(callee CalleeNode, stack []uint256.Int) ([]NamedArg, error) {
	params := callee.Parameters()
	if len(params) == 0 {
		return nil, nil
	}
	args := make([]NamedArg, len(params))
	offsetFromTop := -1
	for i := len(params) - 1; i >= 0; i-- {
		p := params[i]
		if p.Type == nil {
			return nil, nil // unresolved type: tolerate, per §4.6
		}
		offsetFromTop += p.Type.SlotCount()
		if offsetFromTop >= len(stack) {
			return nil, fmt.Errorf("%w: decoding args for %s needs stack depth %d, have %d",
				dbgerr.ErrInvariantViolation, callee.Name(), offsetFromTop+1, len(stack))
		}
		args[i] = NamedArg{
			Name: p.Name,
			View: &DataView{
				Type: p.Type,
				Location: DataLocation{
					Kind:          LocStack,
					OffsetFromTop: offsetFromTop,
				},
			},
		}
	}
	return args, nil
}
