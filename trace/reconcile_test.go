package trace

import (
	"testing"

	"github.com/erigontech/erigon-lib/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConsenSys/sol-dbg/core/vm"
	"github.com/ConsenSys/sol-dbg/dbgerr"
	"github.com/ConsenSys/sol-dbg/srcmap"
)

type fakeCallee struct {
	key    string
	sel    [4]byte
	params []Param
}

func (c fakeCallee) NodeKey() string             { return c.key }
func (c fakeCallee) Name() string                 { return "inner" }
func (c fakeCallee) Selector() [4]byte            { return c.sel }
func (c fakeCallee) Parameters() []Param          { return c.params }
func (c fakeCallee) IsStateVariableGetter() bool  { return false }

type fakeSlotType struct{ n int }

func (t fakeSlotType) SlotCount() int { return t.n }

func stepState(vmState StepVMState, triple *srcmap.Triple) *StepState {
	return &StepState{StepVMState: vmState, SourceTriple: triple}
}

func TestReconcileNilPrevStepReturnsFramesUnchanged(t *testing.T) {
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})
	got, err := Reconcile(frames, StepVMState{}, nil, nil, nil, nil, nil, nil, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, frames, got)
}

func TestReconcileCallPushesExternalFrame(t *testing.T) {
	receiver := common.BytesToAddress([]byte{0xaa})
	// stack: [argSize, argOffset, value, receiver, gas] bottom->top
	stack := make([]uint256.Int, 5)
	stack[4] = *uint256.NewInt(0)                    // gas
	stack[3] = *addrToUint256(receiver)              // receiver
	stack[2] = *uint256.NewInt(0)                    // value
	stack[1] = *uint256.NewInt(0)                    // argOffset
	stack[0] = *uint256.NewInt(4)                     // argSize
	mem := []byte{0xde, 0xad, 0xbe, 0xef}

	prevVM := StepVMState{Op: vm.OpCALL, Depth: 1, Stack: stack, Memory: mem, ExecutingAddress: common.BytesToAddress([]byte{1})}
	prev := stepState(prevVM, nil)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	cur := StepVMState{Depth: 2}
	got, err := Reconcile(frames, cur, prev, nil, nil, []byte{0x60}, nil, nil, nil, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	pushed := got[1]
	assert.Equal(t, FrameExternalCall, pushed.Kind)
	assert.Equal(t, receiver, pushed.Receiver)
	assert.Equal(t, mem, pushed.MsgData)
}

func TestReconcileDelegatecallUsesNarrowerArgOffsets(t *testing.T) {
	receiver := common.BytesToAddress([]byte{0xbb})
	// DELEGATECALL/STATICCALL: argOffset at stackAt(2), argSize at stackAt(3).
	stack := make([]uint256.Int, 4)
	stack[3] = *uint256.NewInt(0)        // gas
	stack[2] = *addrToUint256(receiver)  // receiver
	stack[1] = *uint256.NewInt(0)        // argOffset
	stack[0] = *uint256.NewInt(2)        // argSize
	mem := []byte{0x01, 0x02}

	prevVM := StepVMState{Op: vm.OpDELEGATECALL, Depth: 1, Stack: stack, Memory: mem}
	prev := stepState(prevVM, nil)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	got, err := Reconcile(frames, StepVMState{Depth: 2}, prev, nil, nil, nil, nil, nil, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, mem, got[1].MsgData)
	assert.Equal(t, receiver, got[1].Receiver)
}

func TestReconcileCreatePushesCreationFrame(t *testing.T) {
	initcode := []byte{0x60, 0x01}
	mem := make([]byte, 32)
	copy(mem, initcode)
	stack := []uint256.Int{*uint256.NewInt(uint64(len(initcode))), *uint256.NewInt(0), *uint256.NewInt(0)}

	prevVM := StepVMState{Op: vm.OpCREATE, Depth: 1, Stack: stack, Memory: mem, ExecutingAddress: common.BytesToAddress([]byte{2})}
	prev := stepState(prevVM, nil)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	got, err := Reconcile(frames, StepVMState{Depth: 2}, prev, nil, nil, nil, nil, nil, nil, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, FrameCreation, got[1].Kind)
	assert.Equal(t, initcode, got[1].Code)
}

func TestReconcileDepthIncreaseWithoutDepthIncreasingOpIsInvariantViolation(t *testing.T) {
	prevVM := StepVMState{Op: vm.OpADD, Depth: 1}
	prev := stepState(prevVM, nil)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	_, err := Reconcile(frames, StepVMState{Depth: 2}, prev, nil, nil, nil, nil, nil, nil, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbgerr.ErrInvariantViolation)
}

func TestReconcileUnwindPopsInternalAndExternalFrames(t *testing.T) {
	prevVM := StepVMState{Op: vm.OpRETURN, Depth: 2}
	prev := stepState(prevVM, nil)
	frames := FrameStack{}.
		Push(Frame{Kind: FrameExternalCall}).
		Push(Frame{Kind: FrameExternalCall}).
		Push(Frame{Kind: FrameInternalCall, ExternalFrameIndex: 1})

	got, err := Reconcile(frames, StepVMState{Depth: 1}, prev, nil, nil, nil, nil, nil, nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, FrameExternalCall, got[0].Kind)
}

func TestReconcileUnwindRunningOutOfFramesIsInvariantViolation(t *testing.T) {
	prevVM := StepVMState{Op: vm.OpRETURN, Depth: 5}
	prev := stepState(prevVM, nil)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	_, err := Reconcile(frames, StepVMState{Depth: 1}, prev, nil, nil, nil, nil, nil, nil, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbgerr.ErrInvariantViolation)
}

func TestReconcileInternalCallPushedOnJumpIntoThenJumpdest(t *testing.T) {
	prevVM := StepVMState{Op: vm.OpJUMP, Depth: 1}
	prevTriple := &srcmap.Triple{Start: 1, Length: 1, SourceIndex: 0, Jump: srcmap.JumpInto}
	prev := stepState(prevVM, prevTriple)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	cur := StepVMState{Op: vm.OpJUMPDEST, Depth: 1, PC: 10}
	callee := fakeCallee{key: "fn"}
	got, err := Reconcile(frames, cur, prev, nil, callee, nil, nil, nil, nil, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, FrameInternalCall, got[1].Kind)
	assert.Equal(t, uint64(10), got[1].EntryPC)
	assert.Equal(t, 0, got[1].ExternalFrameIndex)
	require.NotNil(t, got[1].Callee)
	assert.Equal(t, "fn", got[1].Callee.NodeKey())
}

func TestReconcileInternalCallArgDecodeStackUnderflowPropagatesAsInvariantViolation(t *testing.T) {
	prevVM := StepVMState{Op: vm.OpJUMP, Depth: 1}
	prevTriple := &srcmap.Triple{Start: 1, Length: 1, SourceIndex: 0, Jump: srcmap.JumpInto}
	prev := stepState(prevVM, prevTriple)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	// callee needs one stack slot for its argument; the current step's
	// stack is empty, so DecodeFunArgs must underflow.
	cur := StepVMState{Op: vm.OpJUMPDEST, Depth: 1, PC: 10}
	callee := fakeCallee{key: "fn", params: []Param{{Name: "a", Type: fakeSlotType{n: 1}}}}

	_, err := Reconcile(frames, cur, prev, nil, callee, nil, nil, nil, nil, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbgerr.ErrInvariantViolation)
}

func TestReconcileInternalCallPushedWithNilCalleeWhenASTNodeIsNotACallee(t *testing.T) {
	prevVM := StepVMState{Op: vm.OpJUMP, Depth: 1}
	prevTriple := &srcmap.Triple{Start: 1, Length: 1, SourceIndex: 0, Jump: srcmap.JumpInto}
	prev := stepState(prevVM, prevTriple)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	cur := StepVMState{Op: vm.OpJUMPDEST, Depth: 1}
	got, err := Reconcile(frames, cur, prev, nil, nil, nil, nil, nil, nil, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[1].Callee)
}

func TestReconcileInternalReturnPopsInternalFrame(t *testing.T) {
	prevVM := StepVMState{Op: vm.OpADD, Depth: 1}
	prev := stepState(prevVM, nil)
	frames := FrameStack{}.
		Push(Frame{Kind: FrameExternalCall}).
		Push(Frame{Kind: FrameInternalCall})

	cur := StepVMState{Op: vm.OpJUMP, Depth: 1}
	curTriple := &srcmap.Triple{Start: 2, Length: 1, SourceIndex: 0, Jump: srcmap.JumpOut}
	got, err := Reconcile(frames, cur, prev, curTriple, nil, nil, nil, nil, nil, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, FrameExternalCall, got[0].Kind)
}

func TestReconcileInternalReturnWithoutInternalFrameOnTopIsInvariantViolation(t *testing.T) {
	prevVM := StepVMState{Op: vm.OpADD, Depth: 1}
	prev := stepState(prevVM, nil)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	cur := StepVMState{Op: vm.OpJUMP, Depth: 1, PC: 7}
	curTriple := &srcmap.Triple{Start: 2, Length: 1, SourceIndex: 0, Jump: srcmap.JumpOut}
	_, err := Reconcile(frames, cur, prev, curTriple, nil, nil, nil, nil, nil, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbgerr.ErrInvariantViolation)
}

func TestReconcileMissingDebugInfoAtSameDepthIsANoop(t *testing.T) {
	prevVM := StepVMState{Op: vm.OpADD, Depth: 1}
	prev := stepState(prevVM, nil)
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})

	got, err := Reconcile(frames, StepVMState{Op: vm.OpADD, Depth: 1}, prev, nil, nil, nil, nil, nil, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, frames, got)
}

func addrToUint256(a common.Address) *uint256.Int {
	var b [32]byte
	copy(b[32-len(a):], a[:])
	return new(uint256.Int).SetBytes(b[:])
}
