// Package trace is the core of sol-dbg: it consumes raw per-instruction VM
// callbacks and produces a richly annotated execution trace. This file
// holds the shared data model (§3).
package trace

import (
	"github.com/erigontech/erigon-lib/common"
	"github.com/holiman/uint256"

	"github.com/ConsenSys/sol-dbg/core/vm"
	"github.com/ConsenSys/sol-dbg/srcmap"
)

// TypeDesc describes a formal parameter's type, as resolved by the source
// language's type resolver. The core only ever asks it how many stack/
// calldata slots the type occupies.
type TypeDesc interface {
	// SlotCount is 2 for dynamic-size calldata types (represented on the
	// stack as an (offset, length) pair) and 1 for everything else.
	SlotCount() int
}

// Param is one formal parameter of a callable (function, or a state
// variable getter's synthesized parameter list).
type Param struct {
	Name string
	Type TypeDesc
}

// CalleeNode is the AST node a frame's callee resolves to: either a
// function definition or a public state-variable declaration being
// accessed through its synthesized getter. It is the ASTNode variant the
// core actually branches on (FunctionDefinition vs VariableDeclaration);
// anything else the artifact manager might resolve to is not a valid
// callee and is left undefined (§4.5).
type CalleeNode interface {
	srcmap.ASTNode
	Name() string
	// Selector is the 4-byte canonical selector: of the function itself,
	// or of the synthesized getter if this is a state-variable.
	Selector() [4]byte
	// Parameters are the formal parameters to decode arguments against.
	// For a state-variable getter these are synthesized with names
	// ARG_0, ARG_1, ... (§4.6).
	Parameters() []Param
	IsStateVariableGetter() bool
}

// ContractInfo is the opaque, compile-time bundle the artifact manager
// resolves a code hash (or creation bytecode) to. The core never
// constructs one itself; it only reads from whatever the manager returns.
type ContractInfo interface {
	DeployedSourceMap() *srcmap.Table
	CreationSourceMap() *srcmap.Table
	// Functions lists the contract's declared functions, for selector
	// resolution in makeCallFrame (§4.5).
	Functions() []CalleeNode
	// StateVariableGetters lists the public state variables' synthesized
	// getters, for selector resolution when no function matches.
	StateVariableGetters() []CalleeNode
	// Constructor is the AST constructor node, if the source declares one.
	Constructor() (CalleeNode, bool)
	ABIEncoderVersion() string
}

// ArtifactManager resolves a code hash or creation bytecode blob to
// compile-time metadata. External collaborator, consumed only (§6).
type ArtifactManager interface {
	ContractFromMDHash(hash common.Hash) (ContractInfo, bool)
	ContractFromCreationBytecode(code []byte) (ContractInfo, bool)
}

// DataLocationKind is the calldata-location flavor the ABI decoder needs to
// know about msg-data vs a bare memory/stack view (§6).
type DataLocationKind uint8

const (
	LocationCalldata DataLocationKind = iota
	LocationMemory
)

// ABIDecoder decodes a function/variable descriptor's arguments out of a
// calldata buffer. External collaborator, consumed only (§6).
type ABIDecoder interface {
	DecodeMsgData(callee CalleeNode, data []byte, loc DataLocationKind, abiVersion string) ([]NamedArg, error)
}

// LocationKind tags which of the four DataLocation variants a DataView
// refers to (§3).
type LocationKind uint8

const (
	LocStack LocationKind = iota
	LocMemory
	LocCalldata
	LocStorage
)

// DataLocation is a tagged union over where a decoded value physically
// lives. Only the fields relevant to Kind are meaningful.
type DataLocation struct {
	Kind LocationKind

	// Stack: 0 means the top of the operand stack.
	OffsetFromTop int

	// Memory / Calldata: byte address.
	Address uint64

	// Storage: word address, plus the byte offset within that word the
	// value ends at (0..31).
	StorageSlot     common.Hash
	EndOffsetInWord int
}

// DataView is a decoded value's type and where it was found.
type DataView struct {
	Type         TypeDesc
	OriginalType TypeDesc // optional; nil if the ABI type equals the declared type
	Location     DataLocation
}

// NamedArg pairs a formal parameter's name with its decoded view. View is
// nil when decoding failed or was not attempted for that argument (§7
// DecodeFailure: the caller tolerates missing arguments).
type NamedArg struct {
	Name string
	View *DataView
}

// FrameKind tags which of the three Frame variants a Frame value holds
// (§3). Frame is modeled as a single tagged struct rather than an
// interface hierarchy, per the "tagged variants as sum types" design note.
type FrameKind uint8

const (
	FrameExternalCall FrameKind = iota
	FrameCreation
	FrameInternalCall
)

func (k FrameKind) String() string {
	switch k {
	case FrameExternalCall:
		return "call"
	case FrameCreation:
		return "create"
	case FrameInternalCall:
		return "internal"
	default:
		return "unknown"
	}
}

// Frame is a single entry in the logical call stack. ExternalCall and
// Creation frames are the "external frames" the VM-reported depth counts
// one-for-one; InternalCall frames are inferred purely from source-map
// jump annotations and never change depth.
type Frame struct {
	Kind FrameKind

	// ExternalCall / Creation fields.
	Sender    common.Address
	Receiver  common.Address // zero address for Creation until deployed
	MsgData   []byte
	Code      []byte
	Info      ContractInfo // nil if the artifact manager didn't resolve it
	Callee    CalleeNode   // nil if no function/getter/constructor resolved
	Arguments []NamedArg
	StartStep int

	// InternalCall-only fields.
	// ExternalFrameIndex is a non-owning index into the FrameStack this
	// Frame belongs to, pointing at the nearest enclosing external frame.
	// It is an index, not a pointer, precisely so the back-reference can
	// never become an owning cycle (§9 design note).
	ExternalFrameIndex int
	EntryPC             uint64
}

// IsExternal reports whether f counts toward the VM-reported depth.
func (f Frame) IsExternal() bool {
	return f.Kind == FrameExternalCall || f.Kind == FrameCreation
}

// FrameStack is the logical call stack: External/Creation frames
// interleaved with InternalCall frames riding on top of the external frame
// they were entered from. Value semantics + copy-on-push make a FrameStack
// cheap to snapshot: once pushed into a StepState, a FrameStack is never
// mutated in place.
type FrameStack []Frame

// Push returns a new stack with f appended. It always allocates a fresh
// backing array, so a FrameStack captured in an earlier StepState is
// unaffected by subsequent pushes (data model lifecycle: trace entries are
// append-only).
func (s FrameStack) Push(f Frame) FrameStack {
	ns := make(FrameStack, len(s)+1)
	copy(ns, s)
	ns[len(s)] = f
	return ns
}

// Pop returns a new stack with the top frame removed. The returned slice's
// capacity is clamped to its length so a later Push on it cannot clobber
// memory still referenced by an earlier snapshot.
func (s FrameStack) Pop() FrameStack {
	if len(s) == 0 {
		return s
	}
	return s[:len(s)-1 : len(s)-1]
}

// Top returns the innermost frame, the one the current instruction
// executes in (data model invariant 1).
func (s FrameStack) Top() (Frame, bool) {
	if len(s) == 0 {
		return Frame{}, false
	}
	return s[len(s)-1], true
}

// ExternalDepth counts the External+Creation frames in s, which invariant
// 2 requires to equal the VM-reported (normalized) depth.
func (s FrameStack) ExternalDepth() int {
	n := 0
	for _, f := range s {
		if f.IsExternal() {
			n++
		}
	}
	return n
}

// NearestExternal returns the innermost External/Creation frame, walking
// down from the top. Internal frames always ride on top of exactly one
// external frame (invariant 3: an InternalCall is never the base).
func (s FrameStack) NearestExternal() (Frame, int, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].IsExternal() {
			return s[i], i, true
		}
	}
	return Frame{}, -1, false
}

// Storage is a per-step snapshot of storage word -> value. It is never
// mutated in place once attached to a StepState: normalize.go shares the
// same map across consecutive steps until the prior step was SSTORE, at
// which point the next step re-reads a fresh map from the state manager
// instead of cloning (data model invariant 4).
type Storage map[common.Hash]common.Hash

// EventDesc is what an LOG-N instruction emits: the non-indexed payload
// plus the indexed topics, in declaration order (§4.7).
type EventDesc struct {
	Payload []byte
	Topics  []uint256.Int
}

// StepVMState is the canonical, per-step normalization of one raw VM
// callback (§3, C3).
type StepVMState struct {
	Stack             []uint256.Int
	Memory            []byte
	Storage           Storage
	Op                vm.OpCode
	PC                uint64
	StaticGasCost     uint64
	DynamicGasCost    uint64
	GasRemaining      uint64
	Depth             int // normalized: outermost frame reads as depth 1
	ExecutingAddress  common.Address
	CodeSourceAddress common.Address
}

// StepState is a StepVMState plus everything the annotator layers on top:
// the resolved code, the logical frame-stack snapshot, decoded source
// location, and any emitted event (§3).
type StepState struct {
	StepVMState

	Code     []byte
	CodeHash *common.Hash // nil if the code's metadata hash could not be extracted

	// Frames is an immutable clone of the logical call stack at the time
	// this instruction executed. Its last element is always the frame the
	// instruction ran in (invariant 1).
	Frames FrameStack

	SourceTriple *srcmap.Triple
	ASTNode      srcmap.ASTNode
	Event        *EventDesc
	Info         ContractInfo // the current external frame's resolved info, if any
}
