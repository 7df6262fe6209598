// Package dbgtest provides an in-memory fake VM/artifact-manager harness
// for exercising the trace annotator without a real VM (C12). It is meant
// to be imported only from _test.go files, in the package or by a host.
package dbgtest

import (
	"fmt"

	"github.com/erigontech/erigon-lib/common"

	"github.com/ConsenSys/sol-dbg/core/vm"
	"github.com/ConsenSys/sol-dbg/srcmap"
	"github.com/ConsenSys/sol-dbg/trace"
)

// FakeStateManager is an in-memory address -> code / address -> storage
// map satisfying vm.StateReader.
type FakeStateManager struct {
	Code    map[common.Address][]byte
	Storage map[common.Address]map[common.Hash][]byte
}

// NewFakeStateManager returns an empty FakeStateManager ready for SetCode/
// SetStorage calls.
func NewFakeStateManager() *FakeStateManager {
	return &FakeStateManager{
		Code:    make(map[common.Address][]byte),
		Storage: make(map[common.Address]map[common.Hash][]byte),
	}
}

// SetCode installs addr's deployed bytecode.
func (m *FakeStateManager) SetCode(addr common.Address, code []byte) {
	m.Code[addr] = code
}

// SetStorageWord installs one storage slot for addr.
func (m *FakeStateManager) SetStorageWord(addr common.Address, slot common.Hash, value []byte) {
	if m.Storage[addr] == nil {
		m.Storage[addr] = make(map[common.Hash][]byte)
	}
	m.Storage[addr][slot] = value
}

func (m *FakeStateManager) GetContractCode(addr common.Address) ([]byte, error) {
	code, ok := m.Code[addr]
	if !ok {
		return nil, nil
	}
	return code, nil
}

func (m *FakeStateManager) DumpStorage(addr common.Address) (map[common.Hash][]byte, error) {
	return m.Storage[addr], nil
}

// FakeArtifactManager is an in-memory hash -> ContractInfo / creation-
// bytecode -> ContractInfo map satisfying trace.ArtifactManager.
type FakeArtifactManager struct {
	byMD       map[common.Hash]trace.ContractInfo
	byCreation map[string]trace.ContractInfo

	mdLookups       int
	creationLookups int
}

// NewFakeArtifactManager returns an empty FakeArtifactManager ready for
// Register calls.
func NewFakeArtifactManager() *FakeArtifactManager {
	return &FakeArtifactManager{
		byMD:       make(map[common.Hash]trace.ContractInfo),
		byCreation: make(map[string]trace.ContractInfo),
	}
}

// RegisterByMDHash makes info resolvable for deployed code identified by hash.
func (m *FakeArtifactManager) RegisterByMDHash(hash common.Hash, info trace.ContractInfo) {
	m.byMD[hash] = info
}

// RegisterByCreationBytecode makes info resolvable for the exact creation
// bytecode blob code.
func (m *FakeArtifactManager) RegisterByCreationBytecode(code []byte, info trace.ContractInfo) {
	m.byCreation[string(code)] = info
}

func (m *FakeArtifactManager) ContractFromMDHash(hash common.Hash) (trace.ContractInfo, bool) {
	m.mdLookups++
	info, ok := m.byMD[hash]
	return info, ok
}

func (m *FakeArtifactManager) ContractFromCreationBytecode(code []byte) (trace.ContractInfo, bool) {
	m.creationLookups++
	info, ok := m.byCreation[string(code)]
	return info, ok
}

// MDLookups returns how many times ContractFromMDHash was actually
// invoked, letting a caching layer's memoization be asserted on directly.
func (m *FakeArtifactManager) MDLookups() int { return m.mdLookups }

// CreationLookups returns how many times ContractFromCreationBytecode was
// actually invoked.
func (m *FakeArtifactManager) CreationLookups() int { return m.creationLookups }

// StepScript is a builder for a canned sequence of vm.StepEvents, letting
// tests drive the trace driver deterministically without a real VM.
type StepScript struct {
	steps []vm.StepEvent
}

// NewStepScript returns an empty script.
func NewStepScript() *StepScript {
	return &StepScript{}
}

// Step appends one instruction to the script and returns the script for
// chaining.
func (s *StepScript) Step(ev vm.StepEvent) *StepScript {
	s.steps = append(s.steps, ev)
	return s
}

// Steps returns the accumulated events in order.
func (s *StepScript) Steps() []vm.StepEvent {
	return s.steps
}

// ScriptedVM is a trace.VM that replays a StepScript verbatim, ignoring
// the Tx/ExecOptions it's asked to execute. Result is returned as-is once
// every scripted step has been delivered. If onStep ever returns an
// error, ScriptedVM stops immediately and propagates it, matching the
// contract trace.VM documents.
type ScriptedVM struct {
	Script *StepScript
	Result trace.RunTxResult
}

func (v *ScriptedVM) Execute(_ trace.Tx, _ trace.ExecOptions, _ vm.StateReader, onStep func(vm.StepEvent) error) (trace.RunTxResult, error) {
	for i, ev := range v.Script.Steps() {
		if err := onStep(ev); err != nil {
			return trace.RunTxResult{}, fmt.Errorf("scripted step %d: %w", i, err)
		}
	}
	return v.Result, nil
}

// ScriptedVMFactory always returns the same *ScriptedVM, ignoring the
// block/state it's handed — a single canned script is reused across a
// single DebugTx call.
type ScriptedVMFactory struct {
	VM *ScriptedVM
}

func (f *ScriptedVMFactory) NewVM(_ *trace.BlockContext, _ vm.StateReader) (trace.VM, error) {
	return f.VM, nil
}

// FakeType is a minimal trace.TypeDesc stand-in for building
// FakeContractInfo fixtures without a real compiler front end.
type FakeType struct {
	Slots int
}

func (t FakeType) SlotCount() int { return t.Slots }

// FakeCallee is a minimal trace.CalleeNode for test fixtures.
type FakeCallee struct {
	FuncName   string
	Sel        [4]byte
	Params     []trace.Param
	IsGetter   bool
	FakeASTKey string
}

func (c FakeCallee) NodeKey() string             { return c.FakeASTKey }
func (c FakeCallee) Name() string                { return c.FuncName }
func (c FakeCallee) Selector() [4]byte           { return c.Sel }
func (c FakeCallee) Parameters() []trace.Param   { return c.Params }
func (c FakeCallee) IsStateVariableGetter() bool { return c.IsGetter }

// FakeContractInfo is a minimal trace.ContractInfo for test fixtures.
type FakeContractInfo struct {
	DeployedMap *srcmap.Table
	CreationMap *srcmap.Table
	FuncList    []trace.CalleeNode
	Getters     []trace.CalleeNode
	Ctor        trace.CalleeNode
	HasCtor     bool
	ABIVer      string
}

func (c FakeContractInfo) DeployedSourceMap() *srcmap.Table   { return c.DeployedMap }
func (c FakeContractInfo) CreationSourceMap() *srcmap.Table   { return c.CreationMap }
func (c FakeContractInfo) Functions() []trace.CalleeNode       { return c.FuncList }
func (c FakeContractInfo) StateVariableGetters() []trace.CalleeNode { return c.Getters }
func (c FakeContractInfo) Constructor() (trace.CalleeNode, bool) { return c.Ctor, c.HasCtor }
func (c FakeContractInfo) ABIEncoderVersion() string           { return c.ABIVer }
