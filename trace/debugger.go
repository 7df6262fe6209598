package trace

import (
	"fmt"
	"log/slog"

	"github.com/erigontech/erigon-lib/common"
	"github.com/holiman/uint256"

	"github.com/ConsenSys/sol-dbg/core/vm"
	"github.com/ConsenSys/sol-dbg/dbgerr"
	"github.com/ConsenSys/sol-dbg/srcmap"
)

// Tx is the transaction being replayed. To == nil means a contract
// creation.
type Tx struct {
	From     common.Address
	To       *common.Address
	Data     []byte
	Value    *uint256.Int
	GasLimit uint64
	Nonce    uint64
}

// BlockContext is passed through to the VM unexamined; the core never
// interprets it.
type BlockContext struct {
	Number    uint64
	Timestamp uint64
}

// ExecOptions are always suppressed the same way for a replay: the
// debugger is re-executing an already-observed transaction, so signature,
// nonce and balance checks that made sense when the transaction was first
// authored would only get in the way (§4.8).
type ExecOptions struct {
	SkipSignatureCheck bool
	SkipNonceCheck     bool
	SkipBalanceCheck   bool
}

// RunTxResult is the VM's report of how the transaction concluded.
type RunTxResult struct {
	ReturnData []byte
	GasUsed    uint64
	Err        error
}

// VM is the external collaborator the core drives a transaction through.
// Out of scope to implement (§1) — consumed only. Execute must invoke
// onStep once per instruction, in order, and must not proceed to the next
// instruction until onStep returns (§5: single-threaded, synchronous
// w.r.t. the VM's step callback). If onStep returns an error, Execute
// must stop and return that error, as is or wrapped with %w.
type VM interface {
	Execute(tx Tx, opts ExecOptions, state vm.StateReader, onStep func(vm.StepEvent) error) (RunTxResult, error)
}

// VMFactory creates (or adopts) a VM instance for one DebugTx call (§4.8:
// "Creates (or adopts) a VM instance").
type VMFactory interface {
	NewVM(block *BlockContext, state vm.StateReader) (VM, error)
}

// Option configures a Debugger at construction time.
type Option func(*Debugger)

// WithVMFactory supplies the VM factory DebugTx uses. Required — the core
// has no default VM (out of scope, §1).
func WithVMFactory(f VMFactory) Option {
	return func(d *Debugger) { d.vmFactory = f }
}

// WithABIDecoder supplies the ABI decoder used to decode call arguments
// (§6). Without one, external-call frames are still built but their
// Arguments is always nil; internal-call frames get their stack-located
// Arguments from DecodeFunArgs either way.
func WithABIDecoder(dec ABIDecoder) Option {
	return func(d *Debugger) { d.dec = dec }
}

// WithLogger attaches structured diagnostic logging (§4.10). Nil (the
// default) is silent.
func WithLogger(l *slog.Logger) Option {
	return func(d *Debugger) { d.logger = l }
}

// WithCacheSize overrides the contract-info cache size (§4.9). Zero keeps
// the default.
func WithCacheSize(n int) Option {
	return func(d *Debugger) { d.cacheSize = n }
}

// WithTraceOptions sets the capture toggles applied to every returned
// StepState. The zero value (the default when this option is omitted)
// retains everything.
func WithTraceOptions(opts TraceOptions) Option {
	return func(d *Debugger) { d.traceOpts = opts }
}

// Debugger is the public entry point: one construction taking an
// artifact-manager handle, one DebugTx method (§6).
type Debugger struct {
	am        ArtifactManager
	dec       ABIDecoder
	vmFactory VMFactory
	logger    *slog.Logger
	cacheSize int
	traceOpts TraceOptions

	cached *cachingArtifactManager
}

// NewDebugger constructs a Debugger against am, the artifact manager
// handle. Options configure the VM factory, ABI decoder, logger, and
// cache size. The contract-info cache (C9) is built once here and lives
// for the Debugger's lifetime, so a contract resolved by one DebugTx call
// stays resolved for every later one against the same Debugger.
func NewDebugger(am ArtifactManager, opts ...Option) *Debugger {
	d := &Debugger{am: am}
	for _, opt := range opts {
		opt(d)
	}
	d.cached = newCachingArtifactManager(d.am, d.cacheSize, func(hash common.Hash, creation bool) {
		logMissingContractInfo(d.logger, hash, creation)
	})
	return d
}

// DecodeSourceLoc resolves pc's source triple and AST node within
// externalFrame's contract metadata — the public helper named in §6.
// Returns (nil, nil) if externalFrame has no resolved Info, or pc has no
// debug info; this is MissingDebugInfo territory, never an error (§7).
func DecodeSourceLoc(pc uint64, externalFrame Frame) (*srcmap.Triple, srcmap.ASTNode) {
	if externalFrame.Info == nil {
		return nil, nil
	}
	table := externalFrame.Info.DeployedSourceMap()
	if externalFrame.Kind == FrameCreation {
		table = externalFrame.Info.CreationSourceMap()
	}
	tr, ok := table.Resolve(pc)
	if !ok {
		return nil, nil
	}
	node, _ := table.ASTNodeFor(tr)
	return &tr, node
}

// DebugTx replays tx against state (and, if the underlying VM cares,
// block) and returns the annotated trace alongside the VM's result (C8,
// §4.8, §6).
func (d *Debugger) DebugTx(tx Tx, block *BlockContext, state vm.StateReader) ([]StepState, RunTxResult, error) {
	if d.vmFactory == nil {
		return nil, RunTxResult{}, fmt.Errorf("sol-dbg: no VMFactory configured")
	}
	vmInst, err := d.vmFactory.NewVM(block, state)
	if err != nil {
		return nil, RunTxResult{}, fmt.Errorf("sol-dbg: creating vm: %w", err)
	}

	initial, err := d.initialFrame(tx, state, d.cached)
	if err != nil {
		return nil, RunTxResult{}, err
	}
	frames := FrameStack{}.Push(initial)

	var (
		out      []StepState
		prevStep *StepState
		stepIdx  int
	)

	onStep := func(ev vm.StepEvent) error {
		var prevVM *StepVMState
		if prevStep != nil {
			prevVM = &prevStep.StepVMState
		}
		cur, err := NormalizeStep(prevVM, ev, state)
		if err != nil {
			return fmt.Errorf("%w: normalizing step %d: %v", dbgerr.ErrVM, stepIdx, err)
		}

		code, codeHash, err := ResolveCode(prevStep, cur, state)
		if err != nil {
			return fmt.Errorf("%w: resolving code at step %d: %v", dbgerr.ErrVM, stepIdx, err)
		}

		var preTriple *srcmap.Triple
		var preAST srcmap.ASTNode
		if ext, _, ok := frames.NearestExternal(); ok {
			preTriple, preAST = DecodeSourceLoc(cur.PC, ext)
		}

		newFrames, err := Reconcile(frames, cur, prevStep, preTriple, preAST, code, codeHash, d.cached, d.dec, stepIdx)
		if err != nil {
			return err
		}
		logFrameDelta(d.logger, frames, newFrames, stepIdx)
		frames = newFrames

		var finalTriple *srcmap.Triple
		var finalAST srcmap.ASTNode
		var info ContractInfo
		if ext, _, ok := frames.NearestExternal(); ok {
			finalTriple, finalAST = DecodeSourceLoc(cur.PC, ext)
			info = ext.Info
		}

		event, _ := ExtractEvent(cur)

		step := StepState{
			StepVMState:  cur,
			Code:         code,
			CodeHash:     codeHash,
			Frames:       frames,
			SourceTriple: finalTriple,
			ASTNode:      finalAST,
			Event:        event,
			Info:         info,
		}
		// prevStep keeps the full, unstripped step — the reconciler and code
		// identifier need the real stack/memory on the next call regardless
		// of what the host asked to retain in the output.
		prevStep = &step
		out = append(out, d.traceOpts.Strip(step))
		stepIdx++
		return nil
	}

	opts := ExecOptions{SkipSignatureCheck: true, SkipNonceCheck: true, SkipBalanceCheck: true}
	result, err := vmInst.Execute(tx, opts, state, onStep)
	return out, result, err
}

func (d *Debugger) initialFrame(tx Tx, state vm.StateReader, am ArtifactManager) (Frame, error) {
	if tx.To == nil {
		return MakeCreationFrame(tx.From, tx.Data, am, 0), nil
	}
	code, err := state.GetContractCode(*tx.To)
	if err != nil {
		return Frame{}, fmt.Errorf("sol-dbg: fetching code for %s: %w", tx.To.Hex(), err)
	}
	hash, ok := ExtractMetadataHash(code)
	var hashPtr *common.Hash
	if ok {
		hashPtr = &hash
	}
	return MakeCallFrame(tx.From, *tx.To, tx.Data, code, hashPtr, am, d.dec, 0), nil
}

// logFrameDelta logs every frame reconcile pushed or popped this step.
// Reconcile itself stays pure (no logger dependency) so it's trivial to
// unit test; the driver is the only place that observes before/after.
func logFrameDelta(l *slog.Logger, before, after FrameStack, stepIdx int) {
	if l == nil {
		return
	}
	for i := len(before); i < len(after); i++ {
		logFramePush(l, after[i], stepIdx)
	}
	for i := len(after); i < len(before); i++ {
		logFramePop(l, before[i], stepIdx)
	}
}
