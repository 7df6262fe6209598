package srcmap

import (
	"fmt"

	"github.com/ConsenSys/sol-dbg/core/vm"
)

// ASTNode is the opaque, read-only AST node handle produced by the source
// language compiler's JSON output and consumed by the core. The core never
// mutates it and never interprets its fields beyond the FunctionDefinition/
// VariableDeclaration checks the caller performs against whatever concrete
// type the artifact manager hands back (see trace.CalleeNode).
type ASTNode interface {
	// NodeKey returns the "start:length:sourceIndex" key the artifact
	// manager's srcMap table is keyed by.
	NodeKey() string
}

// Table is a per-contract (deployed-bytecode or creation-bytecode) source
// map: triples indexed by *instruction index*, plus the bytecode's PC-to-
// instruction-index table and the AST-node lookup.
type Table struct {
	// triples[i] is the decoded entry for the i-th instruction in program
	// order (not the i-th byte).
	triples []Triple
	// pcToInstr maps a PC to its instruction index. Built once from the
	// bytecode so PUSH-N's immediate operand bytes are never mistaken for
	// instruction boundaries.
	pcToInstr map[uint64]int
	// astByKey maps "start:length:sourceIndex" to its AST node, exactly as
	// artifact.srcMap is keyed per §6.
	astByKey map[string]ASTNode
}

// NewTable builds a resolver table from a contract's raw bytecode and its
// parallel per-instruction triple list (one triple per instruction, in
// program order — this is the shape the artifact manager's compile-time
// source map already comes in).
func NewTable(bytecode []byte, triples []Triple, ast map[string]ASTNode) *Table {
	t := &Table{triples: triples, astByKey: ast}
	t.pcToInstr = indexInstructions(bytecode)
	return t
}

// indexInstructions walks bytecode once, assigning each instruction
// (PUSH1..PUSH32 spans 1+N bytes, everything else spans one byte) its
// sequential index.
func indexInstructions(bytecode []byte) map[uint64]int {
	idx := make(map[uint64]int, len(bytecode))
	instr := 0
	for pc := 0; pc < len(bytecode); {
		idx[uint64(pc)] = instr
		op := vm.OpCode(bytecode[pc])
		n, _ := op.IsPush()
		pc += 1 + n
		instr++
	}
	return idx
}

// Resolve returns the source triple at pc. The second return value is
// false when pc carries no debug info (missing source map, or pc falls
// outside the instruction table) — callers tolerate this rather than
// failing the whole trace (§4.2, §7 MissingDebugInfo).
func (t *Table) Resolve(pc uint64) (Triple, bool) {
	if t == nil {
		return NoTriple, false
	}
	instr, ok := t.pcToInstr[pc]
	if !ok || instr >= len(t.triples) {
		return NoTriple, false
	}
	tr := t.triples[instr]
	if !tr.Valid() {
		return NoTriple, false
	}
	return tr, true
}

// ASTNodeFor looks up the AST node matching triple, if any.
func (t *Table) ASTNodeFor(tr Triple) (ASTNode, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := t.astByKey[NodeKey(tr)]
	return n, ok
}

// NodeKey formats a triple the way the artifact manager's srcMap table
// keys its AST nodes: "start:length:sourceIndex".
func NodeKey(tr Triple) string {
	return fmt.Sprintf("%d:%d:%d", tr.Start, tr.Length, tr.SourceIndex)
}
