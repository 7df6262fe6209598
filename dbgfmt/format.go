// Package dbgfmt formats a finished trace for human or machine
// consumption: a JSON-friendly per-step view and a plain-text dump,
// adapted from the teacher's struct-logger output formatters onto this
// module's StepState/EventDesc shapes instead of StructLog.
package dbgfmt

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ConsenSys/sol-dbg/trace"
)

// StepRes is the JSON-friendly view of one trace.StepState: hex-encoded
// buffers, mnemonics instead of raw opcode bytes, source location flattened
// to start/length/sourceIndex. Mirrors the teacher's StructLogRes.
type StepRes struct {
	PC        uint64   `json:"pc"`
	Op        string   `json:"op"`
	Gas       uint64   `json:"gas"`
	GasCost   uint64   `json:"gasCost"`
	Depth     int      `json:"depth"`
	FrameKind string   `json:"frameKind"`
	Stack     []string `json:"stack,omitempty"`
	Memory    []string `json:"memory,omitempty"`

	SourceStart  int `json:"sourceStart,omitempty"`
	SourceLength int `json:"sourceLength,omitempty"`
	SourceIndex  int `json:"sourceIndex,omitempty"`
}

// FormatSteps converts steps into their JSON-friendly view, one StepRes
// per step, in order.
func FormatSteps(steps []trace.StepState) []StepRes {
	out := make([]StepRes, len(steps))
	for i, s := range steps {
		top, _ := s.Frames.Top()
		r := StepRes{
			PC:            s.PC,
			Op:            s.Op.String(),
			Gas:           s.GasRemaining,
			GasCost:       s.StaticGasCost + s.DynamicGasCost,
			Depth:         s.Depth,
			FrameKind:     top.Kind.String(),
		}
		if s.Stack != nil {
			stack := make([]string, len(s.Stack))
			for j := range s.Stack {
				v := s.Stack[j]
				stack[j] = v.Hex()
			}
			r.Stack = stack
		}
		if s.Memory != nil {
			r.Memory = chunk32(s.Memory)
		}
		if s.SourceTriple != nil {
			r.SourceStart = s.SourceTriple.Start
			r.SourceLength = s.SourceTriple.Length
			r.SourceIndex = s.SourceTriple.SourceIndex
		}
		out[i] = r
	}
	return out
}

func chunk32(mem []byte) []string {
	words := make([]string, 0, (len(mem)+31)/32)
	for i := 0; i+32 <= len(mem); i += 32 {
		words = append(words, hex.EncodeToString(mem[i:i+32]))
	}
	return words
}

// WriteTrace writes one line per step in the teacher's WriteTrace idiom:
// mnemonic, pc, gas, cost, and (when present) a stack dump.
func WriteTrace(w io.Writer, steps []trace.StepState) {
	for _, s := range steps {
		fmt.Fprintf(w, "%-16spc=%08d gas=%v cost=%v depth=%d\n",
			s.Op, s.PC, s.GasRemaining, s.StaticGasCost+s.DynamicGasCost, s.Depth)
		if len(s.Stack) > 0 {
			fmt.Fprintln(w, "Stack:")
			for i := len(s.Stack) - 1; i >= 0; i-- {
				fmt.Fprintf(w, "%08d  %s\n", len(s.Stack)-i-1, s.Stack[i].Hex())
			}
		}
		if len(s.Memory) > 0 {
			fmt.Fprintln(w, "Memory:")
			fmt.Fprint(w, hex.Dump(s.Memory))
		}
		fmt.Fprintln(w)
	}
}

// WriteEvents writes every LOG-N event found in steps, in the teacher's
// WriteLogs layout: LOGN, emitting address, topics, then a hex dump of the
// payload.
func WriteEvents(w io.Writer, steps []trace.StepState) {
	for _, s := range steps {
		if s.Event == nil {
			continue
		}
		fmt.Fprintf(w, "LOG%d: %s pc=%d\n", len(s.Event.Topics), s.ExecutingAddress.Hex(), s.PC)
		for i, topic := range s.Event.Topics {
			fmt.Fprintf(w, "%08d  %s\n", i, topic.Hex())
		}
		fmt.Fprint(w, hex.Dump(s.Event.Payload))
		fmt.Fprintln(w)
	}
}

