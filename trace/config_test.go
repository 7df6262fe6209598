package trace

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestTraceOptionsZeroValueRetainsEverything(t *testing.T) {
	step := StepState{StepVMState: StepVMState{
		Stack:   []uint256.Int{*uint256.NewInt(1)},
		Memory:  []byte{0x01},
		Storage: Storage{},
	}}
	got := TraceOptions{}.Strip(step)
	assert.NotNil(t, got.Stack)
	assert.NotNil(t, got.Memory)
	assert.NotNil(t, got.Storage)
}

func TestTraceOptionsDisablesSelectively(t *testing.T) {
	step := StepState{StepVMState: StepVMState{
		Stack:   []uint256.Int{*uint256.NewInt(1)},
		Memory:  []byte{0x01},
		Storage: Storage{},
	}}
	opts := TraceOptions{DisableMemory: true}
	got := opts.Strip(step)
	assert.Nil(t, got.Memory)
	assert.NotNil(t, got.Stack)
	assert.NotNil(t, got.Storage)
}

func TestTraceOptionsNeverStripsFramesOrEvent(t *testing.T) {
	frames := FrameStack{}.Push(Frame{Kind: FrameExternalCall})
	event := &EventDesc{}
	step := StepState{
		StepVMState: StepVMState{Stack: []uint256.Int{*uint256.NewInt(1)}, Memory: []byte{1}, Storage: Storage{}},
		Frames:      frames,
		Event:       event,
	}
	opts := TraceOptions{DisableMemory: true, DisableStack: true, DisableStorage: true}
	got := opts.Strip(step)
	assert.Equal(t, frames, got.Frames)
	assert.Same(t, event, got.Event)
}
