package trace

import (
	"testing"

	"github.com/erigontech/erigon-lib/common"
	"github.com/stretchr/testify/assert"
)

func TestTouchedCollectsSendersAndReceivers(t *testing.T) {
	from := common.BytesToAddress([]byte{1})
	to := common.BytesToAddress([]byte{2})
	frames := FrameStack{
		{Kind: FrameExternalCall, Sender: from, Receiver: to, StartStep: 0},
	}
	steps := []StepState{{Frames: frames}}

	got := Touched(steps)
	assert.True(t, got.From.Contains(from))
	assert.True(t, got.To.Contains(to))
	assert.False(t, got.Created.Contains(to))
}

func TestTouchedTracksDeployedAddressSeparately(t *testing.T) {
	from := common.BytesToAddress([]byte{1})
	deployed := common.BytesToAddress([]byte{3})
	frames := FrameStack{
		{Kind: FrameCreation, Sender: from, Receiver: deployed, StartStep: 0},
	}
	steps := []StepState{{Frames: frames}}

	got := Touched(steps)
	assert.True(t, got.Created.Contains(deployed))
	assert.True(t, got.To.Contains(deployed))
}

func TestTouchedIgnoresCreationFrameWithUnfilledReceiver(t *testing.T) {
	from := common.BytesToAddress([]byte{1})
	frames := FrameStack{
		{Kind: FrameCreation, Sender: from, StartStep: 0}, // Receiver left zero
	}
	steps := []StepState{{Frames: frames}}

	got := Touched(steps)
	assert.Equal(t, 0, got.Created.Cardinality())
	assert.Equal(t, 0, got.To.Cardinality())
}

func TestTouchedDeduplicatesRepeatedFrameAcrossSteps(t *testing.T) {
	from := common.BytesToAddress([]byte{1})
	to := common.BytesToAddress([]byte{2})
	frame := Frame{Kind: FrameExternalCall, Sender: from, Receiver: to, StartStep: 0}
	steps := []StepState{
		{Frames: FrameStack{frame}},
		{Frames: FrameStack{frame}},
	}

	got := Touched(steps)
	assert.Equal(t, 1, got.From.Cardinality())
	assert.Equal(t, 1, got.To.Cardinality())
}

func TestTouchedIgnoresInternalFrames(t *testing.T) {
	frames := FrameStack{
		{Kind: FrameExternalCall, Sender: common.BytesToAddress([]byte{1}), Receiver: common.BytesToAddress([]byte{2}), StartStep: 0},
		{Kind: FrameInternalCall, StartStep: 1},
	}
	steps := []StepState{{Frames: frames}}

	got := Touched(steps)
	assert.Equal(t, 1, got.From.Cardinality())
}
