package trace

import "github.com/holiman/uint256"

// ExtractEvent slices the payload and topics for a LOG-N instruction out
// of the operand stack and memory (C7, §4.7). Returns nil, false for any
// opcode that isn't LOG0..LOG4.
func ExtractEvent(cur StepVMState) (*EventDesc, bool) {
	n, ok := cur.Op.IsLog()
	if !ok {
		return nil, false
	}
	offset := stackAt(cur.Stack, 0)
	size := stackAt(cur.Stack, 1)
	off, sz := offset.Uint64(), size.Uint64()
	var payload []byte
	if off+sz <= uint64(len(cur.Memory)) {
		payload = make([]byte, sz)
		copy(payload, cur.Memory[off:off+sz])
	}

	// The N topics sit immediately below size on the stack, in reversed
	// order relative to declaration order.
	topics := make([]uint256.Int, n)
	for i := 0; i < n; i++ {
		v := stackAt(cur.Stack, 2+i)
		topics[n-1-i] = v
	}
	return &EventDesc{Payload: payload, Topics: topics}, true
}
