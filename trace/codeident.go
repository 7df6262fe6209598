package trace

import (
	"encoding/binary"

	"github.com/erigontech/erigon-lib/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/ConsenSys/sol-dbg/core/vm"
)

// keccak256 matches go-ethereum's crypto.Keccak256: the legacy
// (pre-NIST-finalization) Keccak padding the EVM itself uses, not
// standard SHA3-256.
func keccak256(data []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// maxMetadataTrailer bounds how much of the tail of a deployed-bytecode
// blob is ever considered as a CBOR metadata trailer, guarding against a
// malformed two-byte length prefix reading past the start of the buffer.
const maxMetadataTrailer = 1024

// ResolveCode determines, for the step currently being built, the
// executing code buffer and its identifying hash (C4, §4.4). prev is the
// previously recorded step, or nil for the first step of the trace.
func ResolveCode(prev *StepState, cur StepVMState, state vm.StateReader) (code []byte, hash *common.Hash, err error) {
	switch {
	case prev != nil && prev.Op.CreatesContract():
		return codeFromCreation(*prev)
	case prev == nil || cur.CodeSourceAddress != prev.CodeSourceAddress:
		return codeFromState(cur.CodeSourceAddress, state)
	default:
		return prev.Code, prev.CodeHash, nil
	}
}

// codeFromCreation slices the about-to-run initcode out of the previous
// step's memory, per the CREATE/CREATE2 stack convention: offset at
// stack[top-1], size at stack[top-2]. The identifying hash is the
// creation-code hash (keccak256 of the initcode itself — there is no
// CBOR trailer on initcode before it has executed).
func codeFromCreation(prev StepState) ([]byte, *common.Hash, error) {
	offset := stackAt(prev.Stack, 1)
	size := stackAt(prev.Stack, 2)
	off, sz := offset.Uint64(), size.Uint64()
	if off+sz > uint64(len(prev.Memory)) {
		return nil, nil, nil // matches "undefined if absent/malformed"
	}
	code := prev.Memory[off : off+sz]
	h := keccak256(code)
	return code, &h, nil
}

func codeFromState(addr common.Address, state vm.StateReader) ([]byte, *common.Hash, error) {
	code, err := state.GetContractCode(addr)
	if err != nil {
		return nil, nil, err
	}
	hash, ok := ExtractMetadataHash(code)
	if !ok {
		return code, nil, nil
	}
	return code, &hash, nil
}

// ExtractMetadataHash parses the CBOR metadata trailer solc conventionally
// appends to deployed bytecode: a CBOR-encoded map followed by its own
// length as a big-endian uint16 in the final two bytes. The identifying
// hash is keccak256 of the trailer's payload bytes (excluding the
// trailing length field) — this is stable for a given compilation and is
// what the artifact manager is expected to key getContractFromMDHash by.
//
// Returns ok=false if the bytecode is too short, or its claimed trailer
// length doesn't fit — "undefined if absent/malformed" (§4.4).
func ExtractMetadataHash(code []byte) (common.Hash, bool) {
	if len(code) < 2 {
		return common.Hash{}, false
	}
	n := int(binary.BigEndian.Uint16(code[len(code)-2:]))
	if n <= 0 || n > maxMetadataTrailer || n+2 > len(code) {
		return common.Hash{}, false
	}
	trailer := code[len(code)-2-n : len(code)-2]
	return keccak256(trailer), true
}

// stackAt returns the stack value at offsetFromTop positions below the
// top (0 = top), matching the DataLocation.Stack convention (§3).
func stackAt(stack []uint256.Int, offsetFromTop int) uint256.Int {
	return stack[len(stack)-1-offsetFromTop]
}
