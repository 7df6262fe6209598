package trace

import (
	"github.com/erigontech/erigon-lib/common"
)

// storageFromDump converts the state manager's raw dump (word -> RLP/raw
// value bytes) into the word-keyed Storage map the core works with.
func storageFromDump(dump map[common.Hash][]byte) Storage {
	s := make(Storage, len(dump))
	for k, v := range dump {
		s[k] = common.BytesToHash(v)
	}
	return s
}
