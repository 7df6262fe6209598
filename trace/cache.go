package trace

import (
	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/erigon-lib/common"
)

// defaultCacheSize bounds the contract-info memoization (C9): large
// enough that a realistic transaction touching dozens of contracts never
// evicts a hot entry mid-trace.
const defaultCacheSize = 256

// cachingArtifactManager memoizes ArtifactManager lookups by code hash (or,
// for creation bytecode, by its keccak256 digest) so a hot contract is
// resolved once per process rather than once per call site (§4.9). It is
// itself an ArtifactManager, so it's a drop-in wrapper around whatever the
// host supplied to NewDebugger.
type cachingArtifactManager struct {
	inner      ArtifactManager
	byMD       *lru.Cache[common.Hash, ContractInfo]
	byCreation *lru.Cache[common.Hash, ContractInfo]
	warned     mapset.Set[common.Hash]
	onMiss     func(hash common.Hash, creation bool)
}

func newCachingArtifactManager(inner ArtifactManager, size int, onMiss func(common.Hash, bool)) *cachingArtifactManager {
	if size <= 0 {
		size = defaultCacheSize
	}
	byMD, _ := lru.New[common.Hash, ContractInfo](size)
	byCreation, _ := lru.New[common.Hash, ContractInfo](size)
	return &cachingArtifactManager{
		inner:      inner,
		byMD:       byMD,
		byCreation: byCreation,
		warned:     mapset.NewSet[common.Hash](),
		onMiss:     onMiss,
	}
}

func (c *cachingArtifactManager) ContractFromMDHash(hash common.Hash) (ContractInfo, bool) {
	if info, ok := c.byMD.Get(hash); ok {
		return info, true
	}
	info, ok := c.inner.ContractFromMDHash(hash)
	if !ok {
		c.logMissOnce(hash, false)
		return nil, false
	}
	c.byMD.Add(hash, info)
	return info, true
}

func (c *cachingArtifactManager) ContractFromCreationBytecode(code []byte) (ContractInfo, bool) {
	key := keccak256(code)
	if info, ok := c.byCreation.Get(key); ok {
		return info, true
	}
	info, ok := c.inner.ContractFromCreationBytecode(code)
	if !ok {
		c.logMissOnce(key, true)
		return nil, false
	}
	c.byCreation.Add(key, info)
	return info, true
}

func (c *cachingArtifactManager) logMissOnce(hash common.Hash, creation bool) {
	if c.warned.Contains(hash) {
		return
	}
	c.warned.Add(hash)
	if c.onMiss != nil {
		c.onMiss(hash, creation)
	}
}
