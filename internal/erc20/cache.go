package erc20

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"approvalScope/internal/model"
)

type metaEntry struct {
	meta model.TokenMeta
	err  error
}

// MetaCache memoizes resolution outcomes, failures included, by contract address.
type MetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]metaEntry
}

func NewMetaCache() *MetaCache {
	return &MetaCache{data: make(map[common.Address]metaEntry)}
}

func (c *MetaCache) Get(address common.Address) (model.TokenMeta, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[address]
	c.mu.RUnlock()
	return entry.meta, ok, entry.err
}

func (c *MetaCache) Set(address common.Address, meta model.TokenMeta, err error) {
	c.mu.Lock()
	c.data[address] = metaEntry{meta: meta, err: err}
	c.mu.Unlock()
}

// Len returns the number of memoized contracts.
func (c *MetaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
