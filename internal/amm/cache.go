package amm

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lpFarm/internal/model"
)

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

type pairTokens struct {
	token0 common.Address
	token1 common.Address
}

// pairTokensCache caches the immutable constituents of pairs.
type pairTokensCache struct {
	mu   sync.RWMutex
	data map[common.Address]pairTokens
}

func newPairTokensCache() *pairTokensCache {
	return &pairTokensCache{data: make(map[common.Address]pairTokens)}
}

func (c *pairTokensCache) Get(pair common.Address) (pairTokens, bool) {
	c.mu.RLock()
	v, ok := c.data[pair]
	c.mu.RUnlock()
	return v, ok
}

func (c *pairTokensCache) Set(pair common.Address, v pairTokens) {
	c.mu.Lock()
	c.data[pair] = v
	c.mu.Unlock()
}
