package classify

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/ibc"
)

// cachedSourceChainSize bounds how many counterparty resolutions are
// remembered per wrapped chain.
const cachedSourceChainSize = 1024

// CachingSourceChain decorates an ibc.SourceChain with an LRU cache of
// its counterparty-resolution results. A single EventBatch can carry
// many events referencing the same connection or channel (e.g. several
// packets on one channel); without caching, each one would re-query the
// underlying chain handle, which may be backed by a real gRPC call
// (chain/grpcchain).
type CachingSourceChain struct {
	inner ibc.SourceChain
	cache *lru.Cache
}

var _ ibc.SourceChain = (*CachingSourceChain)(nil)

// NewCachingSourceChain wraps inner with an LRU cache.
func NewCachingSourceChain(inner ibc.SourceChain) *CachingSourceChain {
	cache, err := lru.New(cachedSourceChainSize)
	if err != nil {
		// Size is a positive constant; lru.New only fails for size <= 0.
		panic(err)
	}
	return &CachingSourceChain{inner: inner, cache: cache}
}

// ID implements ibc.SourceChain.
func (c *CachingSourceChain) ID() ibc.ChainID { return c.inner.ID() }

// ClientForConnection implements ibc.SourceChain, caching by connection id.
func (c *CachingSourceChain) ClientForConnection(connectionID ibc.ConnectionID) (ibc.ClientID, error) {
	key := "client:" + string(connectionID)
	if v, ok := c.cache.Get(key); ok {
		return v.(ibc.ClientID), nil
	}
	clientID, err := c.inner.ClientForConnection(connectionID)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, clientID)
	return clientID, nil
}

// CounterpartyChainIDForConnection implements ibc.SourceChain, caching
// by connection id.
func (c *CachingSourceChain) CounterpartyChainIDForConnection(connectionID ibc.ConnectionID) (ibc.ChainID, error) {
	key := "conn-cp:" + string(connectionID)
	if v, ok := c.cache.Get(key); ok {
		return v.(ibc.ChainID), nil
	}
	chainID, err := c.inner.CounterpartyChainIDForConnection(connectionID)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, chainID)
	return chainID, nil
}

// CounterpartyChainIDForChannel implements ibc.SourceChain, caching by
// (port, channel).
func (c *CachingSourceChain) CounterpartyChainIDForChannel(portID ibc.PortID, channelID ibc.ChannelID) (ibc.ChainID, error) {
	key := "chan-cp:" + string(portID) + "/" + string(channelID)
	if v, ok := c.cache.Get(key); ok {
		return v.(ibc.ChainID), nil
	}
	chainID, err := c.inner.CounterpartyChainIDForChannel(portID, channelID)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, chainID)
	return chainID, nil
}
