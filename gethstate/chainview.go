package gethstate

import (
	"encoding/binary"
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lattice-build/evm-blockbuilder/core/blockbuilder"
)

// HeaderSource resolves a canonical header by number, e.g. a *core.BlockChain
// or any other component that tracks canonical headers by number.
type HeaderSource interface {
	GetHeaderByNumber(number uint64) *types.Header
}

// ancestorCacheBytes sizes the fastcache instance backing ChainView. Only
// the last 256 ancestors are ever meaningful to BLOCKHASH, so this is a
// deliberately small, fixed-size cache rather than one sized off chain
// length.
const ancestorCacheBytes = 1 << 20 // 1 MiB

// ChainView implements blockbuilder.Blockchain over a HeaderSource, caching
// every resolved ancestor hash in a fastcache.Cache keyed by big-endian block
// number so repeated BLOCKHASH lookups of the same ancestor don't re-walk the
// canonical chain. Entries are not limited to a 256-block window; the cache
// evicts only when its fixed size is exhausted.
type ChainView struct {
	source HeaderSource
	cache  *fastcache.Cache
}

// NewChainView wraps source with an ancestor-hash cache.
func NewChainView(source HeaderSource) *ChainView {
	return &ChainView{
		source: source,
		cache:  fastcache.New(ancestorCacheBytes),
	}
}

var _ blockbuilder.Blockchain = (*ChainView)(nil)

func (c *ChainView) BlockHash(number uint64) (common.Hash, error) {
	key := numberKey(number)
	if cached, ok := c.cache.HasGet(nil, key); ok {
		return common.BytesToHash(cached), nil
	}

	header := c.source.GetHeaderByNumber(number)
	if header == nil {
		return common.Hash{}, fmt.Errorf("gethstate: no canonical header at number %d", number)
	}
	hash := header.Hash()
	c.cache.Set(key, hash.Bytes())
	return hash, nil
}

func numberKey(number uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], number)
	return buf[:]
}
