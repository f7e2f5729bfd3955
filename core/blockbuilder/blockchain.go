package blockbuilder

import "github.com/ethereum/go-ethereum/common"

// Blockchain is the ancestor block-hash lookup the BLOCKHASH opcode needs.
// Only the last 256 ancestors are ever meaningful at the EVM level; the
// gethstate package's ChainView binds this to a real chain with an
// fastcache-backed cache for that window.
type Blockchain interface {
	// BlockHash returns the hash of the canonical block at number, or an
	// error if number is not an ancestor this chain can resolve.
	BlockHash(number uint64) (common.Hash, error)
}
