package blockbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransactionReceipt pairs go-ethereum's *types.Receipt with the sender and
// call-target addresses the builder already recovered while executing the
// transaction. types.Receipt carries everything else (status/post-state,
// cumulative gas, logs, logs bloom, tx hash/index, contract address, gas
// used, effective gas price) but not From/To.
type TransactionReceipt struct {
	*types.Receipt
	From common.Address
	To   *common.Address
}

// foldLogIntoBloom ORs one log's (address, topics) into bloom using the
// standard bloom rule (Yellow Paper §4.3.1): each item is hashed once with
// Keccak256, and the first three 16-bit windows of that hash each contribute
// one set bit, taken from the window's 11 low bits.
func foldLogIntoBloom(bloom *types.Bloom, log *types.Log) {
	addBloomBits(bloom, log.Address.Bytes())
	for _, topic := range log.Topics {
		addBloomBits(bloom, topic.Bytes())
	}
}

func addBloomBits(bloom *types.Bloom, data []byte) {
	hash := crypto.Keccak256(data)
	for i := 0; i < 3; i++ {
		bit := (uint(hash[i*2+1]) + (uint(hash[i*2]) << 8)) & 0x7ff
		byteIdx := types.BloomByteLength - 1 - bit/8
		bloom[byteIdx] |= 1 << (bit % 8)
	}
}

// effectiveGasPrice is tx's per-unit gas price actually paid once basefee is
// known: for legacy/access-list transactions that's the flat gas price; for
// dynamic-fee and blob transactions it's min(feeCap, baseFee+tipCap).
func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(tx.GasPrice())
	}
	tip := tx.GasTipCap()
	feeCap := tx.GasFeeCap()
	price := new(big.Int).Add(baseFee, tip)
	if price.Cmp(feeCap) > 0 {
		price = feeCap
	}
	return price
}
