package miner

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lattice-build/evm-blockbuilder/core/blockbuilder"
	"github.com/lattice-build/evm-blockbuilder/gethstate"
)

type noAncestors struct{}

func (noAncestors) BlockHash(uint64) (common.Hash, error) { return common.Hash{}, nil }

func TestBuilder_BuildSkipsRejectedTransactionsButFinalizes(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	recipient := common.HexToAddress("0x0000000000000000000000000000000000dead")
	beneficiary := common.HexToAddress("0x00000000000000000000000000000000000b33")

	db := rawdb.NewMemoryDatabase()
	rawSDB, err := state.New(common.Hash{}, state.NewDatabase(db), nil)
	require.NoError(t, err)
	rawSDB.AddBalance(sender, uint256.NewInt(1_000_000_000_000_000_000), 0)
	sdb := gethstate.New(rawSDB)

	good, err := types.SignNewTx(key, types.LatestSignerForChainID(big.NewInt(1)), &types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21_000,
		To:       &recipient,
		Value:    big.NewInt(1),
	})
	require.NoError(t, err)

	tooMuchGas, err := types.SignNewTx(key, types.LatestSignerForChainID(big.NewInt(1)), &types.LegacyTx{
		Nonce:    1,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      30_000_001,
		To:       &recipient,
		Value:    big.NewInt(1),
	})
	require.NoError(t, err)

	cfg := blockbuilder.Config{Spec: blockbuilder.London, ChainID: 1}
	gasLimit := uint64(30_000_000)
	parent := &types.Header{Number: big.NewInt(1), GasLimit: gasLimit, Difficulty: big.NewInt(1), Time: 1000}

	builder := NewBuilder(cfg, noAncestors{})
	result, skipped, err := builder.Build(sdb, BuildParams{
		Parent:       parent,
		Beneficiary:  beneficiary,
		Timestamp:    1100,
		GasLimit:     &gasLimit,
		Transactions: types.Transactions{good, tooMuchGas},
		Rewards:      []blockbuilder.BlockReward{{Recipient: beneficiary, Amount: big.NewInt(2_000_000_000_000_000_000)}},
	})

	require.NoError(t, err)
	require.Len(t, skipped, 1)
	require.Len(t, result.Block.Transactions, 1)
	require.Equal(t, good.Hash(), result.Block.Transactions[0].Hash())
}
