package blockbuilder

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func testParent(number uint64) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(number),
		GasLimit:   30_000_000,
		Difficulty: big.NewInt(1),
		Time:       1000,
	}
}

func daoActivation(n uint64) *uint64 { return &n }

// S1 — DAO extra_data accepted.
func TestNew_DaoExtraDataAccepted(t *testing.T) {
	parent := testParent(2)
	cfg := Config{Spec: Byzantium, DAOForkBlock: daoActivation(3)}
	number := uint64(3)

	b, err := New(cfg, parent, BlockOptions{
		Number:    &number,
		ExtraData: []byte("dao-hard-fork"),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), b.Header().Number.Uint64())
}

// S2 — DAO extra_data missing.
func TestNew_DaoExtraDataMissing(t *testing.T) {
	parent := testParent(2)
	cfg := Config{Spec: Byzantium, DAOForkBlock: daoActivation(3)}
	number := uint64(3)

	_, err := New(cfg, parent, BlockOptions{Number: &number})
	require.Error(t, err)
	var daoErr *DaoHardforkInvalidDataError
	require.ErrorAs(t, err, &daoErr)
	require.Equal(t, uint64(3), daoErr.BlockNumber)
	require.Equal(t, uint64(3), daoErr.ActivationBlock)
}

// S3 — DAO window overflow guard: activation far in the future must not
// underflow header.number - activation.
func TestNew_DaoWindowOverflowGuard(t *testing.T) {
	parent := testParent(1)
	cfg := Config{Spec: Byzantium, DAOForkBlock: daoActivation(1_920_000)}

	b, err := New(cfg, parent, BlockOptions{ExtraData: []byte("dao-hard-fork")})
	require.NoError(t, err)
	require.Equal(t, uint64(2), b.Header().Number.Uint64())
}

func TestNew_RejectsPreByzantium(t *testing.T) {
	parent := testParent(1)
	cfg := Config{Spec: DAOFork} // below Byzantium

	_, err := New(cfg, parent, BlockOptions{})
	require.Error(t, err)
	var unsupported *UnsupportedHardforkError
	require.ErrorAs(t, err, &unsupported)
}

func TestNew_ParentGasLimitCapturedWhenOmitted(t *testing.T) {
	parent := testParent(5)
	cfg := Config{Spec: Byzantium}

	b, err := New(cfg, parent, BlockOptions{})
	require.NoError(t, err)
	require.NotNil(t, b.parentGasLimit)
	require.Equal(t, parent.GasLimit, *b.parentGasLimit)
}

func TestNew_ShanghaiDefaultsEmptyWithdrawals(t *testing.T) {
	parent := testParent(5)
	cfg := Config{Spec: Shanghai}

	b, err := New(cfg, parent, BlockOptions{})
	require.NoError(t, err)
	require.NotNil(t, b.withdrawals)
	require.Empty(t, b.withdrawals)
	require.NotNil(t, b.Header().WithdrawalsHash)
	require.Equal(t, types.EmptyWithdrawalsHash, *b.Header().WithdrawalsHash)
}
