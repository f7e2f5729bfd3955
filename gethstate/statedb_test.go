package gethstate

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/stretchr/testify/require"

	"github.com/lattice-build/evm-blockbuilder/core/blockbuilder"
)

// newTestStateDB mirrors the coreth test helper this package's construction
// idiom is grounded on: state.New(root, state.NewDatabase(db), nil) against
// a fresh in-memory database.
func newTestStateDB(t *testing.T) *StateDB {
	t.Helper()
	db := rawdb.NewMemoryDatabase()
	sdb, err := state.New(common.Hash{}, state.NewDatabase(db), nil)
	require.NoError(t, err)
	return New(sdb)
}

func TestStateDB_GetAccountOfUnknownAddressIsZeroValue(t *testing.T) {
	s := newTestStateDB(t)
	addr := common.HexToAddress("0x01")

	info, err := s.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), info.Balance)
	require.Equal(t, uint64(0), info.Nonce)
}

func TestStateDB_ModifyAccountAppliesBalanceAndNonce(t *testing.T) {
	s := newTestStateDB(t)
	addr := common.HexToAddress("0x01")

	err := s.ModifyAccount(addr, func(info *blockbuilder.AccountInfo) error {
		info.Balance = big.NewInt(1000)
		info.Nonce = 1
		return nil
	})
	require.NoError(t, err)

	info, err := s.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), info.Balance)
	require.Equal(t, uint64(1), info.Nonce)
}

func TestStateDB_ModifyAccountRollsBackOnError(t *testing.T) {
	s := newTestStateDB(t)
	addr := common.HexToAddress("0x01")

	require.NoError(t, s.ModifyAccount(addr, func(info *blockbuilder.AccountInfo) error {
		info.Balance = big.NewInt(500)
		return nil
	}))

	boom := errTest
	err := s.ModifyAccount(addr, func(info *blockbuilder.AccountInfo) error {
		info.Balance = big.NewInt(999_999)
		return boom
	})
	require.ErrorIs(t, err, boom)

	info, err := s.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), info.Balance)
}

func TestStateDB_CommitAppliesStorageAndCode(t *testing.T) {
	s := newTestStateDB(t)
	addr := common.HexToAddress("0x01")
	key := common.HexToHash("0x1")
	val := common.HexToHash("0x2a")
	code := []byte{0x60, 0x00}

	diff := blockbuilder.NewStateDiff()
	diff.ApplyAccountChange(addr, &blockbuilder.AccountChange{
		Code:    code,
		Storage: map[common.Hash]common.Hash{key: val},
	})

	require.NoError(t, s.Commit(diff))

	gotCode, err := s.GetCode(addr)
	require.NoError(t, err)
	require.Equal(t, code, gotCode)

	gotVal, err := s.GetStorage(addr, key)
	require.NoError(t, err)
	require.Equal(t, val, gotVal)
}

func TestStateDB_StateRootChangesAfterCommit(t *testing.T) {
	s := newTestStateDB(t)
	before, err := s.StateRoot()
	require.NoError(t, err)

	diff := blockbuilder.NewStateDiff()
	diff.ApplyAccountChange(common.HexToAddress("0x01"), &blockbuilder.AccountChange{Balance: big.NewInt(1)})
	require.NoError(t, s.Commit(diff))

	after, err := s.StateRoot()
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
