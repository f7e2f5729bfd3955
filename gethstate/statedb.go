// Package gethstate binds the block builder's narrow State/Blockchain
// interfaces to a real go-ethereum state.StateDB and ancestor-hash source.
// spec.md deliberately leaves this binding unspecified (it names the
// interfaces the core consumes, not a concrete backend); this package is the
// one this repo ships, grounded in the same state.New(root,
// state.NewDatabase(db), nil) construction idiom used throughout the
// retrieval pack's test helpers.
package gethstate

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/lattice-build/evm-blockbuilder/core/blockbuilder"
)

var errOverflow = errors.New("gethstate: balance does not fit in 256 bits")

// StateDB wraps a *state.StateDB, implementing blockbuilder.State for the
// builder's account-level operations and exposing the wider vm.StateDB
// surface the EVM itself needs.
type StateDB struct {
	db *state.StateDB
}

// New wraps an already-opened *state.StateDB, e.g. one built via
// state.New(root, state.NewDatabase(db), nil).
func New(sdb *state.StateDB) *StateDB {
	return &StateDB{db: sdb}
}

var _ blockbuilder.State = (*StateDB)(nil)

func (s *StateDB) GetAccount(addr common.Address) (blockbuilder.AccountInfo, error) {
	if !s.db.Exist(addr) {
		return blockbuilder.AccountInfo{Balance: new(big.Int)}, nil
	}
	return blockbuilder.AccountInfo{
		Balance:  s.db.GetBalance(addr).ToBig(),
		Nonce:    s.db.GetNonce(addr),
		CodeHash: s.db.GetCodeHash(addr),
	}, nil
}

func (s *StateDB) GetCode(addr common.Address) ([]byte, error) {
	return s.db.GetCode(addr), nil
}

func (s *StateDB) GetStorage(addr common.Address, key common.Hash) (common.Hash, error) {
	return s.db.GetState(addr, key), nil
}

// ModifyAccount reads addr's current balance/nonce, lets f mutate a copy,
// then applies the balance delta and nonce via Add/SubBalance and SetNonce.
// A snapshot is taken first so an error from f leaves the backing StateDB
// untouched.
func (s *StateDB) ModifyAccount(addr common.Address, f blockbuilder.AccountModifierFn) error {
	snap := s.db.Snapshot()
	info := blockbuilder.AccountInfo{
		Balance:  s.db.GetBalance(addr).ToBig(),
		Nonce:    s.db.GetNonce(addr),
		CodeHash: s.db.GetCodeHash(addr),
	}
	if err := f(&info); err != nil {
		s.db.RevertToSnapshot(snap)
		return err
	}
	if err := s.applyBalance(addr, info.Balance); err != nil {
		s.db.RevertToSnapshot(snap)
		return err
	}
	s.db.SetNonce(addr, info.Nonce, 0)
	return nil
}

func (s *StateDB) applyBalance(addr common.Address, target *big.Int) error {
	if target == nil {
		return nil
	}
	current := s.db.GetBalance(addr).ToBig()
	delta := new(big.Int).Sub(target, current)
	switch delta.Sign() {
	case 1:
		u, overflow := uint256.FromBig(delta)
		if overflow {
			return errOverflow
		}
		s.db.AddBalance(addr, u, 0)
	case -1:
		u, overflow := uint256.FromBig(new(big.Int).Neg(delta))
		if overflow {
			return errOverflow
		}
		s.db.SubBalance(addr, u, 0)
	}
	return nil
}

// Commit applies every account change diff recorded, keyed by the addresses
// diff.Touched() names.
func (s *StateDB) Commit(diff *blockbuilder.StateDiff) error {
	for addr := range diff.Touched().Iter() {
		change := diff.Get(addr)
		if change == nil {
			continue
		}
		if change.Balance != nil {
			if err := s.applyBalance(addr, change.Balance); err != nil {
				return err
			}
		}
		if change.Nonce != nil {
			s.db.SetNonce(addr, *change.Nonce, 0)
		}
		if change.Code != nil {
			s.db.SetCode(addr, change.Code)
		}
		for k, v := range change.Storage {
			s.db.SetState(addr, k, v)
		}
	}
	return nil
}

func (s *StateDB) StateRoot() (common.Hash, error) {
	return s.db.IntermediateRoot(true), nil
}

// VM exposes the wrapped *state.StateDB as a vm.StateDB, satisfying the
// block builder's internal EVM-execution capability.
func (s *StateDB) VM() vm.StateDB { return s.db }

func (s *StateDB) SetTxContext(txHash common.Hash, txIndex int) {
	s.db.SetTxContext(txHash, txIndex)
}

func (s *StateDB) GetLogs(txHash common.Hash, blockNumber uint64) []*types.Log {
	return s.db.GetLogs(txHash, blockNumber, common.Hash{})
}
