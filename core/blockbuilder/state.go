package blockbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
)

// AccountInfo is the read-side view of an account: balance, nonce, and code
// hash. It mirrors the fields go-ethereum's state.StateDB tracks per
// account, without depending on the concrete StateDB type so that State
// implementations other than gethstate.StateDB remain possible.
type AccountInfo struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash common.Hash
}

// AccountModifierFn mutates an account in place. State.ModifyAccount applies
// it under scoped rollback: if f returns an error, any state mutation it
// performed is discarded.
type AccountModifierFn func(*AccountInfo) error

// State is the narrow account-read/modify/commit surface AddTransaction and
// Finalize need. It is deliberately not "the whole of go-ethereum's
// state.StateDB" — only the capability set the builder actually exercises,
// per the polymorphism note in this package's design notes.
type State interface {
	// GetAccount returns the current account info for addr, or the zero
	// value (not an error) if the account does not exist.
	GetAccount(addr common.Address) (AccountInfo, error)

	// GetCode returns the code stored at addr (nil for an EOA or a
	// not-yet-deployed contract).
	GetCode(addr common.Address) ([]byte, error)

	// GetStorage returns the value stored at key in addr's storage.
	GetStorage(addr common.Address, key common.Hash) (common.Hash, error)

	// ModifyAccount applies f to addr's account under scoped rollback.
	ModifyAccount(addr common.Address, f AccountModifierFn) error

	// Commit durably applies diff so subsequent reads observe it.
	Commit(diff *StateDiff) error

	// StateRoot returns the root hash reflecting every diff committed so
	// far.
	StateRoot() (common.Hash, error)
}

// vmBackend is the additional capability a State implementation needs for
// AddTransaction to actually drive the EVM: a go-ethereum vm.StateDB (the
// wide interface the interpreter itself requires) plus the two
// concrete-StateDB-only operations core.ApplyTransaction relies on for log
// bookkeeping. gethstate.StateDB implements this since *state.StateDB
// natively satisfies vm.StateDB. Keeping this separate from State (rather
// than folding its methods into State) is what lets State stay the narrow,
// spec-shaped interface a replay-only or test backend can implement without
// dragging in the whole of go-ethereum's EVM-facing surface.
type vmBackend interface {
	VM() vm.StateDB
	SetTxContext(txHash common.Hash, txIndex int)
	GetLogs(txHash common.Hash, blockNumber uint64) []*types.Log
}
