package blockbuilder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core"
)

// UnsupportedHardforkError is returned by New when cfg.Spec predates
// Byzantium, the oldest spec this package assembles blocks for.
type UnsupportedHardforkError struct {
	Spec Spec
}

func (e *UnsupportedHardforkError) Error() string {
	return fmt.Sprintf("blockbuilder: unsupported hardfork %s (need >= %s)", e.Spec, Byzantium)
}

// DaoHardforkInvalidDataError is returned by New when the header falls
// inside the ten-block DAO extradata window but extra_data does not equal
// the literal "dao-hard-fork".
type DaoHardforkInvalidDataError struct {
	BlockNumber      uint64
	ActivationBlock   uint64
}

func (e *DaoHardforkInvalidDataError) Error() string {
	return fmt.Sprintf("blockbuilder: block %d is within the DAO fork window opened at %d but extra_data is not \"dao-hard-fork\"", e.BlockNumber, e.ActivationBlock)
}

// ExceedsBlockGasLimitError is returned by AddTransaction when the candidate
// transaction's gas limit would exceed the block's remaining ordinary gas.
type ExceedsBlockGasLimitError struct {
	GasLimit       uint64
	GasRemaining   uint64
}

func (e *ExceedsBlockGasLimitError) Error() string {
	return fmt.Sprintf("blockbuilder: tx gas limit %d exceeds remaining block gas %d", e.GasLimit, e.GasRemaining)
}

// ExceedsBlockBlobGasLimitError is returned by AddTransaction when the
// candidate transaction's blob gas would overflow the per-block blob gas cap.
type ExceedsBlockBlobGasLimitError struct {
	BlobGas      uint64
	GasUsed      uint64
	Cap          uint64
}

func (e *ExceedsBlockBlobGasLimitError) Error() string {
	return fmt.Sprintf("blockbuilder: tx blob gas %d would push block blob gas used %d over cap %d", e.BlobGas, e.GasUsed, e.Cap)
}

// InsufficientFundsError is the structured form of go-ethereum's payload-less
// core.ErrInsufficientFunds sentinel: the builder captures the sender's
// balance and the transaction's max upfront cost before calling the
// executor, since the sentinel itself carries neither value.
type InsufficientFundsError struct {
	MaxUpfrontCost *big.Int
	SenderBalance  *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("blockbuilder: insufficient funds: sender balance %s < max upfront cost %s", e.SenderBalance, e.MaxUpfrontCost)
}

// InvalidTransactionError wraps any other pre-flight rejection the executor
// reports (nonce, fee-cap, type-support, ...). Unwrap exposes the original
// go-ethereum sentinel for errors.Is/errors.As callers.
type InvalidTransactionError struct {
	Inner error
}

func (e *InvalidTransactionError) Error() string { return fmt.Sprintf("blockbuilder: invalid transaction: %s", e.Inner) }
func (e *InvalidTransactionError) Unwrap() error { return e.Inner }

// StateError wraps a failure reported by the State interface.
type StateError struct {
	Err error
}

func (e *StateError) Error() string { return fmt.Sprintf("blockbuilder: state error: %s", e.Err) }
func (e *StateError) Unwrap() error { return e.Err }

// BlockHashError wraps a failure reported by the Blockchain interface. No
// path in this package returns it: newBlockContext resolves a failed
// ancestor lookup to the zero hash.
type BlockHashError struct {
	Err error
}

func (e *BlockHashError) Error() string { return fmt.Sprintf("blockbuilder: block hash lookup failed: %s", e.Err) }
func (e *BlockHashError) Unwrap() error { return e.Err }

// PrecompileError reports a precompile execution failure as a bare string.
// No path in this package returns it: go-ethereum reports a failing
// precompile as a failed execution (receipt status 0), not as an error.
type PrecompileError struct {
	Message string
}

func (e *PrecompileError) Error() string { return fmt.Sprintf("blockbuilder: precompile error: %s", e.Message) }

// CustomError reports malformed input or an unusable backend that has no
// underlying error to wrap (e.g. a replayed remote header whose blob-gas
// fields fail ValidateReplayHeader, or a State that cannot drive the EVM).
// Executor failures are never mapped to it; see mapExecError.
type CustomError struct {
	Message string
}

func (e *CustomError) Error() string { return fmt.Sprintf("blockbuilder: %s", e.Message) }

// mapExecError translates a go-ethereum core.Err* sentinel (or any other
// error reported by the executor) into this package's error taxonomy. cost
// and balance are the tx's upfront cost and the sender's pre-call balance,
// captured by the caller before invoking the executor since
// core.ErrInsufficientFunds itself carries no payload.
func mapExecError(err error, cost, balance *big.Int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrInsufficientFunds) || errors.Is(err, core.ErrInsufficientFundsForTransfer) {
		return &InsufficientFundsError{MaxUpfrontCost: cost, SenderBalance: balance}
	}
	// Every other error this function sees came back from the executor's
	// pre-flight checks or the EVM call itself, so it is always some
	// rejection of the transaction rather than a malformed-input case;
	// CustomError is reserved for callers that have no sentinel to wrap at
	// all (e.g. a replayed header missing a required field).
	return &InvalidTransactionError{Inner: err}
}
