package blockbuilder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lattice-build/evm-blockbuilder/consensus/misc/eip4844"
)

// DebugContext carries the caller-supplied live-tracer hook table across
// AddTransaction calls. Go's hook table is a set of closures over
// caller-owned state, so nothing needs to be handed back: AddTransaction
// takes the caller's *DebugContext, never returns it, and the caller keeps
// using the same value across transactions.
type DebugContext struct {
	Hooks *tracing.Hooks
}

// execResult is the executor's internal view of one applied transaction,
// before AddTransaction turns it into a *TransactionReceipt.
type execResult struct {
	gasUsed         uint64
	status          uint64
	logs            []*types.Log
	contractAddress *common.Address
}

// newBlockContext builds the go-ethereum vm.BlockContext for the header as
// it stands right now: GetHash is bound to the Blockchain interface so
// BLOCKHASH resolves through the caller's ancestor lookup rather than a live
// chain object. A failed lookup resolves to the zero hash; it is not reported
// to AddTransaction's caller. BlobBaseFee is derived with the Cancun blob-fee
// update fraction for every spec, Prague included.
func newBlockContext(cfg Config, header *types.Header, chain Blockchain) vm.BlockContext {
	getHash := func(n uint64) common.Hash {
		h, err := chain.BlockHash(n)
		if err != nil {
			return common.Hash{}
		}
		return h
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	bc := vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     getHash,
		Coinbase:    header.Coinbase,
		BlockNumber: new(big.Int).Set(header.Number),
		Time:        header.Time,
		Difficulty:  new(big.Int).Set(header.Difficulty),
		BaseFee:     baseFee,
		GasLimit:    header.GasLimit,
	}
	if cfg.Spec.IsMerge() {
		random := header.MixDigest
		bc.Random = &random
	}
	if header.ExcessBlobGas != nil {
		bc.BlobBaseFee = eip4844.CalcBlobFee(*header.ExcessBlobGas)
	}
	return bc
}

// buildEVM constructs the vm.EVM this transaction runs against. hooks is
// always attached: it at minimum carries the internal touched-account/
// touched-storage recorder runTransaction needs to build an accurate
// StateDiff, and on the Traced path also chains the caller's own Hooks so
// both observe every sub-call.
func buildEVM(cfg Config, header *types.Header, chain Blockchain, vmdb vm.StateDB, hooks *tracing.Hooks) *vm.EVM {
	vmConfig := vm.Config{Tracer: hooks}
	blockCtx := newBlockContext(cfg, header, chain)
	chainConfig := cfg.ChainConfig()
	return vm.NewEVM(blockCtx, vmdb, chainConfig, vmConfig)
}

// runTransaction applies tx against a fresh vm.EVM built from (cfg, header,
// chain, state) and returns the internal execution result plus the set of
// addresses/storage slots the run touched. The caller (AddTransaction) owns
// snapshot/rollback around this call and maps a non-nil error through
// mapExecError.
func runTransaction(cfg Config, header *types.Header, chain Blockchain, vb vmBackend, gasPool *core.GasPool, tx *types.Transaction, txIndex int, dbg *DebugContext) (execResult, *touchedSet, error) {
	touched := newTouchedSet()
	var external *tracing.Hooks
	if dbg != nil {
		external = dbg.Hooks
	}
	evm := buildEVM(cfg, header, chain, vb.VM(), touched.hooks(external))

	signer := types.MakeSigner(evm.ChainConfig(), header.Number, header.Time)
	msg, err := core.TransactionToMessage(tx, signer, header.BaseFee)
	if err != nil {
		return execResult{}, touched, fmt.Errorf("recover sender: %w", err)
	}

	vb.SetTxContext(tx.Hash(), txIndex)
	evm.Reset(core.NewEVMTxContext(msg), vb.VM())

	result, err := core.ApplyMessage(evm, msg, gasPool)
	if err != nil {
		return execResult{}, touched, err
	}

	status := uint64(types.ReceiptStatusSuccessful)
	if result.Failed() {
		status = types.ReceiptStatusFailed
	}

	var contractAddress *common.Address
	if msg.To == nil && status == types.ReceiptStatusSuccessful {
		addr := crypto.CreateAddress(msg.From, tx.Nonce())
		contractAddress = &addr
	}

	logs := vb.GetLogs(tx.Hash(), header.Number.Uint64())

	return execResult{
		gasUsed:         result.UsedGas,
		status:          status,
		logs:            logs,
		contractAddress: contractAddress,
	}, touched, nil
}
