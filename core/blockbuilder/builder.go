package blockbuilder

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/google/uuid"

	"github.com/lattice-build/evm-blockbuilder/consensus/misc/eip4844"
)

// Block is this package's view of an assembled block: the finalized header
// plus the transactions/receipts/withdrawals that produced it. Ommers is
// always empty; see the TODO in Finalize.
type Block struct {
	Header       *types.Header
	Transactions types.Transactions
	Receipts     []*TransactionReceipt
	Ommers       []*types.Header
	Withdrawals  types.Withdrawals
}

// TypesBlock assembles a *types.Block from b, recomputing the transactions
// and withdrawals tries go-ethereum's own hasher needs (b.Header already
// carries the roots this package computed in Finalize).
func (b *Block) TypesBlock() *types.Block {
	receipts := make([]*types.Receipt, len(b.Receipts))
	for i, r := range b.Receipts {
		receipts[i] = r.Receipt
	}
	body := &types.Body{
		Transactions: b.Transactions,
		Uncles:       b.Ommers,
		Withdrawals:  b.Withdrawals,
	}
	return types.NewBlock(b.Header, body, receipts, trie.NewStackTrie(nil))
}

// BuildBlockResult is what Finalize returns: the assembled Block alongside
// the accumulated StateDiff, since go-ethereum's types.Block does not itself
// carry receipts or a diff.
type BuildBlockResult struct {
	Block     *Block
	StateDiff *StateDiff
}

// BlockReward is one entry of the reward list Finalize applies: typically
// one miner reward, possibly more for pre-Merge uncle rewards.
type BlockReward struct {
	Recipient common.Address
	Amount    *big.Int
}

// BlockBuilder is the state machine described in §6: created once by New,
// mutated only by AddTransaction, consumed by Finalize. It has exclusive
// ownership semantics — callers must not share one instance across
// concurrent mutators.
type BlockBuilder struct {
	id uuid.UUID

	cfg    Config
	header *types.Header

	// parentGasLimit is non-nil when BlockOptions.GasLimit was absent at
	// construction; Finalize restores it onto header.GasLimit so the
	// emitted block matches the parent-derived value regardless of any
	// transient adjustment made mid-build.
	parentGasLimit *uint64

	withdrawals  types.Withdrawals
	transactions types.Transactions
	receipts     []*TransactionReceipt
	stateDiff    *StateDiff
}

// New implements §6.1: it validates the hardfork floor, derives the
// in-progress header from (cfg, parent, options), and applies the DAO
// extradata check.
func New(cfg Config, parent *types.Header, options BlockOptions) (*BlockBuilder, error) {
	if !cfg.Spec.IsByzantium() {
		return nil, &UnsupportedHardforkError{Spec: cfg.Spec}
	}

	header, parentGasLimit := newHeader(cfg, parent, options)

	var withdrawals types.Withdrawals
	switch {
	case options.Withdrawals != nil:
		withdrawals = options.Withdrawals
	case cfg.Spec.IsShanghai():
		withdrawals = types.Withdrawals{}
	default:
		withdrawals = nil
	}
	if cfg.Spec.IsShanghai() {
		var root common.Hash
		if len(withdrawals) == 0 {
			root = types.EmptyWithdrawalsHash
		} else {
			root = types.DeriveSha(withdrawals, trie.NewStackTrie(nil))
		}
		header.WithdrawalsHash = &root
	}

	if err := checkDaoExtraData(header.Number.Uint64(), cfg.Spec, cfg.DAOForkBlock, header.Extra); err != nil {
		return nil, err
	}

	return &BlockBuilder{
		id:             uuid.New(),
		cfg:            cfg,
		header:         header,
		parentGasLimit: parentGasLimit,
		withdrawals:    withdrawals,
		stateDiff:      NewStateDiff(),
	}, nil
}

// GasRemaining is header.gas_limit - header.gas_used.
func (b *BlockBuilder) GasRemaining() uint64 {
	return b.header.GasLimit - b.header.GasUsed
}

// Header exposes the in-progress header for callers that want to inspect it
// before Finalize (e.g. to populate BlockOptions of a child builder).
func (b *BlockBuilder) Header() *types.Header { return b.header }

// AddTransaction implements §6.2: pre-execution admission checks, EVM
// execution against state/chain, and (on success) receipt assembly. On any
// error the builder and state are left exactly as they were before the
// call — a rejected transaction is observationally a no-op.
func (b *BlockBuilder) AddTransaction(chain Blockchain, state State, tx *types.Transaction, dbg *DebugContext) (*TransactionReceipt, error) {
	gasRemaining := b.GasRemaining()
	if tx.Gas() > gasRemaining {
		return nil, &ExceedsBlockGasLimitError{GasLimit: tx.Gas(), GasRemaining: gasRemaining}
	}

	if b.header.BlobGasUsed != nil {
		maxBlobs := eip4844.MaxBlobsPerBlock(b.cfg.Spec.IsPrague())
		blobCap := eip4844.GasPerBlob * maxBlobs
		txBlobGas := tx.BlobGas()
		if *b.header.BlobGasUsed+txBlobGas > blobCap {
			return nil, &ExceedsBlockBlobGasLimitError{BlobGas: txBlobGas, GasUsed: *b.header.BlobGasUsed, Cap: blobCap}
		}
	}

	vb, ok := state.(vmBackend)
	if !ok {
		return nil, &CustomError{Message: "state backend does not implement EVM execution"}
	}

	signer := types.MakeSigner(b.cfg.ChainConfig(), b.header.Number, b.header.Time)
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, &InvalidTransactionError{Inner: err}
	}
	senderAccount, err := state.GetAccount(from)
	if err != nil {
		return nil, &StateError{Err: err}
	}

	vmdb := vb.VM()
	snap := vmdb.Snapshot()

	gasPool := new(core.GasPool).AddGas(gasRemaining)
	txIndex := len(b.transactions)
	result, touched, err := runTransaction(b.cfg, b.header, chain, vb, gasPool, tx, txIndex, dbg)
	if err != nil {
		vmdb.RevertToSnapshot(snap)
		return nil, mapExecError(err, tx.Cost(), senderAccount.Balance)
	}

	log.Debug("admitted transaction", "build_id", b.id, "hash", tx.Hash(), "index", txIndex, "gas_used", result.gasUsed, "status", result.status)

	// The sender and recipient are recorded even when the tracer reports no
	// balance/nonce/code hook for them (e.g. a zero-value call to an EOA
	// that never otherwise mutates state), matching the guarantee the fixed
	// three-address list used to give unconditionally.
	touched.addAddr(from)
	if tx.To() != nil {
		touched.addAddr(*tx.To())
	}
	if result.contractAddress != nil {
		touched.addAddr(*result.contractAddress)
	}

	diff := NewStateDiff()
	for addr := range touched.addrs {
		if err := recordTouchedAccount(diff, state, addr, touched.storage[addr]); err != nil {
			vmdb.RevertToSnapshot(snap)
			return nil, &StateError{Err: err}
		}
	}

	b.stateDiff.ApplyDiff(diff)
	if err := state.Commit(diff); err != nil {
		return nil, &StateError{Err: err}
	}

	b.header.GasUsed += result.gasUsed
	if b.header.BlobGasUsed != nil {
		used := *b.header.BlobGasUsed + tx.BlobGas()
		b.header.BlobGasUsed = &used
	}

	var bloom types.Bloom
	for _, lg := range result.logs {
		foldLogIntoBloom(&bloom, lg)
	}

	receipt := &types.Receipt{
		Type:              tx.Type(),
		CumulativeGasUsed: b.header.GasUsed,
		Bloom:             bloom,
		Logs:              result.logs,
		TxHash:            tx.Hash(),
		GasUsed:           result.gasUsed,
		EffectiveGasPrice: effectiveGasPrice(tx, b.header.BaseFee),
		TransactionIndex:  uint(txIndex),
	}
	if result.contractAddress != nil {
		receipt.ContractAddress = *result.contractAddress
	}
	if b.cfg.Spec.IsByzantium() {
		receipt.Status = result.status
	} else {
		root, err := state.StateRoot()
		if err != nil {
			return nil, &StateError{Err: err}
		}
		receipt.PostState = root.Bytes()
	}

	txReceipt := &TransactionReceipt{Receipt: receipt, From: from, To: tx.To()}

	b.transactions = append(b.transactions, tx)
	b.receipts = append(b.receipts, txReceipt)

	return txReceipt, nil
}

// recordTouchedAccount reads addr's post-execution account info from state,
// plus the current value of every slot in slots, and folds both into diff.
// slots comes from the EVM's own state-event hooks (see touchedSet), so this
// covers storage writes and third-party balance/nonce movement from internal
// calls, not just the transaction's declared sender/recipient.
func recordTouchedAccount(diff *StateDiff, state State, addr common.Address, slots map[common.Hash]struct{}) error {
	info, err := state.GetAccount(addr)
	if err != nil {
		return err
	}
	nonce := info.Nonce
	change := &AccountChange{Balance: info.Balance, Nonce: &nonce}
	if (info.CodeHash != common.Hash{}) && info.CodeHash != types.EmptyCodeHash {
		if code, err := state.GetCode(addr); err == nil && len(code) > 0 {
			change.Code = code
		}
	}
	if len(slots) > 0 {
		change.Storage = make(map[common.Hash]common.Hash, len(slots))
		for slot := range slots {
			val, err := state.GetStorage(addr, slot)
			if err != nil {
				return err
			}
			change.Storage[slot] = val
		}
	}
	diff.ApplyAccountChange(addr, change)
	return nil
}

// Finalize implements §6.3: apply rewards, restore the parent gas limit,
// recompute the logs bloom and receipts trie, settle the state root, default
// the timestamp, and produce the Block.
func (b *BlockBuilder) Finalize(state State, rewards []BlockReward) (*BuildBlockResult, error) {
	for _, reward := range rewards {
		if reward.Amount == nil || reward.Amount.Sign() <= 0 {
			continue
		}
		var postBalance *big.Int
		err := state.ModifyAccount(reward.Recipient, func(acc *AccountInfo) error {
			if acc.Balance == nil {
				acc.Balance = new(big.Int)
			}
			acc.Balance = new(big.Int).Add(acc.Balance, reward.Amount)
			postBalance = acc.Balance
			return nil
		})
		if err != nil {
			return nil, &StateError{Err: err}
		}
		b.stateDiff.ApplyAccountChange(reward.Recipient, &AccountChange{Balance: postBalance})
	}

	if b.parentGasLimit != nil {
		b.header.GasLimit = *b.parentGasLimit
	}

	var bloom types.Bloom
	receiptsRLP := make([]*types.Receipt, len(b.receipts))
	for i, r := range b.receipts {
		for j := range bloom {
			bloom[j] |= r.Bloom[j]
		}
		receiptsRLP[i] = r.Receipt
	}
	b.header.Bloom = bloom
	b.header.ReceiptHash = types.DeriveSha(types.Receipts(receiptsRLP), trie.NewStackTrie(nil))
	b.header.TxHash = types.DeriveSha(b.transactions, trie.NewStackTrie(nil))

	if b.header.Root == types.EmptyRootHash {
		root, err := state.StateRoot()
		if err != nil {
			return nil, &StateError{Err: err}
		}
		b.header.Root = root
	}

	if b.header.Time == 0 {
		b.header.Time = uint64(time.Now().Unix())
	}

	// TODO(ommers): pre-Merge uncle/ommer assembly is not implemented —
	// every block this builder produces has an empty ommers list.
	return &BuildBlockResult{
		Block: &Block{
			Header:       b.header,
			Transactions: b.transactions,
			Receipts:     b.receipts,
			Ommers:       nil,
			Withdrawals:  b.withdrawals,
		},
		StateDiff: b.stateDiff,
	}, nil
}
