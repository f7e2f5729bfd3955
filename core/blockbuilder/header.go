package blockbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lattice-build/evm-blockbuilder/consensus/misc/eip4844"
)

// daoExtraData is the literal extra_data payload required inside the ten
// block DAO hardfork window.
var daoExtraData = []byte("dao-hard-fork")

const daoForkExtraRange = 9

// elasticityMultiplier and baseFeeChangeDenominator are the EIP-1559
// constants controlling how fast base_fee can move block to block.
const (
	elasticityMultiplier      = 2
	baseFeeChangeDenominator  = 8
)

// BlockOptions carries every caller-supplied override for header
// construction. Every field is optional; a nil/zero field means "derive
// from parent/spec", per §6.1.
type BlockOptions struct {
	Beneficiary           *common.Address
	Timestamp             *uint64
	ExtraData             []byte
	GasLimit              *uint64
	Difficulty            *big.Int
	MixHash               *common.Hash // prevrandao, spec >= Merge
	Nonce                 *types.BlockNonce
	BaseFee               *big.Int
	Withdrawals           []*types.Withdrawal
	ParentBeaconBlockRoot *common.Hash
	Number                *uint64
}

// calcBaseFee implements the EIP-1559 base-fee-per-block update rule,
// mirroring go-ethereum's consensus/misc/eip1559.CalcBaseFee formula.
func calcBaseFee(parent *types.Header) *big.Int {
	if parent.BaseFee == nil {
		return new(big.Int).SetUint64(params_InitialBaseFee)
	}
	parentGasTarget := parent.GasLimit / elasticityMultiplier
	if parent.GasUsed == parentGasTarget {
		return new(big.Int).Set(parent.BaseFee)
	}
	denom := big.NewInt(baseFeeChangeDenominator)
	if parent.GasUsed > parentGasTarget {
		gasUsedDelta := new(big.Int).SetUint64(parent.GasUsed - parentGasTarget)
		x := new(big.Int).Mul(parent.BaseFee, gasUsedDelta)
		y := x.Div(x, new(big.Int).SetUint64(parentGasTarget))
		baseFeeDelta := y.Div(y, denom)
		if baseFeeDelta.Sign() == 0 {
			baseFeeDelta.SetInt64(1)
		}
		return new(big.Int).Add(parent.BaseFee, baseFeeDelta)
	}
	gasUsedDelta := new(big.Int).SetUint64(parentGasTarget - parent.GasUsed)
	x := new(big.Int).Mul(parent.BaseFee, gasUsedDelta)
	y := x.Div(x, new(big.Int).SetUint64(parentGasTarget))
	baseFeeDelta := y.Div(y, denom)
	next := new(big.Int).Sub(parent.BaseFee, baseFeeDelta)
	if next.Sign() < 0 {
		return big.NewInt(0)
	}
	return next
}

// params_InitialBaseFee is the base fee assigned to the first London block,
// when the parent predates EIP-1559 and so carries no BaseFee of its own.
const params_InitialBaseFee = 1_000_000_000

// newHeader derives the in-progress header from (cfg, options, parent). It
// implements steps 2 and 4 of §6.1; the unsupported-hardfork gate (step 1),
// the withdrawals default (step 3) and the DAO check (step 5) are applied by
// New in builder.go, which calls this after validating the spec floor.
func newHeader(cfg Config, parent *types.Header, options BlockOptions) (*types.Header, *uint64) {
	number := parent.Number.Uint64() + 1
	if options.Number != nil {
		number = *options.Number
	}

	var parentGasLimit *uint64
	gasLimit := parent.GasLimit
	if options.GasLimit != nil {
		gasLimit = *options.GasLimit
	} else {
		pgl := parent.GasLimit
		parentGasLimit = &pgl
	}

	beneficiary := common.Address{}
	if options.Beneficiary != nil {
		beneficiary = *options.Beneficiary
	}

	extraData := options.ExtraData

	difficulty := big.NewInt(0)
	if options.Difficulty != nil {
		difficulty = options.Difficulty
	}

	var timestamp uint64
	if options.Timestamp != nil {
		timestamp = *options.Timestamp
	}

	header := &types.Header{
		ParentHash: parent.Hash(),
		UncleHash:  types.EmptyUncleHash,
		Coinbase:   beneficiary,
		Root:       types.EmptyRootHash,
		Difficulty: difficulty,
		Number:     new(big.Int).SetUint64(number),
		GasLimit:   gasLimit,
		GasUsed:    0,
		Time:       timestamp,
		Extra:      extraData,
		MixDigest:  common.Hash{},
	}
	if options.Nonce != nil {
		header.Nonce = *options.Nonce
	}

	if cfg.Spec.IsMerge() && options.MixHash != nil {
		header.MixDigest = *options.MixHash
	}

	if cfg.Spec.IsLondon() {
		baseFee := calcBaseFee(parent)
		if options.BaseFee != nil {
			baseFee = options.BaseFee
		}
		header.BaseFee = baseFee
	}

	if cfg.Spec.IsCancun() {
		var parentExcess, parentUsed uint64
		if parent.ExcessBlobGas != nil {
			parentExcess = *parent.ExcessBlobGas
		}
		if parent.BlobGasUsed != nil {
			parentUsed = *parent.BlobGasUsed
		}
		excess := eip4844.CalcExcessBlobGas(parentExcess, parentUsed)
		gasUsed := uint64(0)
		header.BlobGasUsed = &gasUsed
		header.ExcessBlobGas = &excess
		if options.ParentBeaconBlockRoot != nil {
			header.ParentBeaconRoot = options.ParentBeaconBlockRoot
		} else {
			header.ParentBeaconRoot = &common.Hash{}
		}
	}

	return header, parentGasLimit
}

// ValidateReplayHeader checks header's blob-gas fields against parent using
// go-ethereum's own EIP-4844 header-verification rule
// (eip4844.VerifyEIP4844Header). It is for callers that receive a
// (parent, header) pair from outside this package — replaying a historical
// block, or accepting a header produced by a separate builder instance —
// and want to confirm ExcessBlobGas/BlobGasUsed are internally consistent
// before treating header as trustworthy. A pre-Cancun header (nil
// ExcessBlobGas) is always valid by this check.
func ValidateReplayHeader(parent, header *types.Header) error {
	if header.ExcessBlobGas == nil {
		return nil
	}
	if err := eip4844.VerifyEIP4844Header(parent, header); err != nil {
		return &CustomError{Message: err.Error()}
	}
	return nil
}

// checkDaoExtraData implements step 5 of §6.1. The activation <= number
// comparison must run before the subtraction to avoid an unsigned
// underflow when the chain hasn't reached the fork block yet.
func checkDaoExtraData(number uint64, spec Spec, daoForkBlock *uint64, extraData []byte) error {
	if daoForkBlock == nil || !spec.AtLeast(DAOFork) {
		return nil
	}
	activation := *daoForkBlock
	if activation > number {
		return nil
	}
	if number-activation > daoForkExtraRange {
		return nil
	}
	if string(extraData) != string(daoExtraData) {
		return &DaoHardforkInvalidDataError{BlockNumber: number, ActivationBlock: activation}
	}
	return nil
}
