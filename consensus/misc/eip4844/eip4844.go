// Copyright 2023 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package eip4844 holds the blob-gas constants and fee math this repo's block
// builder needs for the Cancun and Prague/Electra blob schedules. Adapted from
// the teacher's consensus/misc/eip4844 package: the header-verification helper
// is kept for replay callers, and MaxBlobsPerBlock grows a Prague/Electra case
// the teacher (pre-Prague) didn't need.
package eip4844

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

var (
	BlobTxBytesPerFieldElement         uint64 = 32      // Size in bytes of a field element
	BlobTxFieldElementsPerBlob         uint64 = 4096    // Number of field elements stored in a single data blob
	BlobTxHashVersion                  uint64 = 0x01    // Version byte of the commitment hash
	GasPerBlob                         uint64 = 1 << 17 // Gas consumption of a single data blob (== blob byte size)
	BlobTxMinBlobGasprice              uint64 = 1       // Minimum gas price for data blobs
	BlobTxBlobGaspriceUpdateFraction   uint64 = 3338477 // Controls the maximum rate of change for blob gas price
	BlobTxPointEvaluationPrecompileGas uint64 = 50000   // Gas price for the point evaluation precompile.

	// MaxBlobsPerBlockCancun and MaxBlobsPerBlockElectra are the per-block blob
	// count ceilings before and after EIP-7691 (Prague/Electra).
	MaxBlobsPerBlockCancun  uint64 = 6
	MaxBlobsPerBlockElectra uint64 = 9

	BlobTxTargetBlobGasPerBlock = 3 * GasPerBlob                  // Target consumable blob gas for data blobs per block (for 1559-like pricing)
	MaxBlobGasPerBlock          = MaxBlobsPerBlockCancun * GasPerBlob // Maximum consumable blob gas for data blobs per block, pre-Electra

	minBlobGasPrice            = big.NewInt(int64(BlobTxMinBlobGasprice))
	blobGaspriceUpdateFraction = big.NewInt(int64(BlobTxBlobGaspriceUpdateFraction))
)

// MaxBlobsPerBlock returns the per-block blob count ceiling for the given
// fork: Electra raises it from 6 to 9 (EIP-7691).
func MaxBlobsPerBlock(isPrague bool) uint64 {
	if isPrague {
		return MaxBlobsPerBlockElectra
	}
	return MaxBlobsPerBlockCancun
}

// MaxBlobGasPerBlockFor returns GasPerBlob * MaxBlobsPerBlock(isPrague), the
// cap the block builder enforces against header.blob_gas.gas_used.
func MaxBlobGasPerBlockFor(isPrague bool) uint64 {
	return GasPerBlob * MaxBlobsPerBlock(isPrague)
}

// VerifyEIP4844Header verifies that header carries both blob-gas fields, that
// blobGasUsed is a multiple of GasPerBlob within the pre-Electra cap
// MaxBlobGasPerBlock, and that excessBlobGas equals the value derived from
// parent.
func VerifyEIP4844Header(parent, header *types.Header) error {
	// Verify the header is not malformed
	if header.ExcessBlobGas == nil {
		return errors.New("header is missing excessBlobGas")
	}
	if header.BlobGasUsed == nil {
		return errors.New("header is missing blobGasUsed")
	}
	// Verify that the blob gas used remains within reasonable limits.
	if *header.BlobGasUsed > MaxBlobGasPerBlock {
		return fmt.Errorf("blob gas used %d exceeds maximum allowance %d", *header.BlobGasUsed, MaxBlobGasPerBlock)
	}
	if *header.BlobGasUsed%GasPerBlob != 0 {
		return fmt.Errorf("blob gas used %d not a multiple of blob gas per blob %d", header.BlobGasUsed, GasPerBlob)
	}
	// Verify the excessBlobGas is correct based on the parent header
	var (
		parentExcessBlobGas uint64
		parentBlobGasUsed   uint64
	)
	if parent.ExcessBlobGas != nil {
		parentExcessBlobGas = *parent.ExcessBlobGas
		parentBlobGasUsed = *parent.BlobGasUsed
	}
	expectedExcessBlobGas := CalcExcessBlobGas(parentExcessBlobGas, parentBlobGasUsed)
	if *header.ExcessBlobGas != expectedExcessBlobGas {
		return fmt.Errorf("invalid excessBlobGas: have %d, want %d, parent excessBlobGas %d, parent blobDataUsed %d",
			*header.ExcessBlobGas, expectedExcessBlobGas, parentExcessBlobGas, parentBlobGasUsed)
	}
	return nil
}

// CalcExcessBlobGas calculates the excess blob gas after applying the set of
// blobs on top of the excess blob gas.
func CalcExcessBlobGas(parentExcessBlobGas uint64, parentBlobGasUsed uint64) uint64 {
	excessBlobGas := parentExcessBlobGas + parentBlobGasUsed
	if excessBlobGas < BlobTxTargetBlobGasPerBlock {
		return 0
	}
	return excessBlobGas - BlobTxTargetBlobGasPerBlock
}

// CalcBlobFee calculates the blobfee from the header's excess blob gas field.
func CalcBlobFee(excessBlobGas uint64) *big.Int {
	return fakeExponential(minBlobGasPrice, new(big.Int).SetUint64(excessBlobGas), blobGaspriceUpdateFraction)
}

// CalcBlobFeeUint256 is CalcBlobFee for callers already working in uint256,
// e.g. comparing against a balance or fee cap already held as *uint256.Int.
func CalcBlobFeeUint256(excessBlobGas uint64) *uint256.Int {
	fee, overflow := uint256.FromBig(CalcBlobFee(excessBlobGas))
	if overflow {
		panic("blob fee overflowed 256 bits")
	}
	return fee
}

// fakeExponential approximates factor * e ** (numerator / denominator) using
// Taylor expansion.
func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	var (
		output = new(big.Int)
		accum  = new(big.Int).Mul(factor, denominator)
	)
	for i := 1; accum.Sign() > 0; i++ {
		output.Add(output, accum)

		accum.Mul(accum, numerator)
		accum.Div(accum, denominator)
		accum.Div(accum, big.NewInt(int64(i)))
	}
	return output.Div(output, denominator)
}
