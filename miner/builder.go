// Copyright 2022 The go-ethereum Authors
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

// Package miner is the thin orchestration layer that turns an ordered
// transaction list plus payload attributes into core/blockbuilder calls. It
// is adapted from the teacher's miner/worker.go and
// miner/payload_building.go: the payload-attributes shape
// (BuildPayloadArgs -> BuildParams) and the per-transaction
// commit-or-skip-and-continue loop (commitTransactions -> Build) are kept;
// the engine-API payload-id/executable-data encoding, the background
// recommit timer, and the tx-pool lazy-iterator selection are dropped, since
// transaction ordering/fee-market policy and the JSON-RPC/engine-API surface
// are both out of scope here (the caller already orders transactions).
package miner

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lattice-build/evm-blockbuilder/core/blockbuilder"
)

// BuildParams is this package's payload-attributes analogue: everything the
// caller supplies about the block being built, plus the ordered transaction
// list and the reward list that previously lived behind a tx-pool/consensus
// boundary this package doesn't own.
type BuildParams struct {
	Parent                *types.Header
	Beneficiary           common.Address
	Timestamp             uint64
	ExtraData             []byte
	Random                *common.Hash
	Withdrawals           types.Withdrawals
	ParentBeaconBlockRoot *common.Hash
	GasLimit              *uint64
	BaseFee               *big.Int

	// Transactions is the caller-ordered transaction list. This package
	// does not reorder, select, or simulate it; admission is entirely
	// core/blockbuilder's call.
	Transactions types.Transactions

	// Rewards is forwarded verbatim to blockbuilder.Finalize.
	Rewards []blockbuilder.BlockReward
}

// Builder assembles one block at a time from BuildParams against a fixed
// hardfork Config and ancestor-hash source.
type Builder struct {
	cfg   blockbuilder.Config
	chain blockbuilder.Blockchain
}

// NewBuilder returns a Builder for cfg against chain.
func NewBuilder(cfg blockbuilder.Config, chain blockbuilder.Blockchain) *Builder {
	return &Builder{cfg: cfg, chain: chain}
}

// Build constructs a BlockBuilder from params, admits each transaction in
// order, and finalizes with params.Rewards. A transaction AddTransaction
// rejects is logged and skipped rather than aborting the whole build,
// mirroring the teacher's commitTransactions loop continuing past a single
// rejected transaction; the skipped list lets the caller decide whether to
// retry any of them in a later block.
func (b *Builder) Build(state blockbuilder.State, params BuildParams) (*blockbuilder.BuildBlockResult, []error, error) {
	timestamp := params.Timestamp
	bb, err := blockbuilder.New(b.cfg, params.Parent, blockbuilder.BlockOptions{
		Beneficiary:           &params.Beneficiary,
		Timestamp:             &timestamp,
		ExtraData:             params.ExtraData,
		GasLimit:              params.GasLimit,
		MixHash:               params.Random,
		BaseFee:               params.BaseFee,
		Withdrawals:           params.Withdrawals,
		ParentBeaconBlockRoot: params.ParentBeaconBlockRoot,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("miner: construct block: %w", err)
	}

	var skipped []error
	for _, tx := range params.Transactions {
		if _, err := bb.AddTransaction(b.chain, state, tx, nil); err != nil {
			log.Debug("miner: skipping transaction", "hash", tx.Hash(), "err", err)
			skipped = append(skipped, err)
			continue
		}
	}

	result, err := bb.Finalize(state, params.Rewards)
	if err != nil {
		return nil, skipped, fmt.Errorf("miner: finalize: %w", err)
	}
	return result, skipped, nil
}
