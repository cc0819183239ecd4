// Package chain defines the bundler core's consumed view of the underlying
// blockchain: the update feed the pool server fans out, and the provider
// and transaction-sender seams the transaction tracker drives.
package chain

import (
	"github.com/aa-bundler/opcore/core/uopool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BalanceUpdate is a single paymaster deposit/withdraw notification surfaced
// by a chain update.
type BalanceUpdate struct {
	Paymaster common.Address
	Amount    *uint256.Int
	// IsAddition is true for a deposit, false for a withdrawal.
	IsAddition bool
}

// MinedOp identifies a user operation that appeared on-chain, along with the
// actual cost the paymaster (if any) was charged.
type MinedOp struct {
	Id         uopool.UserOpId
	ActualCost *uint256.Int
}

// UnminedOp identifies a previously-mined user operation being rolled back
// by a reorg, by the hash it was filed under in the reorg cache.
type UnminedOp struct {
	Hash       common.Hash
	ActualCost *uint256.Int
}

// ChainUpdate is the unit the pool server's on_chain_update collaborator
// contract drives every mempool with (§4.5).
type ChainUpdate struct {
	LatestBlockHash   common.Hash
	LatestBlockNumber uint64

	MinedOps   []MinedOp
	UnminedOps []UnminedOp

	BalanceUpdates        []BalanceUpdate
	UnminedBalanceUpdates []BalanceUpdate

	ReorgDepth uint64
}

// NewHead is delivered to PoolServer subscribers after every chain update
// has been applied to every mempool.
type NewHead struct {
	BlockHash   common.Hash
	BlockNumber uint64
}
