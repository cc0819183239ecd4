// Package uopool implements a priced, size-bounded, per-entry-point pool of
// pending user operations: admission control, replacement pricing, entity
// accounting, paymaster balance tracking, and a reorg-tolerant mining cache.
package uopool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EntityKind identifies one of the roles a user operation may declare an
// address under.
type EntityKind int

const (
	EntitySender EntityKind = iota
	EntityFactory
	EntityPaymaster
	EntityAggregator

	numEntityKinds = int(EntityAggregator) + 1
)

func (k EntityKind) String() string {
	switch k {
	case EntitySender:
		return "sender"
	case EntityFactory:
		return "factory"
	case EntityPaymaster:
		return "paymaster"
	case EntityAggregator:
		return "aggregator"
	default:
		return "unknown"
	}
}

// GasFees is the pair of EIP-1559 fee fields a user operation and its
// replacements are priced on. uint256 matches EVM gas-price precision and,
// unlike math/big.Int, cannot represent a negative fee.
type GasFees struct {
	MaxFeePerGas         *uint256.Int
	MaxPriorityFeePerGas *uint256.Int
}

// UserOpId is the (sender, nonce) identity a replacement operation shares
// with the operation it replaces.
type UserOpId struct {
	Sender common.Address
	Nonce  uint64
}

// EntityInfo records one declared (kind, address) pair of a user operation,
// along with whether that entity has a stake on the entry point.
type EntityInfo struct {
	Kind    EntityKind
	Address common.Address
	Staked  bool
}

// ValidTimeRange bounds the block timestamps during which a user operation
// may be included.
type ValidTimeRange struct {
	ValidAfter uint64
	ValidUntil uint64
}

// UserOperation is the client-submitted intent this pool admits, orders, and
// evicts. Fields beyond those named in the specification are opaque to the
// pool and carried only for hashing/broadcast by collaborators.
type UserOperation struct {
	Sender    common.Address
	Nonce     uint64
	Fees      GasFees
	Paymaster *common.Address
	Factory   *common.Address
	Aggregator *common.Address
}

// Id returns the identity this operation's replacements share.
func (op *UserOperation) Id() UserOpId {
	return UserOpId{Sender: op.Sender, Nonce: op.Nonce}
}

// Entities enumerates the (kind, address) pairs this operation declares:
// always a Sender, plus Factory/Paymaster/Aggregator when present.
func (op *UserOperation) Entities(factoryStaked, paymasterStaked, aggregatorStaked bool) []EntityInfo {
	entities := make([]EntityInfo, 0, 4)
	entities = append(entities, EntityInfo{Kind: EntitySender, Address: op.Sender})
	if op.Factory != nil {
		entities = append(entities, EntityInfo{Kind: EntityFactory, Address: *op.Factory, Staked: factoryStaked})
	}
	if op.Paymaster != nil {
		entities = append(entities, EntityInfo{Kind: EntityPaymaster, Address: *op.Paymaster, Staked: paymasterStaked})
	}
	if op.Aggregator != nil {
		entities = append(entities, EntityInfo{Kind: EntityAggregator, Address: *op.Aggregator, Staked: aggregatorStaked})
	}
	return entities
}

// PoolOperation is a UserOperation plus the metadata the pool needs to
// order, throttle, and expire it.
type PoolOperation struct {
	Op             *UserOperation
	OpHash         common.Hash
	ValidTimeRange ValidTimeRange
	SimBlockNumber uint64
	Entities       []EntityInfo
	MemSize        uint64
}

func (po *PoolOperation) id() UserOpId {
	return po.Op.Id()
}

// OrderedPoolOperation is a PoolOperation plus the monotonically assigned
// submission_id that breaks fee ties in favor of the earliest submitter.
type OrderedPoolOperation struct {
	Po           *PoolOperation
	SubmissionId uint64
}

// less implements the best-set ordering: max_fee_per_gas descending, then
// submission_id ascending. It is the single source of truth for both the
// btree.Less contract and any other code comparing orderings directly.
func (a *OrderedPoolOperation) less(b *OrderedPoolOperation) bool {
	cmp := a.Po.Op.Fees.MaxFeePerGas.Cmp(b.Po.Op.Fees.MaxFeePerGas)
	if cmp != 0 {
		return cmp > 0 // descending fee
	}
	return a.SubmissionId < b.SubmissionId // ascending submission id
}
