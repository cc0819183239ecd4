package poolserver

import (
	"context"

	"github.com/aa-bundler/opcore/chain"
	"github.com/aa-bundler/opcore/core/uopool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ReputationStatusKind is the three-valued verdict reputation scoring
// assigns an entity address. Scoring internals are an external collaborator
// per the design's scope boundary; this package only stores and surfaces
// whatever verdict it is told.
type ReputationStatusKind int

const (
	ReputationOk ReputationStatusKind = iota
	ReputationThrottled
	ReputationBanned
)

type ReputationStatus struct {
	Address common.Address
	Status  ReputationStatusKind
}

// StakeStatus is the entity stake lookup result, sourced from an external
// stake-status collaborator (e.g. a contract read) this package does not
// implement.
type StakeStatus struct {
	IsStaked        bool
	Stake           *uint256.Int
	UnstakeDelaySec uint64
}

// EntityUpdateKind distinguishes the two entity-scoped removal operations
// the pool exposes.
type EntityUpdateKind int

const (
	EntityUpdateThrottle EntityUpdateKind = iota
	EntityUpdateRemove
)

// EntityUpdate describes one UpdateEntities request.
type EntityUpdate struct {
	Address common.Address
	Kind    EntityUpdateKind
	Head    uint64 // used by EntityUpdateThrottle
}

// StakeStatusLookup is the external collaborator consulted by GetStakeStatus.
type StakeStatusLookup interface {
	GetStakeStatus(ctx context.Context, addr common.Address) (StakeStatus, error)
}

// Mempool is the consumed interface named in §6: everything the pool server
// dispatches to a single entry point's operation pool.
type Mempool interface {
	EntryPoint() common.Address

	AddOperation(ctx context.Context, op *uopool.PoolOperation) (common.Hash, error)
	BestOperations(max int) []*uopool.PoolOperation
	GetUserOperationByHash(hash common.Hash) (*uopool.PoolOperation, bool)
	RemoveOperations(hashes []common.Hash)
	UpdateEntity(update EntityUpdate) []common.Hash
	ClearState(clearMempool, clearPaymaster bool)
	SetTracking(enabled bool)
	AllOperations() []*uopool.PoolOperation

	SetReputation(status ReputationStatus)
	DumpReputation() []ReputationStatus
	GetReputationStatus(addr common.Address) ReputationStatus
	GetStakeStatus(ctx context.Context, addr common.Address) (StakeStatus, error)

	OnChainUpdate(ctx context.Context, update chain.ChainUpdate)
}

// PoolMempool adapts a *uopool.Pool to the Mempool interface, storing the
// thin reputation ledger and delegating stake lookups to an injected
// collaborator (reputation scoring and stake simulation are themselves out
// of scope per the design's scope boundary -- this adapter just wires the
// plumbing around them).
type PoolMempool struct {
	pool        *uopool.Pool
	entryPoint  common.Address
	stakeLookup StakeStatusLookup
	reputation  map[common.Address]ReputationStatusKind
}

func NewPoolMempool(pool *uopool.Pool, entryPoint common.Address, stakeLookup StakeStatusLookup) *PoolMempool {
	return &PoolMempool{
		pool:        pool,
		entryPoint:  entryPoint,
		stakeLookup: stakeLookup,
		reputation:  make(map[common.Address]ReputationStatusKind),
	}
}

func (m *PoolMempool) EntryPoint() common.Address { return m.entryPoint }

func (m *PoolMempool) AddOperation(_ context.Context, op *uopool.PoolOperation) (common.Hash, error) {
	if err := m.pool.CheckMultipleRolesViolation(op); err != nil {
		return common.Hash{}, err
	}
	return m.pool.AddOperation(op)
}

func (m *PoolMempool) BestOperations(max int) []*uopool.PoolOperation {
	ops := m.pool.BestOperations()
	if max > 0 && len(ops) > max {
		ops = ops[:max]
	}
	return ops
}

func (m *PoolMempool) GetUserOperationByHash(hash common.Hash) (*uopool.PoolOperation, bool) {
	return m.pool.GetOperationByHash(hash)
}

func (m *PoolMempool) RemoveOperations(hashes []common.Hash) {
	for _, h := range hashes {
		m.pool.RemoveOperationByHash(h)
	}
}

func (m *PoolMempool) UpdateEntity(update EntityUpdate) []common.Hash {
	switch update.Kind {
	case EntityUpdateThrottle:
		return m.pool.ThrottleEntity(update.Address, update.Head)
	case EntityUpdateRemove:
		return m.pool.RemoveEntity(update.Address)
	default:
		return nil
	}
}

func (m *PoolMempool) ClearState(clearMempool, clearPaymaster bool) {
	m.pool.Clear(clearMempool, clearPaymaster)
}

func (m *PoolMempool) SetTracking(enabled bool) {
	m.pool.SetTracking(enabled)
}

func (m *PoolMempool) AllOperations() []*uopool.PoolOperation {
	return m.pool.BestOperations()
}

func (m *PoolMempool) SetReputation(status ReputationStatus) {
	m.reputation[status.Address] = status.Status
}

func (m *PoolMempool) DumpReputation() []ReputationStatus {
	out := make([]ReputationStatus, 0, len(m.reputation))
	for addr, status := range m.reputation {
		out = append(out, ReputationStatus{Address: addr, Status: status})
	}
	return out
}

func (m *PoolMempool) GetReputationStatus(addr common.Address) ReputationStatus {
	return ReputationStatus{Address: addr, Status: m.reputation[addr]}
}

func (m *PoolMempool) GetStakeStatus(ctx context.Context, addr common.Address) (StakeStatus, error) {
	if m.stakeLookup == nil {
		return StakeStatus{}, nil
	}
	return m.stakeLookup.GetStakeStatus(ctx, addr)
}

func (m *PoolMempool) OnChainUpdate(ctx context.Context, update chain.ChainUpdate) {
	for _, u := range update.UnminedOps {
		if _, err := m.pool.UnmineOperation(u.Hash, u.ActualCost); err != nil {
			continue
		}
	}
	for _, bu := range update.UnminedBalanceUpdates {
		m.pool.UpdatePaymasterBalanceFromEvent(bu.Paymaster, bu.Amount, !bu.IsAddition)
	}
	for _, mo := range update.MinedOps {
		m.pool.MineOperation(mo.Id, mo.ActualCost, update.LatestBlockNumber)
	}
	for _, bu := range update.BalanceUpdates {
		m.pool.UpdatePaymasterBalanceFromEvent(bu.Paymaster, bu.Amount, bu.IsAddition)
	}
	if update.LatestBlockNumber > update.ReorgDepth {
		m.pool.ForgetMinedOperationsBeforeBlock(update.LatestBlockNumber - update.ReorgDepth)
	}
}
