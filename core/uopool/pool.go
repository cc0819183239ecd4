package uopool

import (
	"sort"

	"github.com/aa-bundler/opcore/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/btree"
	"github.com/holiman/uint256"
)

// Config holds the per-entry-point tunables named in §6.
type Config struct {
	EntryPoint                          common.Address
	ChainID                             uint64
	MaxSizeOfPoolBytes                  uint64
	MinReplacementFeeIncreasePercentage uint64
	ThrottledEntityMempoolCount         uint64
	ThrottledEntityLiveBlocks           uint64
	PaymasterTrackingEnabled            bool
}

type minedKey struct {
	block uint64
	hash  common.Hash
}

func minedKeyLess(a, b minedKey) bool {
	if a.block != b.block {
		return a.block < b.block
	}
	return a.hash.Cmp(b.hash) < 0
}

// Pool is C4: the admission, indexing, ordering, replacement, throttle,
// mining-cache, and expiry engine for one entry point. It is not internally
// synchronized — callers (the PoolServer request loop) are responsible for
// single-threaded access, matching the design's single-reader loop.
type Pool struct {
	config Config
	log    log.Logger
	metricsSink metrics.PoolMetrics

	byHash map[common.Hash]*OrderedPoolOperation
	byId   map[UserOpId]*OrderedPoolOperation
	best   *btree.BTreeG[*OrderedPoolOperation]

	minedByHash          map[common.Hash]*OrderedPoolOperation
	minedAtBlockByHash   map[common.Hash]uint64
	minedHashesByBlock   *btree.BTreeG[minedKey]

	countByAddress map[common.Address]*entityCounter
	submissionId   uint64

	paymasterBalances *paymasterTracker

	poolSize  sizeTracker
	cacheSize sizeTracker
}

// NewPool constructs an empty pool for the given entry point.
func NewPool(config Config, metricsSink metrics.PoolMetrics, logger log.Logger) *Pool {
	if metricsSink == nil {
		metricsSink = metrics.NoopPoolMetrics{}
	}
	if logger == nil {
		logger = log.Root()
	}
	logger = logger.New("entrypoint", config.EntryPoint)

	return &Pool{
		config:             config,
		log:                logger,
		metricsSink:        metricsSink,
		byHash:             make(map[common.Hash]*OrderedPoolOperation),
		byId:               make(map[UserOpId]*OrderedPoolOperation),
		best:               btree.NewG[*OrderedPoolOperation](32, (*OrderedPoolOperation).less),
		minedByHash:        make(map[common.Hash]*OrderedPoolOperation),
		minedAtBlockByHash: make(map[common.Hash]uint64),
		minedHashesByBlock: btree.NewG[minedKey](32, minedKeyLess),
		countByAddress:     make(map[common.Address]*entityCounter),
		paymasterBalances:  newPaymasterTracker(config.PaymasterTrackingEnabled),
	}
}

// increaseByPercentCeil computes x + ceil(x*percent/100), matching the
// replacement-fee arithmetic used throughout the reference implementation.
func increaseByPercentCeil(x *uint256.Int, percent uint64) *uint256.Int {
	num := new(uint256.Int).Mul(x, uint256.NewInt(percent))
	num.Add(num, uint256.NewInt(99))
	increase := new(uint256.Int).Div(num, uint256.NewInt(100))
	return new(uint256.Int).Add(x, increase)
}

// GetMinReplacementFees returns the minimum (priority, max) fee pair that
// would satisfy check_replacement against the given existing fees.
func (p *Pool) GetMinReplacementFees(existing GasFees) GasFees {
	r := p.config.MinReplacementFeeIncreasePercentage
	return GasFees{
		MaxFeePerGas:         increaseByPercentCeil(existing.MaxFeePerGas, r),
		MaxPriorityFeePerGas: increaseByPercentCeil(existing.MaxPriorityFeePerGas, r),
	}
}

// CheckReplacement rejects an operation already known by hash, and -- when
// another operation shares its UserOpId -- enforces the replacement fee gate
// described in §4.4, returning the hash being replaced on success.
func (p *Pool) CheckReplacement(op *PoolOperation) (*common.Hash, error) {
	if _, ok := p.byHash[op.OpHash]; ok {
		return nil, &MempoolError{Code: ErrOperationAlreadyKnown}
	}

	existing, ok := p.byId[op.id()]
	if !ok {
		return nil, nil
	}

	minFees := p.GetMinReplacementFees(existing.Po.Op.Fees)
	if op.Op.Fees.MaxFeePerGas.Cmp(minFees.MaxFeePerGas) < 0 ||
		op.Op.Fees.MaxPriorityFeePerGas.Cmp(minFees.MaxPriorityFeePerGas) < 0 {
		return nil, &MempoolError{
			Code:                ErrReplacementUnderpriced,
			CurrentPriorityFee: existing.Po.Op.Fees.MaxPriorityFeePerGas,
			CurrentMaxFee:       existing.Po.Op.Fees.MaxFeePerGas,
		}
	}

	h := existing.Po.OpHash
	return &h, nil
}

// AddOperation admits op, consulting CheckReplacement first and removing any
// operation it replaces. Returns the new operation's hash, or
// ErrDiscardedOnInsert if op was itself the operation evicted while
// enforcing the size bound.
func (p *Pool) AddOperation(op *PoolOperation) (common.Hash, error) {
	replaced, err := p.CheckReplacement(op)
	if err != nil {
		return common.Hash{}, err
	}
	if replaced != nil {
		p.removeOperationInternal(*replaced, nil)
	}
	return p.addOperationInternal(op, p.nextSubmissionId())
}

func (p *Pool) nextSubmissionId() uint64 {
	id := p.submissionId
	p.submissionId++
	return id
}

func (p *Pool) addOperationInternal(op *PoolOperation, submissionId uint64) (common.Hash, error) {
	if paymaster := paymasterOf(op); paymaster != nil {
		maxCost := maxCostOf(op)
		if err := p.paymasterBalances.addOrUpdateBalance(op.id(), *paymaster, maxCost); err != nil {
			return common.Hash{}, err
		}
	}

	entry := &OrderedPoolOperation{Po: op, SubmissionId: submissionId}
	p.byHash[op.OpHash] = entry
	p.byId[op.id()] = entry
	p.best.ReplaceOrInsert(entry)

	for _, ent := range op.Entities {
		p.counterFor(ent.Address).increment(ent.Kind)
	}
	p.poolSize.add(op.MemSize)

	evicted := p.enforceSize()
	p.updateMetrics()

	for _, h := range evicted {
		if h == op.OpHash {
			return common.Hash{}, &MempoolError{Code: ErrDiscardedOnInsert}
		}
	}
	return op.OpHash, nil
}

func paymasterOf(op *PoolOperation) *common.Address {
	return op.Op.Paymaster
}

// maxCostOf is a placeholder cost function: the pool's own accounting only
// needs a monotone stand-in for "the paymaster's worst-case exposure", which
// simulation (out of scope per §1) is responsible for computing precisely.
// Here it is the fee ceiling the operation declares, scaled by 1 unit of
// gas, i.e. MaxFeePerGas itself -- callers that have a real gas estimate
// should build PoolOperation.MemSize/fees such that this already reflects
// it, since max cost estimation is a simulation concern external to C4.
func maxCostOf(op *PoolOperation) *uint256.Int {
	return op.Op.Fees.MaxFeePerGas.Clone()
}

// enforceSize pops the worst element of best while pool_size exceeds the
// configured bound, returning the evicted hashes.
func (p *Pool) enforceSize() []common.Hash {
	var evicted []common.Hash
	for p.poolSize.exceeds(p.config.MaxSizeOfPoolBytes) {
		worst, ok := p.best.DeleteMax()
		if !ok {
			break
		}
		p.removeIndexed(worst)
		evicted = append(evicted, worst.Po.OpHash)
	}
	return evicted
}

// removeIndexed removes entry from byHash/byId/counters/paymaster/poolSize.
// It does NOT touch best -- callers that obtained entry via best.DeleteMax
// already removed it there; callers removing by hash/id must remove from
// best themselves first.
func (p *Pool) removeIndexed(entry *OrderedPoolOperation) {
	delete(p.byHash, entry.Po.OpHash)
	delete(p.byId, entry.Po.id())

	for _, ent := range entry.Po.Entities {
		p.decrementAddressCount(ent.Address, ent.Kind)
	}
	p.poolSize.sub(entry.Po.MemSize)
	p.paymasterBalances.removeOperation(entry.Po.id())
}

func (p *Pool) counterFor(addr common.Address) *entityCounter {
	c, ok := p.countByAddress[addr]
	if !ok {
		c = &entityCounter{}
		p.countByAddress[addr] = c
	}
	return c
}

// decrementAddressCount decrements the entity count for addr/kind, removing
// the map entry entirely once its total reaches zero (P4).
func (p *Pool) decrementAddressCount(addr common.Address, kind EntityKind) {
	c, ok := p.countByAddress[addr]
	if !ok {
		return
	}
	c.decrement(kind)
	if c.total() == 0 {
		delete(p.countByAddress, addr)
	}
}

// removeOperationInternal removes an operation by hash from the live
// indexes. When blockNumber is non-nil the removed operation is pushed into
// the reorg-mined cache instead of being discarded.
func (p *Pool) removeOperationInternal(hash common.Hash, blockNumber *uint64) *PoolOperation {
	entry, ok := p.byHash[hash]
	if !ok {
		return nil
	}
	p.best.Delete(entry)
	p.removeIndexed(entry)

	if blockNumber != nil {
		p.minedByHash[hash] = entry
		p.minedAtBlockByHash[hash] = *blockNumber
		p.minedHashesByBlock.ReplaceOrInsert(minedKey{block: *blockNumber, hash: hash})
		p.cacheSize.add(entry.Po.MemSize)
	}

	p.updateMetrics()
	return entry.Po
}

// BestOperations returns a snapshot of the best-ordered set, materialized so
// it survives independent of further pool mutation.
func (p *Pool) BestOperations() []*PoolOperation {
	ops := make([]*PoolOperation, 0, p.best.Len())
	p.best.Ascend(func(entry *OrderedPoolOperation) bool {
		ops = append(ops, entry.Po)
		return true
	})
	return ops
}

// GetOperationByHash looks up a live operation.
func (p *Pool) GetOperationByHash(hash common.Hash) (*PoolOperation, bool) {
	entry, ok := p.byHash[hash]
	if !ok {
		return nil, false
	}
	return entry.Po, true
}

// RemoveOperationByHash removes a live operation unconditionally.
func (p *Pool) RemoveOperationByHash(hash common.Hash) *PoolOperation {
	return p.removeOperationInternal(hash, nil)
}

// MineOperation moves a live operation matching id into the reorg-mined
// cache at blockNumber, releasing its paymaster reservation and recording
// its actual on-chain cost. It returns the removed operation, or nil if no
// matching live operation was found.
func (p *Pool) MineOperation(id UserOpId, actualCost *uint256.Int, blockNumber uint64) *PoolOperation {
	entry, ok := p.byId[id]
	if !ok {
		return nil
	}
	if paymaster := paymasterOf(entry.Po); paymaster != nil {
		p.paymasterBalances.updatePaymasterBalanceFromMinedOp(id, *paymaster, actualCost)
	}
	return p.removeOperationInternal(entry.Po.OpHash, &blockNumber)
}

// UnmineOperation reverses MineOperation on reorg: removes hash from the
// mined cache and re-admits it preserving its original submission_id. If the
// mined operation had debited a paymaster, that debit is reversed before the
// (possibly failing) re-admission.
func (p *Pool) UnmineOperation(hash common.Hash, actualCost *uint256.Int) (*PoolOperation, error) {
	entry, ok := p.minedByHash[hash]
	if !ok {
		return nil, nil
	}
	blockNumber := p.minedAtBlockByHash[hash]

	delete(p.minedByHash, hash)
	delete(p.minedAtBlockByHash, hash)
	p.minedHashesByBlock.Delete(minedKey{block: blockNumber, hash: hash})
	p.cacheSize.sub(entry.Po.MemSize)

	if paymaster := paymasterOf(entry.Po); paymaster != nil {
		p.paymasterBalances.unmineActualCost(*paymaster, actualCost)
	}

	_, err := p.addOperationInternal(entry.Po, entry.SubmissionId)
	if err != nil {
		return nil, err
	}
	return entry.Po, nil
}

// ForgetMinedOperationsBeforeBlock drops reorg-cache entries mined strictly
// before blockNumber.
func (p *Pool) ForgetMinedOperationsBeforeBlock(blockNumber uint64) {
	pivot := minedKey{block: blockNumber, hash: common.Hash{}}
	var toDelete []minedKey
	p.minedHashesByBlock.AscendLessThan(pivot, func(k minedKey) bool {
		toDelete = append(toDelete, k)
		return true
	})
	for _, k := range toDelete {
		p.minedHashesByBlock.Delete(k)
		if entry, ok := p.minedByHash[k.hash]; ok {
			p.cacheSize.sub(entry.Po.MemSize)
		}
		delete(p.minedByHash, k.hash)
		delete(p.minedAtBlockByHash, k.hash)
	}
	p.updateMetrics()
}

// RemoveExpired removes every live operation whose ValidUntil < ts, returning
// the (hash, valid_until) pairs removed.
func (p *Pool) RemoveExpired(ts uint64) []ExpiredOp {
	var expired []ExpiredOp
	for hash, entry := range p.byHash {
		if entry.Po.ValidTimeRange.ValidUntil < ts {
			expired = append(expired, ExpiredOp{Hash: hash, ValidUntil: entry.Po.ValidTimeRange.ValidUntil})
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].Hash.Cmp(expired[j].Hash) < 0 })
	for _, e := range expired {
		p.removeOperationInternal(e.Hash, nil)
	}
	return expired
}

// ExpiredOp is one (hash, valid_until) pair removed by RemoveExpired.
type ExpiredOp struct {
	Hash       common.Hash
	ValidUntil uint64
}

// RemoveEntity removes every live operation that declares addr under any
// entity kind, returning the removed hashes.
func (p *Pool) RemoveEntity(addr common.Address) []common.Hash {
	var hashes []common.Hash
	for hash, entry := range p.byHash {
		for _, ent := range entry.Po.Entities {
			if ent.Address == addr {
				hashes = append(hashes, hash)
				break
			}
		}
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Cmp(hashes[j]) < 0 })
	for _, h := range hashes {
		p.removeOperationInternal(h, nil)
	}
	return hashes
}

// ThrottleEntity iterates best in priority order, keeping at most
// ThrottledEntityMempoolCount operations that declare addr and dropping any
// such operation whose SimBlockNumber is older than ThrottledEntityLiveBlocks
// relative to head. Returns the removed hashes.
func (p *Pool) ThrottleEntity(addr common.Address, head uint64) []common.Hash {
	var kept uint64
	var toRemove []common.Hash

	p.best.Ascend(func(entry *OrderedPoolOperation) bool {
		declares := false
		for _, ent := range entry.Po.Entities {
			if ent.Address == addr {
				declares = true
				break
			}
		}
		if !declares {
			return true
		}

		stale := entry.Po.SimBlockNumber+p.config.ThrottledEntityLiveBlocks < head
		if stale || kept >= p.config.ThrottledEntityMempoolCount {
			toRemove = append(toRemove, entry.Po.OpHash)
		} else {
			kept++
		}
		return true
	})

	for _, h := range toRemove {
		p.removeOperationInternal(h, nil)
	}
	return toRemove
}

// CheckMultipleRolesViolation enforces that an operation's sender is never
// simultaneously registered as a non-sender entity elsewhere in the pool,
// and vice versa.
func (p *Pool) CheckMultipleRolesViolation(op *PoolOperation) error {
	if c, ok := p.countByAddress[op.Op.Sender]; ok && c.includesNonSender() {
		return &MempoolError{Code: ErrSenderAddressUsedAsAlternateEntity, Address: op.Op.Sender}
	}
	for _, ent := range op.Entities {
		if ent.Kind == EntitySender {
			continue
		}
		if c, ok := p.countByAddress[ent.Address]; ok && c.get(EntitySender) > 0 {
			return &MempoolError{Code: ErrMultipleRolesViolation, Entity: ent.Kind}
		}
	}
	return nil
}

// AddressSet is the minimal surface this package needs from a set of
// addresses, satisfied by mapset.Set[common.Address].
type AddressSet interface {
	Contains(common.Address) bool
}

// CheckAssociatedStorage rejects an operation when an address it accessed
// during simulation is both (a) a Sender of some other live operation and
// (b) declared by op as a non-sender entity -- i.e. op would read storage
// associated with another sender through one of its own supporting
// contracts.
func (p *Pool) CheckAssociatedStorage(accessed AddressSet, op *PoolOperation) error {
	for addr, c := range p.countByAddress {
		if addr == op.Op.Sender {
			continue
		}
		if c.get(EntitySender) == 0 {
			continue
		}
		if !accessed.Contains(addr) {
			continue
		}
		for _, ent := range op.Entities {
			if ent.Kind != EntitySender && ent.Address == addr {
				return &MempoolError{Code: ErrAssociatedStorageIsAlternateSender}
			}
		}
	}
	return nil
}

// Clear empties the live pool and/or reorg cache, and optionally the
// paymaster ledger.
func (p *Pool) Clear(clearMempool, clearPaymaster bool) {
	if clearMempool {
		p.byHash = make(map[common.Hash]*OrderedPoolOperation)
		p.byId = make(map[UserOpId]*OrderedPoolOperation)
		p.best.Clear(false)
		p.minedByHash = make(map[common.Hash]*OrderedPoolOperation)
		p.minedAtBlockByHash = make(map[common.Hash]uint64)
		p.minedHashesByBlock.Clear(false)
		p.countByAddress = make(map[common.Address]*entityCounter)
		p.poolSize = sizeTracker{}
		p.cacheSize = sizeTracker{}
	}
	if clearPaymaster {
		p.paymasterBalances.clear()
	}
	p.updateMetrics()
}

// SetTracking toggles paymaster balance tracking.
func (p *Pool) SetTracking(enabled bool) {
	p.paymasterBalances.setTracking(enabled)
}

// SetConfirmedBalances replaces confirmed paymaster balances atomically.
func (p *Pool) SetConfirmedBalances(addrs []common.Address, balances []*uint256.Int) {
	p.paymasterBalances.setConfirmedBalances(addrs, balances)
}

// UpdatePaymasterBalanceFromEvent applies a deposit/withdraw notification.
func (p *Pool) UpdatePaymasterBalanceFromEvent(addr common.Address, amount *uint256.Int, isAddition bool) {
	p.paymasterBalances.updatePaymasterBalanceFromEvent(addr, amount, isAddition)
}

// Len reports the number of live operations.
func (p *Pool) Len() int {
	return len(p.byHash)
}

// CacheLen reports the number of mined operations held in the reorg cache.
func (p *Pool) CacheLen() int {
	return len(p.minedByHash)
}

func (p *Pool) updateMetrics() {
	p.metricsSink.SetNumOpsInPool(p.config.EntryPoint, float64(len(p.byHash)))
	p.metricsSink.SetPoolSizeBytes(p.config.EntryPoint, float64(p.poolSize.get()))
	p.metricsSink.SetNumOpsInCache(p.config.EntryPoint, float64(len(p.minedByHash)))
	p.metricsSink.SetCacheSizeBytes(p.config.EntryPoint, float64(p.cacheSize.get()))
}
