package poolserver

import (
	"github.com/aa-bundler/opcore/core/uopool"
	"github.com/ethereum/go-ethereum/common"
)

type requestKind int

const (
	reqGetSupportedEntryPoints requestKind = iota
	reqAddOp
	reqGetOps
	reqGetOpByHash
	reqRemoveOps
	reqUpdateEntities
	reqDebugClearState
	reqAdminSetTracking
	reqDebugDumpMempool
	reqDebugSetReputations
	reqDebugDumpReputation
	reqGetReputationStatus
	reqGetStakeStatus
	reqSubscribeNewHeads
)

// request is the tagged-union mailbox item every PoolServer client call
// becomes; exactly one payload field is meaningful per kind, selected by
// Dispatch. This mirrors the exhaustive request-kind enum in §4.5.
type request struct {
	kind       requestKind
	entryPoint common.Address

	addOp        *uopool.PoolOperation
	opsMax       int
	hash         common.Hash
	hashes       []common.Hash
	entityUpdate EntityUpdate
	clearMempool bool
	clearPaymaster bool
	trackingEnabled bool
	setReputation ReputationStatus
	addr         common.Address

	reply chan response
}

// response is the tagged-union reply every request produces.
type response struct {
	hash           common.Hash
	ops            []*uopool.PoolOperation
	op             *uopool.PoolOperation
	found          bool
	entryPoints    []common.Address
	removedHashes  []common.Hash
	reputations    []ReputationStatus
	reputation     ReputationStatus
	stakeStatus    StakeStatus
	newHeads       <-chan HeadEvent
	unsubscribe    func()
	err            error
}
