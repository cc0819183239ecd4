// Package poolserver implements C5: a single-goroutine actor that owns every
// entry point's Mempool, serializing concurrent client access onto one
// request channel and fanning out chain updates and new heads in the order
// §4.5/§5 specifies: every mempool's OnChainUpdate runs to completion before
// the new head is broadcast to subscribers.
package poolserver

import (
	"context"
	"fmt"

	"github.com/aa-bundler/opcore/chain"
	"github.com/aa-bundler/opcore/core/uopool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// ErrUnknownEntryPoint is returned when a request names an entry point the
// server has no mempool for.
var ErrUnknownEntryPoint = fmt.Errorf("poolserver: unknown entry point")

// Server is C5's PoolServer: a single consumer goroutine that owns every
// registered Mempool and the NewHeads broadcast feed, reached only through
// its request channel.
type Server struct {
	log      log.Logger
	requests chan request
	updates  chan chain.ChainUpdate
	shutdown chan struct{}
	done     chan struct{}

	mempools map[common.Address]Mempool
	heads    *headFeed
	lastHead chain.NewHead
}

// New constructs a Server over the given mempools, keyed by entry point.
func New(mempools []Mempool, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Root()
	}
	byEntryPoint := make(map[common.Address]Mempool, len(mempools))
	for _, m := range mempools {
		byEntryPoint[m.EntryPoint()] = m
	}
	return &Server{
		log:      logger,
		requests: make(chan request, 64),
		updates:  make(chan chain.ChainUpdate, 4),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		mempools: byEntryPoint,
		heads:    newHeadFeed(),
	}
}

// Run is the actor loop. It blocks until Shutdown is called or ctx is
// cancelled, and must be started in its own goroutine.
func (s *Server) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case update := <-s.updates:
			s.applyChainUpdate(ctx, update)
		case req := <-s.requests:
			s.dispatch(ctx, req)
		}
	}
}

// Shutdown stops the actor loop and waits for it to exit.
func (s *Server) Shutdown() {
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
	<-s.done
}

// PublishChainUpdate enqueues a chain update for the actor loop to apply.
// It blocks only if the update channel is full, which signals the consumer
// has fallen far behind.
func (s *Server) PublishChainUpdate(ctx context.Context, update chain.ChainUpdate) {
	select {
	case s.updates <- update:
	case <-ctx.Done():
	}
}

// applyChainUpdate drives every mempool's OnChainUpdate to completion before
// broadcasting the new head; this order is load-bearing (§4.5/§5) so that a
// subscriber acting on a new head never observes stale pool state.
func (s *Server) applyChainUpdate(ctx context.Context, update chain.ChainUpdate) {
	for _, m := range s.mempools {
		m.OnChainUpdate(ctx, update)
	}
	s.lastHead = chain.NewHead{BlockHash: update.LatestBlockHash, BlockNumber: update.LatestBlockNumber}
	s.heads.publish(s.lastHead)
}

func (s *Server) call(ctx context.Context, req request) response {
	req.reply = make(chan response, 1)
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return response{err: ctx.Err()}
	}
	select {
	case reply := <-req.reply:
		return reply
	case <-ctx.Done():
		return response{err: ctx.Err()}
	}
}

func (s *Server) mempoolFor(entryPoint common.Address) (Mempool, error) {
	m, ok := s.mempools[entryPoint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntryPoint, entryPoint)
	}
	return m, nil
}

// dispatch runs on the actor goroutine and resolves one request. AddOp and
// GetStakeStatus are handed off to background goroutines per §4.5 -- both
// can block on external I/O (simulation, a stake contract read) and must not
// stall the rest of the mailbox while they do.
func (s *Server) dispatch(ctx context.Context, req request) {
	switch req.kind {
	case reqGetSupportedEntryPoints:
		entryPoints := make([]common.Address, 0, len(s.mempools))
		for ep := range s.mempools {
			entryPoints = append(entryPoints, ep)
		}
		req.reply <- response{entryPoints: entryPoints}

	case reqAddOp:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		go func() {
			hash, err := m.AddOperation(ctx, req.addOp)
			req.reply <- response{hash: hash, err: err}
		}()

	case reqGetOps:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		req.reply <- response{ops: m.BestOperations(req.opsMax)}

	case reqGetOpByHash:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		op, found := m.GetUserOperationByHash(req.hash)
		req.reply <- response{op: op, found: found}

	case reqRemoveOps:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		m.RemoveOperations(req.hashes)
		req.reply <- response{}

	case reqUpdateEntities:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		req.reply <- response{removedHashes: m.UpdateEntity(req.entityUpdate)}

	case reqDebugClearState:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		m.ClearState(req.clearMempool, req.clearPaymaster)
		req.reply <- response{}

	case reqAdminSetTracking:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		m.SetTracking(req.trackingEnabled)
		req.reply <- response{}

	case reqDebugDumpMempool:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		req.reply <- response{ops: m.AllOperations()}

	case reqDebugSetReputations:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		m.SetReputation(req.setReputation)
		req.reply <- response{}

	case reqDebugDumpReputation:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		req.reply <- response{reputations: m.DumpReputation()}

	case reqGetReputationStatus:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		req.reply <- response{reputation: m.GetReputationStatus(req.addr)}

	case reqGetStakeStatus:
		m, err := s.mempoolFor(req.entryPoint)
		if err != nil {
			req.reply <- response{err: err}
			return
		}
		go func() {
			status, err := m.GetStakeStatus(ctx, req.addr)
			req.reply <- response{stakeStatus: status, err: err}
		}()

	case reqSubscribeNewHeads:
		ch, unsubscribe := s.heads.subscribe()
		req.reply <- response{newHeads: ch, unsubscribe: unsubscribe}

	default:
		req.reply <- response{err: fmt.Errorf("poolserver: unhandled request kind %d", req.kind)}
	}
}

// --- client-facing methods: each builds a request and calls the actor. ---

func (s *Server) GetSupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	resp := s.call(ctx, request{kind: reqGetSupportedEntryPoints})
	return resp.entryPoints, resp.err
}

func (s *Server) AddOp(ctx context.Context, entryPoint common.Address, op *uopool.PoolOperation) (common.Hash, error) {
	resp := s.call(ctx, request{kind: reqAddOp, entryPoint: entryPoint, addOp: op})
	return resp.hash, resp.err
}

func (s *Server) GetOps(ctx context.Context, entryPoint common.Address, max int) ([]*uopool.PoolOperation, error) {
	resp := s.call(ctx, request{kind: reqGetOps, entryPoint: entryPoint, opsMax: max})
	return resp.ops, resp.err
}

func (s *Server) GetOpByHash(ctx context.Context, entryPoint common.Address, hash common.Hash) (*uopool.PoolOperation, bool, error) {
	resp := s.call(ctx, request{kind: reqGetOpByHash, entryPoint: entryPoint, hash: hash})
	return resp.op, resp.found, resp.err
}

func (s *Server) RemoveOps(ctx context.Context, entryPoint common.Address, hashes []common.Hash) error {
	resp := s.call(ctx, request{kind: reqRemoveOps, entryPoint: entryPoint, hashes: hashes})
	return resp.err
}

func (s *Server) UpdateEntities(ctx context.Context, entryPoint common.Address, update EntityUpdate) ([]common.Hash, error) {
	resp := s.call(ctx, request{kind: reqUpdateEntities, entryPoint: entryPoint, entityUpdate: update})
	return resp.removedHashes, resp.err
}

func (s *Server) DebugClearState(ctx context.Context, entryPoint common.Address, clearMempool, clearPaymaster bool) error {
	resp := s.call(ctx, request{kind: reqDebugClearState, entryPoint: entryPoint, clearMempool: clearMempool, clearPaymaster: clearPaymaster})
	return resp.err
}

func (s *Server) AdminSetTracking(ctx context.Context, entryPoint common.Address, enabled bool) error {
	resp := s.call(ctx, request{kind: reqAdminSetTracking, entryPoint: entryPoint, trackingEnabled: enabled})
	return resp.err
}

func (s *Server) DebugDumpMempool(ctx context.Context, entryPoint common.Address) ([]*uopool.PoolOperation, error) {
	resp := s.call(ctx, request{kind: reqDebugDumpMempool, entryPoint: entryPoint})
	return resp.ops, resp.err
}

func (s *Server) DebugSetReputations(ctx context.Context, entryPoint common.Address, status ReputationStatus) error {
	resp := s.call(ctx, request{kind: reqDebugSetReputations, entryPoint: entryPoint, setReputation: status})
	return resp.err
}

func (s *Server) DebugDumpReputation(ctx context.Context, entryPoint common.Address) ([]ReputationStatus, error) {
	resp := s.call(ctx, request{kind: reqDebugDumpReputation, entryPoint: entryPoint})
	return resp.reputations, resp.err
}

func (s *Server) GetReputationStatus(ctx context.Context, entryPoint common.Address, addr common.Address) (ReputationStatus, error) {
	resp := s.call(ctx, request{kind: reqGetReputationStatus, entryPoint: entryPoint, addr: addr})
	return resp.reputation, resp.err
}

func (s *Server) GetStakeStatus(ctx context.Context, entryPoint common.Address, addr common.Address) (StakeStatus, error) {
	resp := s.call(ctx, request{kind: reqGetStakeStatus, entryPoint: entryPoint, addr: addr})
	return resp.stakeStatus, resp.err
}

// SubscribeNewHeads returns a channel of HeadEvents and an unsubscribe
// function the caller must invoke when done listening.
func (s *Server) SubscribeNewHeads(ctx context.Context) (<-chan HeadEvent, func(), error) {
	resp := s.call(ctx, request{kind: reqSubscribeNewHeads})
	return resp.newHeads, resp.unsubscribe, resp.err
}

// Status reports the server's health: OK iff GetSupportedEntryPoints
// succeeds, matching the derived-health-check supplement in §12.
func (s *Server) Status(ctx context.Context) error {
	_, err := s.GetSupportedEntryPoints(ctx)
	return err
}
