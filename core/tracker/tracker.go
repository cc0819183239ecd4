// Package tracker implements C6: a per-sender submission state machine that
// assigns nonces, enforces replacement fees, polls chain state for
// inclusion/drops, and surfaces structured updates to a caller.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/aa-bundler/opcore/chain"
	"github.com/aa-bundler/opcore/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// TransactionTracker is C6. It is safe to share a pointer across goroutines,
// but enforces (T3) by refusing concurrent calls: a call made while another
// is in flight fails fast with ErrAlreadyPending instead of blocking.
type TransactionTracker struct {
	mu sync.Mutex

	provider chain.Provider
	sender   chain.TransactionSender
	settings Settings
	metrics  metrics.TrackerMetrics
	log      log.Logger

	nonce        uint64
	transactions []PendingTransaction
	hasDropped   bool
	attemptCount uint64
}

// New constructs a tracker for sender, seeding its nonce from the provider.
func New(ctx context.Context, provider chain.Provider, sender chain.TransactionSender, settings Settings, metricsSink metrics.TrackerMetrics, logger log.Logger) (*TransactionTracker, error) {
	if metricsSink == nil {
		metricsSink = metrics.NoopTrackerMetrics{}
	}
	if logger == nil {
		logger = log.Root()
	}
	nonce, err := provider.GetTransactionCount(ctx, sender.Address())
	if err != nil {
		return nil, err
	}
	return &TransactionTracker{
		provider: provider,
		sender:   sender,
		settings: settings,
		metrics:  metricsSink,
		log:      logger.New("sender", sender.Address()),
		nonce:    nonce,
	}, nil
}

func (t *TransactionTracker) tryLock() error {
	if !t.mu.TryLock() {
		return &TrackerError{Code: ErrAlreadyPending}
	}
	return nil
}

// GetNonceAndRequiredFees returns the tracker's current nonce and, if a
// prior attempt exists and hasn't been marked dropped, the minimum fees a
// replacement must meet.
func (t *TransactionTracker) GetNonceAndRequiredFees() (uint64, *chain.GasFees, error) {
	if err := t.tryLock(); err != nil {
		return 0, nil, err
	}
	defer t.mu.Unlock()

	if t.hasDropped || len(t.transactions) == 0 {
		return t.nonce, nil, nil
	}
	last := t.transactions[len(t.transactions)-1]
	fees := increaseFees(last.Fees, t.settings.ReplacementFeePercentIncrease)
	return t.nonce, &fees, nil
}

func increaseFees(fees chain.GasFees, percent uint64) chain.GasFees {
	return chain.GasFees{
		MaxFeePerGas:         increaseByPercentCeil(fees.MaxFeePerGas, percent),
		MaxPriorityFeePerGas: increaseByPercentCeil(fees.MaxPriorityFeePerGas, percent),
	}
}

// SendTransaction validates tx against the tracker's expected nonce and fee
// floor, broadcasts it, and folds sender-reported errors into a TrackerUpdate
// per the state machine in §4.6.
func (t *TransactionTracker) SendTransaction(ctx context.Context, tx chain.RawTransaction, expectedStorage []chain.AccessListEntry) (SendResult, error) {
	if err := t.tryLock(); err != nil {
		return SendResult{}, err
	}
	defer t.mu.Unlock()

	if tx.Nonce != t.nonce {
		return SendResult{}, &TrackerError{Code: ErrNonceTooLow, GotNonce: tx.Nonce, ExpectedNonce: t.nonce}
	}
	if !t.hasDropped && len(t.transactions) > 0 {
		last := t.transactions[len(t.transactions)-1]
		required := increaseFees(last.Fees, t.settings.ReplacementFeePercentIncrease)
		if tx.Fees.MaxFeePerGas.Cmp(required.MaxFeePerGas) < 0 || tx.Fees.MaxPriorityFeePerGas.Cmp(required.MaxPriorityFeePerGas) < 0 {
			return SendResult{}, &TrackerError{Code: ErrUnderpricedReplacement}
		}
	}

	info, err := t.sender.SendTransaction(ctx, tx, expectedStorage)
	if err != nil {
		var senderErr *chain.TxSenderError
		if asTxSenderError(err, &senderErr) && senderErr.Kind == chain.TxSenderErrorReplacementUnderpriced {
			return SendResult{Kind: SendResultUpdate, Update: &TrackerUpdate{Kind: UpdateReplacementUnderpriced}}, nil
		}

		update, checkErr := t.checkForUpdateNowLocked(ctx)
		if checkErr == nil && update != nil && (update.Kind == UpdateMined || update.Kind == UpdateNonceUsedForOtherTx) {
			return SendResult{Kind: SendResultUpdate, Update: update}, nil
		}
		return SendResult{}, err
	}

	t.transactions = append(t.transactions, PendingTransaction{
		TxHash:        info.TxHash,
		Fees:          tx.Fees,
		AttemptNumber: t.attemptCount,
	})
	t.hasDropped = false
	t.attemptCount++
	t.updateMetricsLocked()
	return SendResult{Kind: SendResultTxHash, TxHash: info.TxHash}, nil
}

func asTxSenderError(err error, target **chain.TxSenderError) bool {
	e, ok := err.(*chain.TxSenderError)
	if !ok {
		return false
	}
	*target = e
	return true
}

// CheckForUpdateNow polls the provider and sender once and returns a
// TrackerUpdate if there is one to report, or nil if there is nothing new.
func (t *TransactionTracker) CheckForUpdateNow(ctx context.Context) (*TrackerUpdate, error) {
	if err := t.tryLock(); err != nil {
		return nil, err
	}
	defer t.mu.Unlock()
	return t.checkForUpdateNowLocked(ctx)
}

func (t *TransactionTracker) checkForUpdateNowLocked(ctx context.Context) (*TrackerUpdate, error) {
	externalNonce, err := t.provider.GetTransactionCount(ctx, t.sender.Address())
	if err != nil {
		return nil, err
	}

	if externalNonce > t.nonce {
		update := t.resolveExternalNonceAdvance(ctx, externalNonce)
		t.nonce = externalNonce
		t.transactions = nil
		t.hasDropped = false
		t.attemptCount = 0
		t.updateMetricsLocked()
		return update, nil
	}

	if t.hasDropped || len(t.transactions) == 0 {
		return nil, nil
	}

	last := t.transactions[len(t.transactions)-1]
	status, err := t.sender.GetTransactionStatus(ctx, last.TxHash)
	if err != nil {
		return nil, err
	}

	switch status.Kind {
	case chain.TxStatusPending:
		return nil, nil
	case chain.TxStatusDropped:
		if t.settings.TreatDroppedAsPending {
			return nil, nil
		}
		return &TrackerUpdate{Kind: UpdateDropped, TxHash: last.TxHash}, nil
	case chain.TxStatusMined:
		gasLimit, gasUsed := t.fetchMinedGasInfo(ctx, last.TxHash)
		update := &TrackerUpdate{
			Kind:        UpdateMined,
			TxHash:      last.TxHash,
			BlockNumber: status.Block,
			GasLimit:    gasLimit,
			GasUsed:     gasUsed,
		}
		t.nonce = t.nonce + 1
		t.transactions = nil
		t.hasDropped = false
		t.attemptCount = 0
		t.updateMetricsLocked()
		return update, nil
	default:
		return nil, nil
	}
}

// resolveExternalNonceAdvance scans attempts in reverse for one the sender
// already reports mined; if none is mined, the caller's nonce was consumed
// by a transaction this tracker never submitted.
func (t *TransactionTracker) resolveExternalNonceAdvance(ctx context.Context, externalNonce uint64) *TrackerUpdate {
	for i := len(t.transactions) - 1; i >= 0; i-- {
		attempt := t.transactions[i]
		status, err := t.sender.GetTransactionStatus(ctx, attempt.TxHash)
		if err != nil {
			continue
		}
		if status.Kind == chain.TxStatusMined {
			gasLimit, gasUsed := t.fetchMinedGasInfo(ctx, attempt.TxHash)
			return &TrackerUpdate{
				Kind:        UpdateMined,
				TxHash:      attempt.TxHash,
				BlockNumber: status.Block,
				GasLimit:    gasLimit,
				GasUsed:     gasUsed,
			}
		}
	}
	return &TrackerUpdate{Kind: UpdateNonceUsedForOtherTx, OldNonce: t.nonce}
}

// fetchMinedGasInfo looks up the transaction and its receipt concurrently,
// mapping missing fields to nil rather than failing the whole update.
func (t *TransactionTracker) fetchMinedGasInfo(ctx context.Context, hash common.Hash) (gasLimit, gasUsed *uint64) {
	g, gctx := errgroup.WithContext(ctx)
	var txInfo *chain.TransactionInfo
	var receipt *chain.ReceiptInfo

	g.Go(func() error {
		info, err := t.provider.GetTransaction(gctx, hash)
		if err != nil {
			t.log.Warn("failed to fetch mined transaction", "hash", hash, "err", err)
			return nil
		}
		txInfo = info
		return nil
	})
	g.Go(func() error {
		r, err := t.provider.GetTransactionReceipt(gctx, hash)
		if err != nil {
			t.log.Warn("failed to fetch mined transaction receipt", "hash", hash, "err", err)
			return nil
		}
		receipt = r
		return nil
	})
	_ = g.Wait()

	if txInfo != nil {
		gl := txInfo.Gas
		gasLimit = &gl
	}
	if receipt != nil {
		gu := receipt.GasUsed
		gasUsed = &gu
	}
	return gasLimit, gasUsed
}

// WaitForUpdate polls CheckForUpdateNow until it reports something, or until
// the chain has advanced MaxBlocksToWaitForMine blocks without one, in which
// case it returns StillPendingAfterWait.
func (t *TransactionTracker) WaitForUpdate(ctx context.Context) (TrackerUpdate, error) {
	startBlock, err := t.provider.GetBlockNumber(ctx)
	if err != nil {
		return TrackerUpdate{}, err
	}

	for {
		update, err := t.CheckForUpdateNow(ctx)
		if err != nil {
			return TrackerUpdate{}, err
		}
		if update != nil {
			return *update, nil
		}

		currentBlock, err := t.provider.GetBlockNumber(ctx)
		if err != nil {
			return TrackerUpdate{}, err
		}
		if currentBlock >= startBlock+t.settings.MaxBlocksToWaitForMine {
			return TrackerUpdate{Kind: UpdateStillPendingAfterWait}, nil
		}

		select {
		case <-ctx.Done():
			return TrackerUpdate{}, ctx.Err()
		case <-time.After(t.settings.PollInterval):
		}
	}
}

func (t *TransactionTracker) updateMetricsLocked() {
	sender := t.sender.Address()
	t.metrics.SetNumPendingTransactions(sender, float64(len(t.transactions)))
	t.metrics.SetNonce(sender, float64(t.nonce))
	t.metrics.SetAttemptCount(sender, float64(t.attemptCount))
	if len(t.transactions) == 0 {
		return
	}
	last := t.transactions[len(t.transactions)-1]
	t.metrics.SetCurrentMaxFeePerGas(sender, float64(last.Fees.MaxFeePerGas.Uint64()))
	t.metrics.SetCurrentMaxPriorityFeePerGas(sender, float64(last.Fees.MaxPriorityFeePerGas.Uint64()))
}
