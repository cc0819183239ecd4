package tracker

import (
	"github.com/aa-bundler/opcore/chain"
	"github.com/ethereum/go-ethereum/common"
)

// PendingTransaction is one submitted-but-not-yet-resolved attempt against
// the tracker's current nonce.
type PendingTransaction struct {
	TxHash        common.Hash
	Fees          chain.GasFees
	AttemptNumber uint64
}

// TrackerUpdateKind enumerates the outcomes check_for_update_now /
// send_transaction can report, per §4.6.
type TrackerUpdateKind int

const (
	UpdateMined TrackerUpdateKind = iota
	UpdateStillPendingAfterWait
	UpdateReplacementUnderpriced
	UpdateNonceUsedForOtherTx
	UpdateDropped
)

// TrackerUpdate is the structured result surfaced to the tracker's caller.
type TrackerUpdate struct {
	Kind TrackerUpdateKind

	// UpdateMined
	TxHash      common.Hash
	BlockNumber uint64
	GasLimit    *uint64
	GasUsed     *uint64

	// UpdateNonceUsedForOtherTx
	OldNonce uint64
}

// SendResultKind distinguishes a successful broadcast (a fresh tx hash) from
// a structured update learned instead of broadcasting.
type SendResultKind int

const (
	SendResultTxHash SendResultKind = iota
	SendResultUpdate
)

// SendResult is returned by TransactionTracker.SendTransaction.
type SendResult struct {
	Kind   SendResultKind
	TxHash common.Hash
	Update *TrackerUpdate
}
