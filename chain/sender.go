package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TxStatusKind enumerates the status a TransactionSender reports for a
// previously submitted transaction.
type TxStatusKind int

const (
	TxStatusPending TxStatusKind = iota
	TxStatusMined
	TxStatusDropped
)

// TxStatus is the sender's observation of one tracked transaction.
type TxStatus struct {
	Kind  TxStatusKind
	Block uint64 // valid iff Kind == TxStatusMined
}

// RawTransaction is the minimal shape the tracker needs to hand a sender a
// transaction to broadcast.
type RawTransaction struct {
	Nonce     uint64
	Fees      GasFees
	GasLimit  uint64
	ChainID   uint64
	Calldata  []byte
	Recipient common.Address
}

// GasFees has the same shape as uopool.GasFees; the transaction tracker
// works with this type only.
type GasFees struct {
	MaxFeePerGas         *uint256.Int
	MaxPriorityFeePerGas *uint256.Int
}

// SentTxInfo is returned by a successful TransactionSender.SendTransaction.
type SentTxInfo struct {
	Nonce  uint64
	TxHash common.Hash
}

// TxSenderErrorKind distinguishes the one error the tracker must special-case
// (an underpriced replacement) from every other send failure.
type TxSenderErrorKind int

const (
	TxSenderErrorOther TxSenderErrorKind = iota
	TxSenderErrorReplacementUnderpriced
)

// TxSenderError is returned by TransactionSender.SendTransaction on failure.
type TxSenderError struct {
	Kind TxSenderErrorKind
	Err  error
}

func (e *TxSenderError) Error() string { return e.Err.Error() }
func (e *TxSenderError) Unwrap() error { return e.Err }

// AccessListEntry mirrors the EVM access list shape, used here only as the
// expected_storage parameter named in §4.6/§4.4.
type AccessListEntry struct {
	Address     common.Address
	StorageKeys []common.Hash
}

// TransactionSender is the broadcast seam the transaction tracker drives.
type TransactionSender interface {
	Address() common.Address
	SendTransaction(ctx context.Context, tx RawTransaction, expectedStorage []AccessListEntry) (SentTxInfo, error)
	GetTransactionStatus(ctx context.Context, hash common.Hash) (TxStatus, error)
}
