package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionInfo is the subset of an on-chain transaction the tracker needs
// to compute a mined attempt's gas usage.
type TransactionInfo struct {
	Gas uint64
}

// ReceiptInfo is the subset of a transaction receipt the tracker needs.
type ReceiptInfo struct {
	GasUsed uint64
}

// Provider is the chain-reader seam the transaction tracker polls. All
// methods are fallible and take a context for cancellation.
type Provider interface {
	GetTransactionCount(ctx context.Context, addr common.Address) (uint64, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetTransaction(ctx context.Context, hash common.Hash) (*TransactionInfo, error)
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (*ReceiptInfo, error)
}
