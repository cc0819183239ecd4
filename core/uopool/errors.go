package uopool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MempoolErrorCode identifies one of the pool's exhaustive error kinds so
// callers can errors.As into the structured value and branch on it instead
// of matching error strings.
type MempoolErrorCode int

const (
	ErrOperationAlreadyKnown MempoolErrorCode = iota
	ErrReplacementUnderpriced
	ErrDiscardedOnInsert
	ErrPaymasterBalanceTooLow
	ErrSenderAddressUsedAsAlternateEntity
	ErrMultipleRolesViolation
	ErrAssociatedStorageIsAlternateSender
	ErrUnknownEntryPoint
	ErrOther
)

// MempoolError is the structured error type returned by every admission and
// lookup operation on OperationPool.
type MempoolError struct {
	Code MempoolErrorCode

	// ReplacementUnderpriced
	CurrentPriorityFee *uint256.Int
	CurrentMaxFee       *uint256.Int

	// SenderAddressUsedAsAlternateEntity / UnknownEntryPoint
	Address common.Address

	// MultipleRolesViolation
	Entity EntityKind

	Err error
}

func (e *MempoolError) Error() string {
	switch e.Code {
	case ErrOperationAlreadyKnown:
		return "operation already known"
	case ErrReplacementUnderpriced:
		return fmt.Sprintf("replacement underpriced: current priority fee %s, current max fee %s", e.CurrentPriorityFee, e.CurrentMaxFee)
	case ErrDiscardedOnInsert:
		return "discarded on insert"
	case ErrPaymasterBalanceTooLow:
		return "paymaster balance too low"
	case ErrSenderAddressUsedAsAlternateEntity:
		return fmt.Sprintf("sender address %s used as alternate entity", e.Address)
	case ErrMultipleRolesViolation:
		return fmt.Sprintf("multiple roles violation for entity %s", e.Entity)
	case ErrAssociatedStorageIsAlternateSender:
		return "associated storage is alternate sender"
	case ErrUnknownEntryPoint:
		return fmt.Sprintf("unknown entry point %s", e.Address)
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "mempool error"
	}
}

func (e *MempoolError) Unwrap() error {
	return e.Err
}
