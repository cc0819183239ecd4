package uopool

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Hasher computes the op_hash fingerprint named in §3: H(op, entry_point,
// chain_id). Protocol-level cryptographic hashing is named as an external
// collaborator in §1, so this is an injected seam, not a fixed algorithm --
// KeccakHasher below is the default/reference implementation.
type Hasher interface {
	Hash(op *UserOperation, entryPoint common.Address, chainID uint64) common.Hash
}

// KeccakHasher hashes the fields named in the data model with Keccak-256,
// the hash function the wider EVM ecosystem uses for object identity.
type KeccakHasher struct{}

func (KeccakHasher) Hash(op *UserOperation, entryPoint common.Address, chainID uint64) common.Hash {
	var nonceBuf, chainBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], op.Nonce)
	binary.BigEndian.PutUint64(chainBuf[:], chainID)

	data := make([][]byte, 0, 8)
	data = append(data, op.Sender.Bytes(), nonceBuf[:], entryPoint.Bytes(), chainBuf[:])
	if op.Fees.MaxFeePerGas != nil {
		data = append(data, op.Fees.MaxFeePerGas.Bytes())
	}
	if op.Fees.MaxPriorityFeePerGas != nil {
		data = append(data, op.Fees.MaxPriorityFeePerGas.Bytes())
	}
	if op.Paymaster != nil {
		data = append(data, op.Paymaster.Bytes())
	}
	if op.Factory != nil {
		data = append(data, op.Factory.Bytes())
	}
	if op.Aggregator != nil {
		data = append(data, op.Aggregator.Bytes())
	}
	return crypto.Keccak256Hash(data...)
}
