package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/aa-bundler/opcore/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// fakeProvider and fakeSender are hand-written test doubles over the
// Provider/TransactionSender seams; each test configures their canned
// responses directly rather than via a generated mocking framework, since
// the scripted sequences below are simpler to express as plain state.
type fakeProvider struct {
	nonce        uint64
	blockNumbers []uint64
	blockIdx     int
	txs          map[common.Hash]*chain.TransactionInfo
	receipts     map[common.Hash]*chain.ReceiptInfo
}

func (p *fakeProvider) GetTransactionCount(context.Context, common.Address) (uint64, error) {
	return p.nonce, nil
}

func (p *fakeProvider) GetBlockNumber(context.Context) (uint64, error) {
	if p.blockIdx >= len(p.blockNumbers) {
		return p.blockNumbers[len(p.blockNumbers)-1], nil
	}
	bn := p.blockNumbers[p.blockIdx]
	p.blockIdx++
	return bn, nil
}

func (p *fakeProvider) GetTransaction(_ context.Context, hash common.Hash) (*chain.TransactionInfo, error) {
	return p.txs[hash], nil
}

func (p *fakeProvider) GetTransactionReceipt(_ context.Context, hash common.Hash) (*chain.ReceiptInfo, error) {
	return p.receipts[hash], nil
}

type fakeSender struct {
	addr     common.Address
	statuses map[common.Hash]chain.TxStatus
	nextHash common.Hash
}

func (s *fakeSender) Address() common.Address { return s.addr }

func (s *fakeSender) SendTransaction(context.Context, chain.RawTransaction, []chain.AccessListEntry) (chain.SentTxInfo, error) {
	return chain.SentTxInfo{Nonce: 0, TxHash: s.nextHash}, nil
}

func (s *fakeSender) GetTransactionStatus(_ context.Context, hash common.Hash) (chain.TxStatus, error) {
	if st, ok := s.statuses[hash]; ok {
		return st, nil
	}
	return chain.TxStatus{Kind: chain.TxStatusPending}, nil
}

func fees(max, prio uint64) chain.GasFees {
	return chain.GasFees{MaxFeePerGas: uint256.NewInt(max), MaxPriorityFeePerGas: uint256.NewInt(prio)}
}

// Scenario 5: nonce advanced externally with no locally-mined attempt.
func TestCheckForUpdateNowNonceAdvanced(t *testing.T) {
	sender := common.HexToAddress("0x1")
	txHash := common.HexToHash("0xaa")

	provider := &fakeProvider{nonce: 0, blockNumbers: []uint64{1}}
	snd := &fakeSender{addr: sender, statuses: map[common.Hash]chain.TxStatus{
		txHash: {Kind: chain.TxStatusPending},
	}}

	tr, err := New(context.Background(), provider, snd, DefaultSettings(), nil, nil)
	require.NoError(t, err)

	tr.mu.Lock()
	tr.transactions = []PendingTransaction{{TxHash: txHash, Fees: fees(100, 10)}}
	tr.mu.Unlock()

	provider.nonce = 1
	update, err := tr.CheckForUpdateNow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, update)
	require.Equal(t, UpdateNonceUsedForOtherTx, update.Kind)
	require.Equal(t, uint64(0), update.OldNonce)

	tr.mu.Lock()
	require.Equal(t, uint64(1), tr.nonce)
	require.Empty(t, tr.transactions)
	tr.mu.Unlock()
}

// Scenario 6: waited too long without a mine.
func TestWaitForUpdateTimesOut(t *testing.T) {
	sender := common.HexToAddress("0x1")
	txHash := common.HexToHash("0xaa")

	provider := &fakeProvider{nonce: 0, blockNumbers: []uint64{1, 2, 3, 4}}
	snd := &fakeSender{addr: sender, statuses: map[common.Hash]chain.TxStatus{
		txHash: {Kind: chain.TxStatusPending},
	}}

	settings := DefaultSettings()
	settings.PollInterval = time.Millisecond
	settings.MaxBlocksToWaitForMine = 3

	tr, err := New(context.Background(), provider, snd, settings, nil, nil)
	require.NoError(t, err)
	tr.mu.Lock()
	tr.transactions = []PendingTransaction{{TxHash: txHash, Fees: fees(100, 10)}}
	tr.mu.Unlock()

	update, err := tr.WaitForUpdate(context.Background())
	require.NoError(t, err)
	require.Equal(t, UpdateStillPendingAfterWait, update.Kind)
}

// Scenario 7: dropped-as-pending flag.
func TestDroppedStatusFlag(t *testing.T) {
	sender := common.HexToAddress("0x1")
	txHash := common.HexToHash("0xaa")

	newTracker := func(treatDroppedAsPending bool) *TransactionTracker {
		provider := &fakeProvider{nonce: 0, blockNumbers: []uint64{1}}
		snd := &fakeSender{addr: sender, statuses: map[common.Hash]chain.TxStatus{
			txHash: {Kind: chain.TxStatusDropped},
		}}
		settings := DefaultSettings()
		settings.TreatDroppedAsPending = treatDroppedAsPending
		tr, err := New(context.Background(), provider, snd, settings, nil, nil)
		require.NoError(t, err)
		tr.mu.Lock()
		tr.transactions = []PendingTransaction{{TxHash: txHash, Fees: fees(100, 10)}}
		tr.mu.Unlock()
		return tr
	}

	pending := newTracker(true)
	update, err := pending.CheckForUpdateNow(context.Background())
	require.NoError(t, err)
	require.Nil(t, update)

	notPending := newTracker(false)
	update, err = notPending.CheckForUpdateNow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, update)
	require.Equal(t, UpdateDropped, update.Kind)

	notPending.mu.Lock()
	require.Len(t, notPending.transactions, 1)
	notPending.mu.Unlock()
}

func TestMinedResetsNonceAndAttempts(t *testing.T) {
	sender := common.HexToAddress("0x1")
	txHash := common.HexToHash("0xaa")

	provider := &fakeProvider{
		nonce:        0,
		blockNumbers: []uint64{10},
		txs:          map[common.Hash]*chain.TransactionInfo{txHash: {Gas: 100000}},
		receipts:     map[common.Hash]*chain.ReceiptInfo{txHash: {GasUsed: 84000}},
	}
	snd := &fakeSender{addr: sender, statuses: map[common.Hash]chain.TxStatus{
		txHash: {Kind: chain.TxStatusMined, Block: 10},
	}}

	tr, err := New(context.Background(), provider, snd, DefaultSettings(), nil, nil)
	require.NoError(t, err)
	tr.mu.Lock()
	tr.transactions = []PendingTransaction{{TxHash: txHash, Fees: fees(100, 10)}}
	tr.attemptCount = 1
	tr.mu.Unlock()

	update, err := tr.CheckForUpdateNow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, update)
	require.Equal(t, UpdateMined, update.Kind)
	require.NotNil(t, update.GasLimit)
	require.Equal(t, uint64(100000), *update.GasLimit)
	require.NotNil(t, update.GasUsed)
	require.Equal(t, uint64(84000), *update.GasUsed)

	tr.mu.Lock()
	require.Equal(t, uint64(1), tr.nonce)
	require.Empty(t, tr.transactions)
	require.Equal(t, uint64(0), tr.attemptCount)
	tr.mu.Unlock()
}

func TestSingleCallerInvariant(t *testing.T) {
	sender := common.HexToAddress("0x1")
	provider := &fakeProvider{nonce: 0, blockNumbers: []uint64{1}}
	snd := &fakeSender{addr: sender}

	tr, err := New(context.Background(), provider, snd, DefaultSettings(), nil, nil)
	require.NoError(t, err)

	tr.mu.Lock()
	_, _, err = tr.GetNonceAndRequiredFees()
	tr.mu.Unlock()
	require.Error(t, err)
	var trackerErr *TrackerError
	require.ErrorAs(t, err, &trackerErr)
	require.Equal(t, ErrAlreadyPending, trackerErr.Code)
}
