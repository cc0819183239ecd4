package uopool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// paymasterState is the confirmed/pending-debit ledger for one paymaster
// address. available = confirmed - pendingDebit.
type paymasterState struct {
	confirmedBalance *uint256.Int
	pendingDebit     *uint256.Int
}

func newPaymasterState() *paymasterState {
	return &paymasterState{
		confirmedBalance: uint256.NewInt(0),
		pendingDebit:     uint256.NewInt(0),
	}
}

func (s *paymasterState) available() *uint256.Int {
	if s.pendingDebit.Cmp(s.confirmedBalance) >= 0 {
		return uint256.NewInt(0)
	}
	avail := new(uint256.Int).Sub(s.confirmedBalance, s.pendingDebit)
	return avail
}

// paymasterMeta records what a single pool operation reserved against its
// paymaster, so unmine/removal can roll the reservation back precisely.
type paymasterMeta struct {
	paymaster common.Address
	maxCost   *uint256.Int
}

// paymasterTracker is C3: the confirmed + pending-debit balance ledger
// keyed by paymaster address, with a toggle that disables all admission
// checks and ledger mutation when tracking is off.
type paymasterTracker struct {
	enabled   bool
	balances  map[common.Address]*paymasterState
	reserved  map[UserOpId]*paymasterMeta
}

func newPaymasterTracker(enabled bool) *paymasterTracker {
	return &paymasterTracker{
		enabled:  enabled,
		balances: make(map[common.Address]*paymasterState),
		reserved: make(map[UserOpId]*paymasterMeta),
	}
}

func (t *paymasterTracker) setTracking(enabled bool) {
	t.enabled = enabled
}

func (t *paymasterTracker) stateFor(addr common.Address) *paymasterState {
	st, ok := t.balances[addr]
	if !ok {
		st = newPaymasterState()
		t.balances[addr] = st
	}
	return st
}

// setConfirmedBalances atomically replaces confirmed balances for the given
// addresses; pending debits are untouched.
func (t *paymasterTracker) setConfirmedBalances(addrs []common.Address, balances []*uint256.Int) {
	for i, addr := range addrs {
		t.stateFor(addr).confirmedBalance = balances[i].Clone()
	}
}

// exists reports whether tracking is enabled and the paymaster has a known
// balance entry.
func (t *paymasterTracker) exists(addr common.Address) bool {
	if !t.enabled {
		return false
	}
	_, ok := t.balances[addr]
	return ok
}

// addOrUpdateBalance reserves pendingDebit += maxCost for id against
// paymaster, rolling back any existing reservation for id first (the
// replacement case). Fails with ErrPaymasterBalanceTooLow if the new
// reservation would drive available negative.
func (t *paymasterTracker) addOrUpdateBalance(id UserOpId, paymaster common.Address, maxCost *uint256.Int) error {
	if !t.enabled {
		return nil
	}

	if prev, ok := t.reserved[id]; ok {
		t.releaseLocked(prev)
		delete(t.reserved, id)
	}

	st := t.stateFor(paymaster)
	projected := new(uint256.Int).Add(st.pendingDebit, maxCost)
	if projected.Cmp(st.confirmedBalance) > 0 {
		return &MempoolError{Code: ErrPaymasterBalanceTooLow}
	}
	st.pendingDebit = projected
	t.reserved[id] = &paymasterMeta{paymaster: paymaster, maxCost: maxCost.Clone()}
	return nil
}

func (t *paymasterTracker) releaseLocked(meta *paymasterMeta) {
	st := t.stateFor(meta.paymaster)
	if st.pendingDebit.Cmp(meta.maxCost) < 0 {
		st.pendingDebit = uint256.NewInt(0)
		return
	}
	st.pendingDebit = new(uint256.Int).Sub(st.pendingDebit, meta.maxCost)
}

// removeOperation releases id's reservation, if any.
func (t *paymasterTracker) removeOperation(id UserOpId) {
	if !t.enabled {
		return
	}
	if meta, ok := t.reserved[id]; ok {
		t.releaseLocked(meta)
		delete(t.reserved, id)
	}
}

// updatePaymasterBalanceFromMinedOp decreases confirmed balance by the
// operation's actual cost and releases its pending reservation.
func (t *paymasterTracker) updatePaymasterBalanceFromMinedOp(id UserOpId, paymaster common.Address, actualCost *uint256.Int) {
	if !t.enabled {
		return
	}
	if meta, ok := t.reserved[id]; ok {
		t.releaseLocked(meta)
		delete(t.reserved, id)
	}
	st := t.stateFor(paymaster)
	if st.confirmedBalance.Cmp(actualCost) < 0 {
		st.confirmedBalance = uint256.NewInt(0)
		return
	}
	st.confirmedBalance = new(uint256.Int).Sub(st.confirmedBalance, actualCost)
}

// unmineActualCost reverses a prior mined debit on reorg.
func (t *paymasterTracker) unmineActualCost(addr common.Address, actualCost *uint256.Int) {
	if !t.enabled {
		return
	}
	st := t.stateFor(addr)
	st.confirmedBalance = new(uint256.Int).Add(st.confirmedBalance, actualCost)
}

// updatePaymasterBalanceFromEvent credits (isAddition) or debits confirmed
// balance on a deposit/withdraw notification. To invert an event on un-mine,
// the caller passes the event's isAddition negated.
func (t *paymasterTracker) updatePaymasterBalanceFromEvent(addr common.Address, amount *uint256.Int, isAddition bool) {
	if !t.enabled {
		return
	}
	st := t.stateFor(addr)
	if isAddition {
		st.confirmedBalance = new(uint256.Int).Add(st.confirmedBalance, amount)
		return
	}
	if st.confirmedBalance.Cmp(amount) < 0 {
		st.confirmedBalance = uint256.NewInt(0)
		return
	}
	st.confirmedBalance = new(uint256.Int).Sub(st.confirmedBalance, amount)
}

func (t *paymasterTracker) clear() {
	t.balances = make(map[common.Address]*paymasterState)
	t.reserved = make(map[UserOpId]*paymasterMeta)
}
