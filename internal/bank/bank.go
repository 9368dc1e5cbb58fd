// internal/bank/bank.go
package bank

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	ErrInvalidAmount     = errors.New("bank: amount must be positive")
)

// Bank keeps account balances for marketplace principals and is the
// transfer primitive the ledger engine pays through. Every transfer is
// atomic under the bank lock: either the full amount moves or nothing
// does, and a short source balance fails before any mutation.
type Bank struct {
	mtx      sync.Mutex
	balances map[string]int64
}

func New() *Bank {
	return &Bank{balances: make(map[string]int64)}
}

// Transfer moves amount from one account to the other, exactly once.
func (b *Bank) Transfer(amount int64, from, to string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.balances[from] < amount {
		return fmt.Errorf("%w: account %s has %d, needs %d", ErrInsufficientFunds, from, b.balances[from], amount)
	}

	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

// Deposit credits an account, creating it on first use.
func (b *Bank) Deposit(account string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.balances[account] += amount
	return nil
}

// Withdraw debits an account, failing attributably when the balance is
// short.
func (b *Bank) Withdraw(account string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.balances[account] < amount {
		return fmt.Errorf("%w: account %s has %d, needs %d", ErrInsufficientFunds, account, b.balances[account], amount)
	}

	b.balances[account] -= amount
	return nil
}

// Balance reports the current balance; unknown accounts are zero.
func (b *Bank) Balance(account string) int64 {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.balances[account]
}

// Restore sets an account balance directly, for rebuilding the bank
// from durable storage at startup.
func (b *Bank) Restore(account string, balance int64) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.balances[account] = balance
}

// Accounts returns a copy of every account and balance, for
// persistence snapshots.
func (b *Bank) Accounts() map[string]int64 {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	out := make(map[string]int64, len(b.balances))
	for acct, bal := range b.balances {
		out[acct] = bal
	}
	return out
}
