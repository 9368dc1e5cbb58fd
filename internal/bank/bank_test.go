// internal/bank/bank_test.go
package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositAndBalance(t *testing.T) {
	b := New()
	assert.Equal(t, int64(0), b.Balance("alice"))

	require.NoError(t, b.Deposit("alice", 500))
	assert.Equal(t, int64(500), b.Balance("alice"))
}

func TestTransferMovesValueExactlyOnce(t *testing.T) {
	b := New()
	require.NoError(t, b.Deposit("alice", 300))

	require.NoError(t, b.Transfer(200, "alice", "bob"))
	assert.Equal(t, int64(100), b.Balance("alice"))
	assert.Equal(t, int64(200), b.Balance("bob"))
}

func TestTransferInsufficientFunds(t *testing.T) {
	b := New()
	require.NoError(t, b.Deposit("alice", 100))

	err := b.Transfer(101, "alice", "bob")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing moved.
	assert.Equal(t, int64(100), b.Balance("alice"))
	assert.Equal(t, int64(0), b.Balance("bob"))
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.Transfer(0, "alice", "bob"), ErrInvalidAmount)
	assert.ErrorIs(t, b.Transfer(-5, "alice", "bob"), ErrInvalidAmount)
}

func TestWithdraw(t *testing.T) {
	b := New()
	require.NoError(t, b.Deposit("alice", 100))

	require.NoError(t, b.Withdraw("alice", 60))
	assert.Equal(t, int64(40), b.Balance("alice"))

	assert.ErrorIs(t, b.Withdraw("alice", 41), ErrInsufficientFunds)
}

func TestAccountsSnapshotIsACopy(t *testing.T) {
	b := New()
	require.NoError(t, b.Deposit("alice", 100))

	accounts := b.Accounts()
	accounts["alice"] = 0

	assert.Equal(t, int64(100), b.Balance("alice"))
}
