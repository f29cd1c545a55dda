package points

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-settlement/internal/verifone"
)

type stubLookup struct {
	mu       sync.Mutex
	balances map[string]verifone.Balance
	failing  map[string]bool
	calls    []string
}

func (s *stubLookup) GetCustomerPoints(_ context.Context, phone string) (verifone.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, phone)
	if s.failing[phone] {
		return verifone.Balance{}, errors.New("loyalty service unavailable")
	}
	return s.balances[phone], nil
}

func TestBatchSyncAllUsers(t *testing.T) {
	ledger, db := newTestLedger(t)

	changed := createUser(t, db, "0501", "10")
	same := createUser(t, db, "0502", "25")
	guest := createUser(t, db, "0503", "0")
	broken := createUser(t, db, "0504", "7")
	last := createUser(t, db, "0505", "0")
	createUser(t, db, "", "99")

	lookup := &stubLookup{
		balances: map[string]verifone.Balance{
			"0501": {IsMember: true, CreditPoints: d("42")},
			"0502": {IsMember: true, CreditPoints: d("25")},
			"0503": {IsMember: false},
			"0505": {IsMember: true, CreditPoints: d("3")},
		},
		failing: map[string]bool{"0504": true},
	}

	summary, err := ledger.BatchSyncAllUsers(context.Background(), lookup, BatchOptions{BatchSize: 2, Concurrency: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.NotMembers)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, broken.ID, summary.Failed[0].UserID)
	assert.Equal(t, last.ID, summary.LastUserID)
	assert.True(t, summary.Exhausted)
	assert.Len(t, lookup.calls, 5)

	assert.Equal(t, "42", balanceOf(t, db, changed.ID).String())
	assert.Equal(t, "25", balanceOf(t, db, same.ID).String())
	assert.Equal(t, "0", balanceOf(t, db, guest.ID).String())
	assert.Equal(t, "7", balanceOf(t, db, broken.ID).String())
	assert.Equal(t, "3", balanceOf(t, db, last.ID).String())
}

func TestBatchSyncAllUsers_MaxBatches(t *testing.T) {
	ledger, db := newTestLedger(t)
	balances := map[string]verifone.Balance{}
	for i := 0; i < 5; i++ {
		phone := fmt.Sprintf("050%d", i)
		createUser(t, db, phone, "0")
		balances[phone] = verifone.Balance{IsMember: true, CreditPoints: d("1")}
	}

	summary, err := ledger.BatchSyncAllUsers(context.Background(), &stubLookup{balances: balances}, BatchOptions{BatchSize: 2, MaxBatches: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 2, summary.Processed)
	assert.False(t, summary.Exhausted)
}

func TestBatchSyncAllUsers_ResumesAfterCursor(t *testing.T) {
	ledger, db := newTestLedger(t)
	balances := map[string]verifone.Balance{}
	var users []int64
	for i := 0; i < 4; i++ {
		phone := fmt.Sprintf("050%d", i)
		users = append(users, createUser(t, db, phone, "0").ID)
		balances[phone] = verifone.Balance{IsMember: true, CreditPoints: d("1")}
	}
	lookup := &stubLookup{balances: balances}
	opts := BatchOptions{BatchSize: 2, MaxBatches: 1}

	first, err := ledger.BatchSyncAllUsers(context.Background(), lookup, opts)
	require.NoError(t, err)
	assert.Equal(t, users[1], first.LastUserID)
	assert.False(t, first.Exhausted)

	opts.StartAfter = first.LastUserID
	second, err := ledger.BatchSyncAllUsers(context.Background(), lookup, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Processed)
	assert.Equal(t, users[3], second.LastUserID)

	assert.ElementsMatch(t, []string{"0500", "0501", "0502", "0503"}, lookup.calls)
	for _, id := range users {
		assert.Equal(t, "1", balanceOf(t, db, id).String())
	}

	opts.StartAfter = second.LastUserID
	third, err := ledger.BatchSyncAllUsers(context.Background(), lookup, opts)
	require.NoError(t, err)
	assert.Zero(t, third.Processed)
	assert.True(t, third.Exhausted)
}

func TestBatchSyncAllUsers_Cancelled(t *testing.T) {
	ledger, db := newTestLedger(t)
	createUser(t, db, "0501", "0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ledger.BatchSyncAllUsers(ctx, &stubLookup{}, BatchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
