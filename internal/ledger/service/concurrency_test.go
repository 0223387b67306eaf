package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	ledgerdb "ms-dispatch/internal/ledger/db"
	"ms-dispatch/internal/ledger/service"
	"ms-dispatch/internal/models"
)

// serializedStore runs each transaction under a mutex. SQLite allows only
// one writer, so concurrent issuance tests serialize at the store boundary
// the way row locks would in PostgreSQL.
type serializedStore struct {
	*ledgerdb.DB
	mu sync.Mutex
}

func (s *serializedStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DB.RunInTx(ctx, fn)
}

// conflictingStore fails the first N counter writes with a CAS conflict.
type conflictingStore struct {
	*ledgerdb.DB
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *conflictingStore) UpdateOperatorCounters(ctx context.Context, idb bun.IDB, operatorID string, update ledgerdb.CounterUpdate) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()

	if fail {
		return ledgerdb.ErrCounterConflict
	}
	return s.DB.UpdateOperatorCounters(ctx, idb, operatorID, update)
}

func countAllTokens(t *testing.T, store *ledgerdb.DB) int {
	count, err := store.Bun.NewSelect().
		Model((*models.Token)(nil)).
		WhereAllWithDeleted().
		Count(context.Background())
	require.NoError(t, err)
	return count
}

func TestConcurrentIssueProducesUniqueNumbers(t *testing.T) {
	store := setupStore(t)
	svc := service.NewLedgerService(&serializedStore{DB: store}, nil, nil, nil)
	ctx := context.Background()

	const workers = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	numbers := make(map[string]bool)
	var firstErr error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := svc.IssueToken(ctx, newIssueReq())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			numbers[token.TokenNo] = true
		}()
	}
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Len(t, numbers, workers, "every issuance must get its own number")

	op := getOperator(t, store, "op-1")
	assert.Equal(t, workers, op.DailyCount)
	assert.Equal(t, workers, op.TotalCount)
}

func TestIssueRetriesAfterCounterConflict(t *testing.T) {
	store := setupStore(t)
	svc := service.NewLedgerService(&conflictingStore{DB: store, failures: 1}, nil, nil, nil)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, newIssueReq())
	require.NoError(t, err)
	assert.Equal(t, "JDOE01", token.TokenNo)

	assert.Equal(t, 1, countAllTokens(t, store), "the conflicted attempt must leave no token behind")

	op := getOperator(t, store, "op-1")
	assert.Equal(t, 1, op.DailyCount)
	assert.Equal(t, 1, op.TotalCount)
}

func TestIssueGivesUpAfterRetryBudget(t *testing.T) {
	store := setupStore(t)
	svc := service.NewLedgerService(&conflictingStore{DB: store, failures: 100}, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.IssueToken(ctx, newIssueReq())
	assert.True(t, errors.Is(err, service.ErrCounterConflict))

	assert.Equal(t, 0, countAllTokens(t, store), "failed issuance must be fully rolled back")

	op := getOperator(t, store, "op-1")
	assert.Equal(t, 0, op.DailyCount)
	assert.Equal(t, 0, op.TotalCount)
}

func TestDeleteRetriesAfterCounterConflict(t *testing.T) {
	store := setupStore(t)
	plain := service.NewLedgerService(store, nil, nil, nil)
	ctx := context.Background()

	token, err := plain.IssueToken(ctx, newIssueReq())
	require.NoError(t, err)

	svc := service.NewLedgerService(&conflictingStore{DB: store, failures: 1}, nil, nil, nil)
	require.NoError(t, svc.DeleteToken(ctx, token.ID))

	op := getOperator(t, store, "op-1")
	assert.Equal(t, 0, op.DailyCount)
	assert.Equal(t, 0, op.TotalCount)
}
