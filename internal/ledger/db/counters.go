package db

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/models"
)

// ErrCounterConflict means the operator's counters changed between read and
// write. The caller re-reads and retries the whole transaction.
var ErrCounterConflict = errors.New("operator counters changed concurrently")

// CounterUpdate carries a compare-and-swap write of an operator's counters.
// Prev* hold the values read at the start of the transaction; the update
// only lands if the row still matches them, which is what serializes two
// concurrent issuances for the same operator.
type CounterUpdate struct {
	PrevDailyCount int
	PrevTotalCount int
	DailyDate      time.Time
	DailyCount     int
	TotalCount     int
}

// GetOperatorByID fetches an operator row.
func (d *DB) GetOperatorByID(ctx context.Context, idb bun.IDB, id string) (*models.Operator, error) {
	var operator models.Operator
	err := idb.NewSelect().
		Model(&operator).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

// GetOperatorByUsername fetches an operator row by its unique username.
func (d *DB) GetOperatorByUsername(ctx context.Context, idb bun.IDB, username string) (*models.Operator, error) {
	var operator models.Operator
	err := idb.NewSelect().
		Model(&operator).
		Where("username = ?", username).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

// UpdateOperatorCounters applies a CAS counter write. Returns
// ErrCounterConflict when the row no longer matches the previous values.
func (d *DB) UpdateOperatorCounters(ctx context.Context, idb bun.IDB, operatorID string, update CounterUpdate) error {
	res, err := idb.NewUpdate().
		Model((*models.Operator)(nil)).
		Set("daily_date = ?", update.DailyDate).
		Set("daily_count = ?", update.DailyCount).
		Set("total_count = ?", update.TotalCount).
		Where("id = ?", operatorID).
		Where("daily_count = ?", update.PrevDailyCount).
		Where("total_count = ?", update.PrevTotalCount).
		Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCounterConflict
	}
	return nil
}
