package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/models"
)

// DB is the ledger's storage layer. Every mutation the ledger performs runs
// through RunInTx so the token row and the operator counter row always
// commit or roll back together. Methods take a bun.IDB so the same queries
// work against the pool and inside a transaction.
type DB struct {
	Bun *bun.DB
}

func NewDB(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// RunInTx executes fn inside a single database transaction.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// ---------------- TOKENS ----------------

// InsertToken inserts a new token row.
func (d *DB) InsertToken(ctx context.Context, idb bun.IDB, token *models.Token) error {
	_, err := idb.NewInsert().Model(token).Exec(ctx)
	return err
}

// GetTokenByID fetches a non-deleted token. Soft-deleted rows are excluded
// by the model's soft-delete column, so a deleted token reads as not found.
func (d *DB) GetTokenByID(ctx context.Context, idb bun.IDB, id string) (*models.Token, error) {
	var token models.Token
	err := idb.NewSelect().
		Model(&token).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// GetTokenIncludingDeleted fetches a token regardless of its soft-delete
// state, for the audit/report paths.
func (d *DB) GetTokenIncludingDeleted(ctx context.Context, idb bun.IDB, id string) (*models.Token, error) {
	var token models.Token
	err := idb.NewSelect().
		Model(&token).
		WhereAllWithDeleted().
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// UpdateToken writes the given columns of the token row.
func (d *DB) UpdateToken(ctx context.Context, idb bun.IDB, token *models.Token, columns ...string) error {
	_, err := idb.NewUpdate().
		Model(token).
		Column(columns...).
		Where("id = ?", token.ID).
		Exec(ctx)
	return err
}

// SoftDeleteToken marks the token deleted. The row is retained for the
// deleted-tokens report.
func (d *DB) SoftDeleteToken(ctx context.Context, idb bun.IDB, id string, at time.Time) error {
	_, err := idb.NewUpdate().
		Model((*models.Token)(nil)).
		Set("deleted_at = ?", at).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	return err
}

// ---------------- VEHICLES / RATES ----------------

// GetVehicleByID resolves a vehicle inside the ledger transaction.
func (d *DB) GetVehicleByID(ctx context.Context, idb bun.IDB, id string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := idb.NewSelect().
		Model(&vehicle).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// GetRateForType resolves the current rate for a vehicle type.
func (d *DB) GetRateForType(ctx context.Context, idb bun.IDB, vehicleType string) (*models.Rate, error) {
	var rate models.Rate
	err := idb.NewSelect().
		Model(&rate).
		Where("vehicle_type = ?", vehicleType).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}
