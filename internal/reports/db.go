package reports

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/models"
)

// DB handles report database operations. Reports only read; every mutation
// goes through the ledger.
type DB struct {
	bun *bun.DB
}

// NewDB creates a new reports DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// TokenFilter narrows a token listing. Zero values mean "no filter".
type TokenFilter struct {
	OperatorID string
	From       time.Time
	To         time.Time
	Loaded     *bool
	Page       int
	Limit      int
}

func (f TokenFilter) page() int {
	if f.Page < 1 {
		return 1
	}
	return f.Page
}

func (f TokenFilter) limit() int {
	if f.Limit < 1 {
		return 20
	}
	return f.Limit
}

func (f TokenFilter) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if f.OperatorID != "" {
		q = q.Where("operator_id = ?", f.OperatorID)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To)
	}
	if f.Loaded != nil {
		q = q.Where("is_loaded = ?", *f.Loaded)
	}
	return q.
		Order("created_at DESC").
		Limit(f.limit()).
		Offset((f.page() - 1) * f.limit())
}

// ListTokens returns a page of active tokens matching the filter, newest
// first, with the total match count.
func (db *DB) ListTokens(ctx context.Context, filter TokenFilter) ([]models.Token, int, error) {
	var tokens []models.Token
	count, err := filter.apply(db.bun.NewSelect().Model(&tokens)).ScanAndCount(ctx)
	return tokens, count, err
}

// ListUpdatedTokens returns active tokens that were modified after issuance.
func (db *DB) ListUpdatedTokens(ctx context.Context, filter TokenFilter) ([]models.Token, int, error) {
	var tokens []models.Token
	q := db.bun.NewSelect().
		Model(&tokens).
		Where("updated_at IS NOT NULL")
	count, err := filter.apply(q).ScanAndCount(ctx)
	return tokens, count, err
}

// ListDeletedTokens returns soft-deleted tokens. They are excluded from
// every other listing but stay queryable here for the audit trail.
func (db *DB) ListDeletedTokens(ctx context.Context, filter TokenFilter) ([]models.Token, int, error) {
	var tokens []models.Token
	q := db.bun.NewSelect().
		Model(&tokens).
		WhereDeleted()
	count, err := filter.apply(q).ScanAndCount(ctx)
	return tokens, count, err
}

// DailyIssueData represents raw per-day issuance metrics from the database
type DailyIssueData struct {
	IssueDate     time.Time `bun:"issue_date"`
	TokensIssued  int       `bun:"tokens_issued"`
	TokensLoaded  int       `bun:"tokens_loaded"`
	TotalQuantity int       `bun:"total_quantity"`
	TotalValue    float64   `bun:"total_value"`
}

// GetDailyIssueSummary aggregates active tokens per business day, optionally
// for one operator.
func (db *DB) GetDailyIssueSummary(ctx context.Context, operatorID string, from, to time.Time) ([]DailyIssueData, error) {
	rawSQL := `
		SELECT
			DATE(created_at) AS issue_date,
			COUNT(*) AS tokens_issued,
			COALESCE(SUM(CASE WHEN is_loaded THEN 1 ELSE 0 END), 0) AS tokens_loaded,
			COALESCE(SUM(quantity), 0) AS total_quantity,
			COALESCE(SUM(vehicle_rate * quantity), 0) AS total_value
		FROM
			tokens
		WHERE
			deleted_at IS NULL
	`
	args := []interface{}{}

	if operatorID != "" {
		rawSQL += " AND operator_id = ?"
		args = append(args, operatorID)
	}
	if !from.IsZero() {
		rawSQL += " AND created_at >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		rawSQL += " AND created_at < ?"
		args = append(args, to)
	}

	rawSQL += `
		GROUP BY
			DATE(created_at)
		ORDER BY
			DATE(created_at)
	`

	var summary []DailyIssueData
	err := db.bun.NewRaw(rawSQL, args...).Scan(ctx, &summary)
	return summary, err
}

// GetOperator fetches one operator row with its live counters.
func (db *DB) GetOperator(ctx context.Context, operatorID string) (*models.Operator, error) {
	var operator models.Operator
	err := db.bun.NewSelect().
		Model(&operator).
		Where("id = ?", operatorID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

// ListOperators returns all operators with their counters.
func (db *DB) ListOperators(ctx context.Context) ([]models.Operator, error) {
	var operators []models.Operator
	err := db.bun.NewSelect().
		Model(&operators).
		Order("username ASC").
		Scan(ctx)
	return operators, err
}
