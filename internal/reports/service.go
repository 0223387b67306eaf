package reports

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/models"
)

// Service handles report operations
type Service struct {
	db *DB
}

// NewService creates a new reports service
func NewService(db *bun.DB) *Service {
	return &Service{db: NewDB(db)}
}

// TokenPage is one page of a token listing.
type TokenPage struct {
	Tokens []models.Token `json:"tokens"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// DailyIssueSummary aggregates one day's issuance for the office register.
type DailyIssueSummary struct {
	Date          string  `json:"date"`
	TokensIssued  int     `json:"tokens_issued"`
	TokensLoaded  int     `json:"tokens_loaded"`
	TotalQuantity int     `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
}

// OperatorSummary pairs an operator with their live counters.
type OperatorSummary struct {
	OperatorID string `json:"operator_id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	DailyDate  string `json:"daily_date,omitempty"`
	DailyCount int    `json:"daily_count"`
	TotalCount int    `json:"total_count"`
}

// ListTokens returns a page of active tokens.
func (s *Service) ListTokens(ctx context.Context, filter TokenFilter) (*TokenPage, error) {
	tokens, total, err := s.db.ListTokens(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newTokenPage(tokens, total, filter), nil
}

// ListUpdatedTokens returns a page of tokens edited after issuance.
func (s *Service) ListUpdatedTokens(ctx context.Context, filter TokenFilter) (*TokenPage, error) {
	tokens, total, err := s.db.ListUpdatedTokens(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newTokenPage(tokens, total, filter), nil
}

// ListDeletedTokens returns a page of soft-deleted tokens.
func (s *Service) ListDeletedTokens(ctx context.Context, filter TokenFilter) (*TokenPage, error) {
	tokens, total, err := s.db.ListDeletedTokens(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newTokenPage(tokens, total, filter), nil
}

// GetDailyIssueSummary returns per-day issuance rows for the register.
func (s *Service) GetDailyIssueSummary(ctx context.Context, operatorID string, from, to time.Time) ([]DailyIssueSummary, error) {
	rows, err := s.db.GetDailyIssueSummary(ctx, operatorID, from, to)
	if err != nil {
		return nil, err
	}

	summary := make([]DailyIssueSummary, 0, len(rows))
	for _, row := range rows {
		summary = append(summary, DailyIssueSummary{
			Date:          row.IssueDate.Format("2006-01-02"),
			TokensIssued:  row.TokensIssued,
			TokensLoaded:  row.TokensLoaded,
			TotalQuantity: row.TotalQuantity,
			TotalValue:    row.TotalValue,
		})
	}
	return summary, nil
}

// GetOperatorSummary returns one operator's live counters.
func (s *Service) GetOperatorSummary(ctx context.Context, operatorID string) (*OperatorSummary, error) {
	operator, err := s.db.GetOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	summary := operatorSummary(*operator)
	return &summary, nil
}

// ListOperatorSummaries returns every operator's live counters.
func (s *Service) ListOperatorSummaries(ctx context.Context) ([]OperatorSummary, error) {
	operators, err := s.db.ListOperators(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]OperatorSummary, 0, len(operators))
	for _, op := range operators {
		summaries = append(summaries, operatorSummary(op))
	}
	return summaries, nil
}

func newTokenPage(tokens []models.Token, total int, filter TokenFilter) *TokenPage {
	if tokens == nil {
		tokens = []models.Token{}
	}
	return &TokenPage{
		Tokens: tokens,
		Total:  total,
		Page:   filter.page(),
		Limit:  filter.limit(),
	}
}

func operatorSummary(op models.Operator) OperatorSummary {
	summary := OperatorSummary{
		OperatorID: op.ID,
		Username:   op.Username,
		FullName:   op.FullName,
		DailyCount: op.DailyCount,
		TotalCount: op.TotalCount,
	}
	if !op.DailyDate.IsZero() {
		summary.DailyDate = op.DailyDate.Format("2006-01-02")
	}
	return summary
}
