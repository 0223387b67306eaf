package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Operator is an office user who issues dispatch tokens. The counter
// columns (daily_date, daily_count, total_count) are owned by the ledger:
// daily_count is only meaningful for the calendar day stored in daily_date,
// and total_count tracks all non-deleted tokens the operator ever issued.
type Operator struct {
	bun.BaseModel `bun:"table:operators"`

	ID         string    `bun:"id,pk" json:"id"`
	Username   string    `bun:"username,unique,notnull" json:"username"`
	FullName   string    `bun:"full_name" json:"full_name"`
	Role       string    `bun:"role,notnull" json:"role"`
	DailyDate  time.Time `bun:"daily_date,nullzero" json:"daily_date,omitempty"`
	DailyCount int       `bun:"daily_count,notnull,default:0" json:"daily_count"`
	TotalCount int       `bun:"total_count,notnull,default:0" json:"total_count"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// IsAdmin reports whether the operator carries the admin role.
func (o *Operator) IsAdmin() bool {
	return o.Role == RoleAdmin
}
