package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Vehicle is a registered vehicle class the office dispatches against.
type Vehicle struct {
	bun.BaseModel `bun:"table:vehicles"`

	ID        string    `bun:"id,pk" json:"id"`
	Type      string    `bun:"type,notnull" json:"type"`
	Name      string    `bun:"name" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Rate is the current charge for a vehicle type. Tokens copy the amount at
// issue time instead of referencing this row.
type Rate struct {
	bun.BaseModel `bun:"table:rates"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	VehicleType string    `bun:"vehicle_type,unique,notnull" json:"vehicle_type"`
	Amount      float64   `bun:"amount,notnull" json:"amount"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}
