package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Token is a printed dispatch receipt for one vehicle trip. VehicleType and
// VehicleRate are snapshots taken when the token is issued (or explicitly
// resynced); they never follow later rate changes. DeletedAt drives bun's
// soft delete, so deleted tokens drop out of default queries but stay
// available for the deleted-tokens report.
type Token struct {
	bun.BaseModel `bun:"table:tokens"`

	ID             string    `bun:"id,pk" json:"id"`
	TokenNo        string    `bun:"token_no,notnull" json:"token_no"`
	OperatorID     string    `bun:"operator_id,notnull" json:"operator_id"`
	VehicleID      string    `bun:"vehicle_id,notnull" json:"vehicle_id"`
	VehicleType    string    `bun:"vehicle_type,notnull" json:"vehicle_type"`
	VehicleRate    float64   `bun:"vehicle_rate,notnull" json:"vehicle_rate"`
	DriverName     string    `bun:"driver_name,notnull" json:"driver_name"`
	DriverMobileNo string    `bun:"driver_mobile_no,notnull" json:"driver_mobile_no"`
	VehicleNo      string    `bun:"vehicle_no,notnull" json:"vehicle_no"`
	Route          string    `bun:"route,notnull" json:"route"`
	Quantity       int       `bun:"quantity" json:"quantity"`
	Place          string    `bun:"place" json:"place"`
	ChallanPin     string    `bun:"challan_pin" json:"challan_pin"`
	IsLoaded       bool      `bun:"is_loaded" json:"is_loaded"`
	LoadedAt       time.Time `bun:"loaded_at,nullzero" json:"loaded_at,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
	UpdatedBy      string    `bun:"updated_by,nullzero" json:"updated_by,omitempty"`
	DeletedAt      time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}
