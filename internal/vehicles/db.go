package vehicles

import (
	"context"

	"github.com/uptrace/bun"

	"ms-dispatch/internal/models"
)

// Store reads the vehicle catalogue and rate card. Rates are edited by the
// office administrator; tokens snapshot them at issue time, so nothing here
// ever rewrites a token.
type Store struct {
	bun *bun.DB
}

// NewStore creates a new vehicle catalogue store
func NewStore(db *bun.DB) *Store {
	return &Store{bun: db}
}

// ListVehicles returns the whole vehicle catalogue.
func (s *Store) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := s.bun.NewSelect().
		Model(&vehicles).
		Order("type ASC").
		Scan(ctx)
	return vehicles, err
}

// GetVehicleByID fetches one vehicle.
func (s *Store) GetVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := s.bun.NewSelect().
		Model(&vehicle).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ListRates returns the current rate card.
func (s *Store) ListRates(ctx context.Context) ([]models.Rate, error) {
	var rates []models.Rate
	err := s.bun.NewSelect().
		Model(&rates).
		Order("vehicle_type ASC").
		Scan(ctx)
	return rates, err
}

// GetRateForType fetches the current rate for a vehicle type.
func (s *Store) GetRateForType(ctx context.Context, vehicleType string) (*models.Rate, error) {
	var rate models.Rate
	err := s.bun.NewSelect().
		Model(&rate).
		Where("vehicle_type = ?", vehicleType).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}
