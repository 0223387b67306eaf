package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-dispatch/internal/ledger/db"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/models"
	"ms-dispatch/internal/utils"
)

// maxCounterRetries bounds how often an operation is retried after a CAS
// conflict on the operator counter row before giving up.
const maxCounterRetries = 3

const (
	counterLockAttempts = 5
	lockRetryDelay      = 50 * time.Millisecond
)

// LedgerDBLayer is the storage surface the ledger mutates. All methods take
// a bun.IDB so they can run inside the transaction RunInTx opens.
type LedgerDBLayer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error
	GetOperatorByID(ctx context.Context, idb bun.IDB, id string) (*models.Operator, error)
	GetVehicleByID(ctx context.Context, idb bun.IDB, id string) (*models.Vehicle, error)
	GetRateForType(ctx context.Context, idb bun.IDB, vehicleType string) (*models.Rate, error)
	InsertToken(ctx context.Context, idb bun.IDB, token *models.Token) error
	GetTokenByID(ctx context.Context, idb bun.IDB, id string) (*models.Token, error)
	UpdateToken(ctx context.Context, idb bun.IDB, token *models.Token, columns ...string) error
	SoftDeleteToken(ctx context.Context, idb bun.IDB, id string, at time.Time) error
	UpdateOperatorCounters(ctx context.Context, idb bun.IDB, operatorID string, update db.CounterUpdate) error
}

// CounterLock serializes counter-touching operations for one operator
// across service instances. The database CAS is what guarantees
// correctness; the lock just keeps concurrent writers from burning retries.
type CounterLock interface {
	LockCounter(operatorID, holder string) (bool, error)
	UnlockCounter(operatorID, holder string) error
}

// TokenPublisher streams token lifecycle events after a commit.
type TokenPublisher interface {
	PublishTokenEvent(action string, token models.Token) error
}

// LedgerService is the only writer of operator counters. Issue and Delete
// pair every token write with a counter write inside one transaction, so a
// token without its counter bump (or the reverse) is never observable.
type LedgerService struct {
	DB     LedgerDBLayer
	Locks  CounterLock
	Events TokenPublisher
	Logger *logger.Logger
}

func NewLedgerService(dbLayer LedgerDBLayer, locks CounterLock, events TokenPublisher, log *logger.Logger) *LedgerService {
	return &LedgerService{DB: dbLayer, Locks: locks, Events: events, Logger: log}
}

// IssueTokenRequest carries the fields for a new dispatch token.
type IssueTokenRequest struct {
	OperatorID     string `json:"operator_id"`
	VehicleID      string `json:"vehicle_id"`
	DriverName     string `json:"driver_name"`
	DriverMobileNo string `json:"driver_mobile_no"`
	VehicleNo      string `json:"vehicle_no"`
	Route          string `json:"route"`
	Quantity       int    `json:"quantity"`
	Place          string `json:"place"`
	ChallanPin     string `json:"challan_pin"`
}

func (r IssueTokenRequest) validate() error {
	if strings.TrimSpace(r.OperatorID) == "" {
		return &ValidationError{Field: "operator_id", Reason: "required"}
	}
	if strings.TrimSpace(r.VehicleID) == "" {
		return &ValidationError{Field: "vehicle_id", Reason: "required"}
	}
	if strings.TrimSpace(r.DriverName) == "" {
		return &ValidationError{Field: "driver_name", Reason: "required"}
	}
	if strings.TrimSpace(r.VehicleNo) == "" {
		return &ValidationError{Field: "vehicle_no", Reason: "required"}
	}
	if strings.TrimSpace(r.Route) == "" {
		return &ValidationError{Field: "route", Reason: "required"}
	}
	if r.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	return validateMobile(r.DriverMobileNo)
}

func validateMobile(mobile string) error {
	if mobile == "" {
		return &ValidationError{Field: "driver_mobile_no", Reason: "required"}
	}
	if len(mobile) != 10 {
		return &ValidationError{Field: "driver_mobile_no", Reason: "must be exactly 10 digits"}
	}
	for _, c := range mobile {
		if c < '0' || c > '9' {
			return &ValidationError{Field: "driver_mobile_no", Reason: "must contain digits only"}
		}
	}
	return nil
}

// IssueToken creates a token with the operator's next daily number and bumps
// both counters, all inside one transaction. If the operator's stored daily
// window is stale (daily_date is a prior business day) the daily sequence
// restarts at 1.
func (s *LedgerService) IssueToken(ctx context.Context, req IssueTokenRequest) (*models.Token, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	unlock, err := s.acquireCounterLock(req.OperatorID)
	if err != nil {
		return nil, err
	}
	if unlock != nil {
		defer unlock()
	}

	for attempt := 0; attempt < maxCounterRetries; attempt++ {
		var created *models.Token
		err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
			operator, err := s.DB.GetOperatorByID(ctx, tx, req.OperatorID)
			if err != nil {
				return mapNoRows(err, ErrOperatorNotFound)
			}
			vehicle, err := s.DB.GetVehicleByID(ctx, tx, req.VehicleID)
			if err != nil {
				return mapNoRows(err, ErrVehicleNotFound)
			}
			rate, err := s.DB.GetRateForType(ctx, tx, vehicle.Type)
			if err != nil {
				return mapNoRows(err, ErrRateNotFound)
			}

			now := time.Now()
			effectiveDaily := 0
			if utils.SameBusinessDay(operator.DailyDate, now) {
				effectiveDaily = operator.DailyCount
			}
			newDaily := effectiveDaily + 1

			pin := req.ChallanPin
			if pin == "" {
				pin = utils.GenerateChallanPin()
			}

			token := &models.Token{
				ID:             utils.GenerateTokenID(),
				TokenNo:        TokenNumber(operator.Username, newDaily),
				OperatorID:     operator.ID,
				VehicleID:      vehicle.ID,
				VehicleType:    vehicle.Type,
				VehicleRate:    rate.Amount,
				DriverName:     req.DriverName,
				DriverMobileNo: req.DriverMobileNo,
				VehicleNo:      req.VehicleNo,
				Route:          req.Route,
				Quantity:       req.Quantity,
				Place:          req.Place,
				ChallanPin:     pin,
				CreatedAt:      now,
			}
			if err := s.DB.InsertToken(ctx, tx, token); err != nil {
				return err
			}

			update := db.CounterUpdate{
				PrevDailyCount: operator.DailyCount,
				PrevTotalCount: operator.TotalCount,
				DailyDate:      utils.BusinessDate(now),
				DailyCount:     newDaily,
				TotalCount:     operator.TotalCount + 1,
			}
			if err := s.DB.UpdateOperatorCounters(ctx, tx, operator.ID, update); err != nil {
				return err
			}

			created = token
			return nil
		})
		if errors.Is(err, db.ErrCounterConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publish(models.TokenEventCreated, *created)
		return created, nil
	}

	return nil, ErrCounterConflict
}

// UpdateTokenRequest patches a token. Nil fields keep their stored value.
// ResyncRate re-resolves the vehicle's current rate and overwrites the
// snapshot; without it the snapshot never drifts, whatever happens to the
// underlying rate.
type UpdateTokenRequest struct {
	VehicleID      *string `json:"vehicle_id,omitempty"`
	DriverName     *string `json:"driver_name,omitempty"`
	DriverMobileNo *string `json:"driver_mobile_no,omitempty"`
	VehicleNo      *string `json:"vehicle_no,omitempty"`
	Route          *string `json:"route,omitempty"`
	Quantity       *int    `json:"quantity,omitempty"`
	Place          *string `json:"place,omitempty"`
	ChallanPin     *string `json:"challan_pin,omitempty"`
	ResyncRate     bool    `json:"resync_rate,omitempty"`
}

func (r UpdateTokenRequest) validate() error {
	if r.DriverName != nil && strings.TrimSpace(*r.DriverName) == "" {
		return &ValidationError{Field: "driver_name", Reason: "must not be empty"}
	}
	if r.DriverMobileNo != nil {
		if err := validateMobile(*r.DriverMobileNo); err != nil {
			return err
		}
	}
	if r.VehicleNo != nil && strings.TrimSpace(*r.VehicleNo) == "" {
		return &ValidationError{Field: "vehicle_no", Reason: "must not be empty"}
	}
	if r.Route != nil && strings.TrimSpace(*r.Route) == "" {
		return &ValidationError{Field: "route", Reason: "must not be empty"}
	}
	if r.Quantity != nil && *r.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	return nil
}

// UpdateToken applies a patch to a non-deleted token. Counters are never
// touched: the token keeps its number and its place in the day's sequence.
func (s *LedgerService) UpdateToken(ctx context.Context, tokenID, actor string, req UpdateTokenRequest) (*models.Token, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var updated *models.Token
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		token, err := s.DB.GetTokenByID(ctx, tx, tokenID)
		if err != nil {
			return mapNoRows(err, ErrTokenNotFound)
		}

		if req.VehicleID != nil {
			token.VehicleID = *req.VehicleID
		}
		if req.DriverName != nil {
			token.DriverName = *req.DriverName
		}
		if req.DriverMobileNo != nil {
			token.DriverMobileNo = *req.DriverMobileNo
		}
		if req.VehicleNo != nil {
			token.VehicleNo = *req.VehicleNo
		}
		if req.Route != nil {
			token.Route = *req.Route
		}
		if req.Quantity != nil {
			token.Quantity = *req.Quantity
		}
		if req.Place != nil {
			token.Place = *req.Place
		}
		if req.ChallanPin != nil {
			token.ChallanPin = *req.ChallanPin
		}

		if req.ResyncRate {
			vehicle, err := s.DB.GetVehicleByID(ctx, tx, token.VehicleID)
			if err != nil {
				return mapNoRows(err, ErrVehicleNotFound)
			}
			rate, err := s.DB.GetRateForType(ctx, tx, vehicle.Type)
			if err != nil {
				return mapNoRows(err, ErrRateNotFound)
			}
			token.VehicleType = vehicle.Type
			token.VehicleRate = rate.Amount
		}

		token.UpdatedAt = time.Now()
		token.UpdatedBy = actor

		if err := s.DB.UpdateToken(ctx, tx, token,
			"vehicle_id", "vehicle_type", "vehicle_rate",
			"driver_name", "driver_mobile_no", "vehicle_no",
			"route", "quantity", "place", "challan_pin",
			"updated_at", "updated_by"); err != nil {
			return err
		}

		updated = token
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(models.TokenEventUpdated, *updated)
	return updated, nil
}

// DeleteToken soft-deletes a token and reverses its counter effect. The
// daily counter only rolls back when the token belongs to the operator's
// current daily window; a token from a prior day leaves today's in-progress
// sequence alone. Both counters floor at zero.
func (s *LedgerService) DeleteToken(ctx context.Context, tokenID string) error {
	for attempt := 0; attempt < maxCounterRetries; attempt++ {
		var deleted *models.Token
		var unlock func()
		err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
			token, err := s.DB.GetTokenByID(ctx, tx, tokenID)
			if err != nil {
				return mapNoRows(err, ErrTokenNotFound)
			}
			operator, err := s.DB.GetOperatorByID(ctx, tx, token.OperatorID)
			if err != nil {
				return mapNoRows(err, ErrOperatorNotFound)
			}

			if unlock == nil {
				unlock, err = s.acquireCounterLock(operator.ID)
				if err != nil {
					return err
				}
			}

			newDaily := operator.DailyCount
			if utils.SameBusinessDay(token.CreatedAt, operator.DailyDate) && operator.DailyCount > 0 {
				newDaily = operator.DailyCount - 1
			}
			newTotal := operator.TotalCount - 1
			if newTotal < 0 {
				newTotal = 0
			}

			if err := s.DB.SoftDeleteToken(ctx, tx, token.ID, time.Now()); err != nil {
				return err
			}

			update := db.CounterUpdate{
				PrevDailyCount: operator.DailyCount,
				PrevTotalCount: operator.TotalCount,
				DailyDate:      operator.DailyDate,
				DailyCount:     newDaily,
				TotalCount:     newTotal,
			}
			if err := s.DB.UpdateOperatorCounters(ctx, tx, operator.ID, update); err != nil {
				return err
			}

			deleted = token
			return nil
		})
		if unlock != nil {
			unlock()
		}
		if errors.Is(err, db.ErrCounterConflict) {
			continue
		}
		if err != nil {
			return err
		}

		s.publish(models.TokenEventDeleted, *deleted)
		return nil
	}

	return ErrCounterConflict
}

// MarkLoaded flips the one-way loaded flag at the exit gate. Only the
// issuing operator or an admin may do this; it never touches counters.
func (s *LedgerService) MarkLoaded(ctx context.Context, tokenID, actorUsername, actorRole string) (*models.Token, error) {
	var loaded *models.Token
	alreadyLoaded := false

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		token, err := s.DB.GetTokenByID(ctx, tx, tokenID)
		if err != nil {
			return mapNoRows(err, ErrTokenNotFound)
		}
		operator, err := s.DB.GetOperatorByID(ctx, tx, token.OperatorID)
		if err != nil {
			return mapNoRows(err, ErrOperatorNotFound)
		}

		if actorRole != models.RoleAdmin && actorUsername != operator.Username {
			return ErrNotAllowed
		}

		if token.IsLoaded {
			alreadyLoaded = true
			loaded = token
			return nil
		}

		now := time.Now()
		token.IsLoaded = true
		token.LoadedAt = now
		token.UpdatedAt = now
		token.UpdatedBy = actorUsername

		if err := s.DB.UpdateToken(ctx, tx, token,
			"is_loaded", "loaded_at", "updated_at", "updated_by"); err != nil {
			return err
		}

		loaded = token
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !alreadyLoaded {
		s.publish(models.TokenEventLoaded, *loaded)
	}
	return loaded, nil
}

// GetToken fetches a non-deleted token.
func (s *LedgerService) GetToken(ctx context.Context, tokenID string) (*models.Token, error) {
	var token *models.Token
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		t, err := s.DB.GetTokenByID(ctx, tx, tokenID)
		if err != nil {
			return mapNoRows(err, ErrTokenNotFound)
		}
		token = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *LedgerService) acquireCounterLock(operatorID string) (func(), error) {
	if s.Locks == nil {
		return nil, nil
	}

	holder := uuid.New().String()
	for i := 0; i < counterLockAttempts; i++ {
		ok, err := s.Locks.LockCounter(operatorID, holder)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { _ = s.Locks.UnlockCounter(operatorID, holder) }, nil
		}
		time.Sleep(lockRetryDelay)
	}
	return nil, ErrCounterConflict
}

func (s *LedgerService) publish(action string, token models.Token) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishTokenEvent(action, token); err != nil && s.Logger != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish token %s event for %s: %v", action, token.TokenNo, err))
	}
}

func mapNoRows(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
