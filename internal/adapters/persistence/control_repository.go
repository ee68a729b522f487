package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetcore/internal/domain/fleet"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// ControlRepository persists the fleet resource manager's state: ship locks,
// the per-ship request queue, and the excavator goods whitelist.
type ControlRepository struct {
	db         *gorm.DB
	clock      shared.Clock
	requestTTL time.Duration
}

// NewControlRepository creates a GORM-based control repository. A zero
// requestTTL falls back to the default request TTL.
func NewControlRepository(db *gorm.DB, clock shared.Clock, requestTTL time.Duration) *ControlRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if requestTTL <= 0 {
		requestTTL = fleet.RequestTTL
	}
	return &ControlRepository{db: db, clock: clock, requestTTL: requestTTL}
}

// GetLock returns the lock row for a ship. A ship with no row is free.
func (r *ControlRepository) GetLock(ctx context.Context, ship string) (*fleet.ShipLock, error) {
	var model ShipLockModel
	err := r.db.WithContext(ctx).Where("ship_symbol = ?", ship).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fleet.FreeLock(ship), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock for %s: %w", ship, err)
	}
	lock := &fleet.ShipLock{
		ShipSymbol: model.ShipSymbol,
		Priority:   model.Priority,
		Blocked:    model.Blocked,
	}
	if model.Controller != nil {
		lock.Controller = *model.Controller
	}
	return lock, nil
}

// SaveLock upserts the lock row for a ship
func (r *ControlRepository) SaveLock(ctx context.Context, lock *fleet.ShipLock) error {
	model := ShipLockModel{
		ShipSymbol: lock.ShipSymbol,
		Priority:   lock.Priority,
		Blocked:    lock.Blocked,
	}
	if lock.Controller != "" {
		controller := lock.Controller
		model.Controller = &controller
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Save(&model).Error
	})
}

// SetBlocked updates only the blocked flag, preserving owner and priority
func (r *ControlRepository) SetBlocked(ctx context.Context, ship string, blocked bool) error {
	return withStoreRetries(r.clock, func() error {
		tx := r.db.WithContext(ctx).Model(&ShipLockModel{}).
			Where("ship_symbol = ?", ship).
			Update("blocked", blocked)
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected == 0 {
			// Lock rows are created lazily; a blocked flag on an unowned ship
			// still needs a row to live in.
			model := ShipLockModel{ShipSymbol: ship, Priority: -1, Blocked: blocked}
			return r.db.WithContext(ctx).Save(&model).Error
		}
		return nil
	})
}

// FleetOf returns the ships currently locked by a controller
func (r *ControlRepository) FleetOf(ctx context.Context, controller string) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&ShipLockModel{}).
		Distinct("ship_symbol").
		Where("controller = ?", controller).
		Pluck("ship_symbol", &out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list fleet of %s: %w", controller, err)
	}
	return out, nil
}

// AvailableShips returns ships in the given systems that are unblocked and
// either free, owned by controller, or owned below priority; optionally
// filtered by role. Ships without a lock row are free but only discoverable
// once their nav row exists, which is guaranteed by the cache on first sight.
func (r *ControlRepository) AvailableShips(ctx context.Context, systems []string, role string, priority int, controller string) ([]string, error) {
	if len(systems) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).
		Table("ship_navs").
		Select("DISTINCT ship_navs.ship_symbol").
		Joins("INNER JOIN ship_registrations reg ON reg.ship_symbol = ship_navs.ship_symbol").
		Joins("LEFT JOIN ship_locks locks ON locks.ship_symbol = ship_navs.ship_symbol").
		Where("ship_navs.system_symbol IN ?", systems).
		Where("locks.ship_symbol IS NULL OR (locks.blocked = ? AND (locks.controller IS NULL OR locks.controller = ? OR locks.priority < ?))",
			false, controller, priority)
	if role != "" {
		query = query.Where("reg.role = ?", role)
	}
	var out []string
	if err := query.Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list available ships: %w", err)
	}
	return out, nil
}

// AdminClear bulk-releases every lock below the reserved priority that is not
// held by the user. Used by graceful shutdown.
func (r *ControlRepository) AdminClear(ctx context.Context) error {
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Model(&ShipLockModel{}).
			Where("(controller IS NULL OR controller <> ?) AND priority < ?", fleet.UserController, fleet.PriorityReserved).
			Updates(map[string]interface{}{"controller": nil, "priority": -1, "blocked": false}).Error
	})
}

// EnqueueRequest upserts a controller's request for a ship, keyed on
// (ship, controller) so re-requests refresh the timestamp.
func (r *ControlRepository) EnqueueRequest(ctx context.Context, ship, controller string, priority int) error {
	model := ShipRequestModel{
		ShipSymbol: ship,
		Controller: controller,
		Priority:   priority,
		CreatedAt:  r.clock.Now(),
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Save(&model).Error
	})
}

// PopRequest removes one controller's entry from a ship's request queue
func (r *ControlRepository) PopRequest(ctx context.Context, ship, controller string) error {
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).
			Where("ship_symbol = ? AND controller = ?", ship, controller).
			Delete(&ShipRequestModel{}).Error
	})
}

// PeekRequest returns the controller at the head of a ship's live request
// queue (highest priority, oldest first), or "" when no live request exists.
// Entries past the request TTL are ignored.
func (r *ControlRepository) PeekRequest(ctx context.Context, ship string) (string, error) {
	cutoff := r.clock.Now().Add(-r.requestTTL)
	var model ShipRequestModel
	err := r.db.WithContext(ctx).
		Where("ship_symbol = ? AND created_at >= ?", ship, cutoff).
		Order("priority DESC, created_at ASC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to peek request queue for %s: %w", ship, err)
	}
	return model.Controller, nil
}

// ExcavatorGoods returns the whitelist of goods the extraction fleet keeps
func (r *ControlRepository) ExcavatorGoods(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&ExcavatorGoodModel{}).Pluck("symbol", &out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list excavator goods: %w", err)
	}
	return out, nil
}

// SaveExcavatorGoods replaces the whitelist
func (r *ControlRepository) SaveExcavatorGoods(ctx context.Context, goods []string) error {
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("1 = 1").Delete(&ExcavatorGoodModel{}).Error; err != nil {
				return err
			}
			for _, g := range goods {
				if err := tx.Create(&ExcavatorGoodModel{Symbol: g}).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}
