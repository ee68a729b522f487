package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetcore/internal/domain/navigation"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// ShipStateRepository persists the cached per-ship state: nav, fuel, cargo,
// cooldown, registration and mounts. All writes replace the existing rows for
// the ship atomically so readers never observe a half-updated component.
type ShipStateRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewShipStateRepository creates a GORM-based ship state repository
func NewShipStateRepository(db *gorm.DB, clock shared.Clock) *ShipStateRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ShipStateRepository{db: db, clock: clock}
}

// GetNav returns the cached nav row, or nil when the ship is unknown
func (r *ShipStateRepository) GetNav(ctx context.Context, ship string) (*navigation.ShipNav, error) {
	var model ShipNavModel
	err := r.db.WithContext(ctx).Where("ship_symbol = ?", ship).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nav for %s: %w", ship, err)
	}
	return &navigation.ShipNav{
		ShipSymbol:     model.ShipSymbol,
		SystemSymbol:   model.SystemSymbol,
		WaypointSymbol: model.WaypointSymbol,
		Status:         model.Status,
		FlightMode:     model.FlightMode,
		DepartureTime:  model.DepartureTime,
		Arrival:        model.Arrival,
		UpdatedAt:      model.UpdatedAt,
	}, nil
}

// SaveNav upserts the nav row for a ship
func (r *ShipStateRepository) SaveNav(ctx context.Context, nav *navigation.ShipNav) error {
	model := ShipNavModel{
		ShipSymbol:     nav.ShipSymbol,
		SystemSymbol:   nav.SystemSymbol,
		WaypointSymbol: nav.WaypointSymbol,
		Status:         nav.Status,
		FlightMode:     nav.FlightMode,
		DepartureTime:  nav.DepartureTime,
		Arrival:        nav.Arrival,
		UpdatedAt:      r.clock.Now(),
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Save(&model).Error
	})
}

// UpdateNavStatus updates just the status column (dock/orbit round trips)
func (r *ShipStateRepository) UpdateNavStatus(ctx context.Context, ship, status string) error {
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Model(&ShipNavModel{}).
			Where("ship_symbol = ?", ship).
			Updates(map[string]interface{}{"status": status, "updated_at": r.clock.Now()}).Error
	})
}

// UpdateFlightMode updates just the flight mode column
func (r *ShipStateRepository) UpdateFlightMode(ctx context.Context, ship, mode string) error {
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Model(&ShipNavModel{}).
			Where("ship_symbol = ?", ship).
			Updates(map[string]interface{}{"flight_mode": mode, "updated_at": r.clock.Now()}).Error
	})
}

// GetFuel returns the cached fuel row, or nil when unknown
func (r *ShipStateRepository) GetFuel(ctx context.Context, ship string) (*navigation.ShipFuel, error) {
	var model ShipFuelModel
	err := r.db.WithContext(ctx).Where("ship_symbol = ?", ship).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fuel for %s: %w", ship, err)
	}
	return &navigation.ShipFuel{ShipSymbol: model.ShipSymbol, Current: model.Current, Capacity: model.Capacity}, nil
}

// SaveFuel upserts the fuel row for a ship
func (r *ShipStateRepository) SaveFuel(ctx context.Context, fuel *navigation.ShipFuel) error {
	model := ShipFuelModel{ShipSymbol: fuel.ShipSymbol, Current: fuel.Current, Capacity: fuel.Capacity}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Save(&model).Error
	})
}

// GetCooldown returns the cached cooldown row, or nil when unknown
func (r *ShipStateRepository) GetCooldown(ctx context.Context, ship string) (*navigation.ShipCooldown, error) {
	var model ShipCooldownModel
	err := r.db.WithContext(ctx).Where("ship_symbol = ?", ship).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cooldown for %s: %w", ship, err)
	}
	return &navigation.ShipCooldown{
		ShipSymbol:       model.ShipSymbol,
		RemainingSeconds: model.RemainingSeconds,
		Expiration:       model.Expiration,
	}, nil
}

// SaveCooldown upserts the cooldown row for a ship
func (r *ShipStateRepository) SaveCooldown(ctx context.Context, cd *navigation.ShipCooldown) error {
	model := ShipCooldownModel{
		ShipSymbol:       cd.ShipSymbol,
		RemainingSeconds: cd.RemainingSeconds,
		Expiration:       cd.Expiration,
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Save(&model).Error
	})
}

// GetRole returns the registered role for a ship, or "" when unknown
func (r *ShipStateRepository) GetRole(ctx context.Context, ship string) (string, error) {
	var model ShipRegistrationModel
	err := r.db.WithContext(ctx).Where("ship_symbol = ?", ship).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get registration for %s: %w", ship, err)
	}
	return model.Role, nil
}

// SaveRegistration upserts the registration row for a ship
func (r *ShipStateRepository) SaveRegistration(ctx context.Context, ship, role, name string) error {
	model := ShipRegistrationModel{ShipSymbol: ship, Role: role, Name: name}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Save(&model).Error
	})
}

// SaveMounts replaces the mount rows for a ship
func (r *ShipStateRepository) SaveMounts(ctx context.Context, ship string, mounts []navigation.ShipMount) error {
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("ship_symbol = ?", ship).Delete(&ShipMountModel{}).Error; err != nil {
				return err
			}
			for _, m := range mounts {
				model := ShipMountModel{ShipSymbol: ship, Symbol: m.Symbol, Strength: m.Strength}
				if err := tx.Create(&model).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ShipsWithMountPrefix filters the given ships down to those carrying a mount
// whose symbol starts with prefix (mining lasers, gas siphons).
func (r *ShipStateRepository) ShipsWithMountPrefix(ctx context.Context, ships []string, prefix string) ([]string, error) {
	if len(ships) == 0 {
		return nil, nil
	}
	var models []ShipMountModel
	err := r.db.WithContext(ctx).
		Where("ship_symbol IN ? AND symbol LIKE ?", ships, prefix+"%").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to filter ships by mount %s: %w", prefix, err)
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range models {
		if !seen[m.ShipSymbol] {
			seen[m.ShipSymbol] = true
			out = append(out, m.ShipSymbol)
		}
	}
	return out, nil
}

// GetCargo reconstructs the cargo manifest from the item rows plus the
// sentinel row. Returns nil when the ship has no cargo rows at all.
func (r *ShipStateRepository) GetCargo(ctx context.Context, ship string) (*shared.Cargo, error) {
	var models []ShipCargoModel
	err := r.db.WithContext(ctx).Where("ship_symbol = ?", ship).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get cargo for %s: %w", ship, err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	var capacity, total int
	var inventory []shared.CargoItem
	sentinelSeen := false
	for _, m := range models {
		if m.GoodSymbol == "" {
			capacity = m.Capacity
			total = m.TotalUnits
			sentinelSeen = true
			continue
		}
		inventory = append(inventory, shared.CargoItem{Symbol: m.GoodSymbol, Units: m.Units})
	}
	if !sentinelSeen {
		return nil, fmt.Errorf("cargo rows for %s are missing the sentinel row", ship)
	}
	cargo, err := shared.NewCargo(capacity, total, inventory)
	if err != nil {
		return nil, fmt.Errorf("cargo rows for %s violate invariants: %w", ship, err)
	}
	return cargo, nil
}

// SaveCargo replaces the cargo rows for a ship with the given manifest.
// Goods with zero units get no row; the sentinel row always exists.
func (r *ShipStateRepository) SaveCargo(ctx context.Context, ship string, cargo *shared.Cargo) error {
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("ship_symbol = ?", ship).Delete(&ShipCargoModel{}).Error; err != nil {
				return err
			}
			rows := []ShipCargoModel{{
				ShipSymbol: ship,
				GoodSymbol: "",
				Capacity:   cargo.Capacity,
				TotalUnits: cargo.Units,
			}}
			for _, item := range cargo.Inventory {
				if item.Units == 0 {
					continue
				}
				rows = append(rows, ShipCargoModel{ShipSymbol: ship, GoodSymbol: item.Symbol, Units: item.Units})
			}
			return tx.Create(&rows).Error
		})
	})
}

// FullShipsAt returns ships of the given role at the waypoint whose cargo is
// at least ratio of capacity, fullest first.
func (r *ShipStateRepository) FullShipsAt(ctx context.Context, waypoint, role string, ratio float64) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).
		Table("ship_navs").
		Select("ship_navs.ship_symbol").
		Joins("INNER JOIN ship_registrations ON ship_registrations.ship_symbol = ship_navs.ship_symbol AND ship_registrations.role = ?", role).
		Joins("INNER JOIN ship_cargo ON ship_cargo.ship_symbol = ship_navs.ship_symbol AND ship_cargo.good_symbol = '' AND ship_cargo.total_units >= ship_cargo.capacity * ?", ratio).
		Where("ship_navs.waypoint_symbol = ?", waypoint).
		Order("ship_cargo.total_units DESC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list full ships at %s: %w", waypoint, err)
	}
	return out, nil
}

// ShipsByRoleInSystems returns symbols and waypoints of ships with the role in
// any of the systems.
func (r *ShipStateRepository) ShipsByRoleInSystems(ctx context.Context, systems []string, role string) (map[string]string, error) {
	if len(systems) == 0 {
		return nil, nil
	}
	var models []ShipNavModel
	err := r.db.WithContext(ctx).
		Joins("INNER JOIN ship_registrations ON ship_registrations.ship_symbol = ship_navs.ship_symbol AND ship_registrations.role = ?", role).
		Where("ship_navs.system_symbol IN ?", systems).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ships: %w", strings.ToLower(role), err)
	}
	out := make(map[string]string, len(models))
	for _, m := range models {
		out[m.ShipSymbol] = m.WaypointSymbol
	}
	return out, nil
}
