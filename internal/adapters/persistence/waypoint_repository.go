package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// WaypointRepository persists waypoints, their traits and the cached pairwise
// distances between them.
type WaypointRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewWaypointRepository creates a GORM-based waypoint repository
func NewWaypointRepository(db *gorm.DB, clock shared.Clock) *WaypointRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &WaypointRepository{db: db, clock: clock}
}

// Save upserts a waypoint and replaces its trait rows
func (r *WaypointRepository) Save(ctx context.Context, wp *shared.Waypoint) error {
	model := WaypointModel{
		Symbol:       wp.Symbol,
		SystemSymbol: wp.SystemSymbol,
		Type:         wp.Type,
		X:            wp.X,
		Y:            wp.Y,
		SyncedAt:     r.clock.Now(),
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&model).Error; err != nil {
				return err
			}
			if err := tx.Where("waypoint_symbol = ?", wp.Symbol).Delete(&WaypointTraitModel{}).Error; err != nil {
				return err
			}
			for _, trait := range wp.Traits {
				row := WaypointTraitModel{WaypointSymbol: wp.Symbol, Symbol: trait}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// FindBySymbol returns one waypoint with its traits, or nil when unknown
func (r *WaypointRepository) FindBySymbol(ctx context.Context, symbol string) (*shared.Waypoint, error) {
	var model WaypointModel
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find waypoint %s: %w", symbol, err)
	}
	return r.toDomain(ctx, &model)
}

// ListBySystem returns all cached waypoints in a system
func (r *WaypointRepository) ListBySystem(ctx context.Context, system string) ([]*shared.Waypoint, error) {
	var models []WaypointModel
	err := r.db.WithContext(ctx).Where("system_symbol = ?", system).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waypoints in %s: %w", system, err)
	}
	out := make([]*shared.Waypoint, 0, len(models))
	for i := range models {
		wp, err := r.toDomain(ctx, &models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, wp)
	}
	return out, nil
}

// ListByTrait returns the symbols of waypoints in a system carrying a trait
func (r *WaypointRepository) ListByTrait(ctx context.Context, system, trait string) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).
		Table("waypoints").
		Select("DISTINCT waypoints.symbol").
		Joins("INNER JOIN waypoint_traits ON waypoint_traits.waypoint_symbol = waypoints.symbol AND waypoint_traits.symbol = ?", trait).
		Where("waypoints.system_symbol = ?", system).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s waypoints in %s: %w", trait, system, err)
	}
	return out, nil
}

// FindByType returns the first waypoint of the given type in the system, or
// nil when none is cached. Extraction sites (ENGINEERED_ASTEROID, GAS_GIANT)
// are unique per system so the first match is the site.
func (r *WaypointRepository) FindByType(ctx context.Context, system, wpType string) (*shared.Waypoint, error) {
	var model WaypointModel
	err := r.db.WithContext(ctx).Where("system_symbol = ? AND type = ?", system, wpType).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s in %s: %w", wpType, system, err)
	}
	return r.toDomain(ctx, &model)
}

// Distance returns the distance between two waypoints, serving from the
// distance cache when possible (either direction) and computing + persisting
// it from coordinates on a miss.
func (r *WaypointRepository) Distance(ctx context.Context, a, b string) (float64, error) {
	if a == b {
		return 0, nil
	}
	var model WaypointDistanceModel
	err := r.db.WithContext(ctx).
		Where("(src = ? AND dst = ?) OR (src = ? AND dst = ?)", a, b, b, a).
		First(&model).Error
	if err == nil {
		return model.Dist, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to look up distance %s-%s: %w", a, b, err)
	}

	wpA, err := r.FindBySymbol(ctx, a)
	if err != nil {
		return 0, err
	}
	wpB, err := r.FindBySymbol(ctx, b)
	if err != nil {
		return 0, err
	}
	if wpA == nil || wpB == nil {
		return 0, fmt.Errorf("cannot compute distance %s-%s: waypoint not cached", a, b)
	}
	if wpA.SystemSymbol != wpB.SystemSymbol {
		return 0, fmt.Errorf("cannot compute distance %s-%s: not in the same system", a, b)
	}
	dist := wpA.DistanceTo(wpB)
	row := WaypointDistanceModel{Src: a, Dst: b, Dist: dist}
	if err := withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Save(&row).Error
	}); err != nil {
		return 0, err
	}
	return dist, nil
}

func (r *WaypointRepository) toDomain(ctx context.Context, model *WaypointModel) (*shared.Waypoint, error) {
	var traits []WaypointTraitModel
	if err := r.db.WithContext(ctx).Where("waypoint_symbol = ?", model.Symbol).Find(&traits).Error; err != nil {
		return nil, fmt.Errorf("failed to load traits for %s: %w", model.Symbol, err)
	}
	wp := &shared.Waypoint{
		Symbol:       model.Symbol,
		SystemSymbol: model.SystemSymbol,
		Type:         model.Type,
		X:            model.X,
		Y:            model.Y,
	}
	for _, t := range traits {
		wp.Traits = append(wp.Traits, t.Symbol)
	}
	return wp, nil
}
