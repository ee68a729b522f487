package ship

import (
	"context"
	"fmt"

	"github.com/andrescamacho/fleetcore/internal/adapters/api"
	"github.com/andrescamacho/fleetcore/internal/domain/navigation"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// stateStore is the slice of the persistence layer the cache writes through to
type stateStore interface {
	GetNav(ctx context.Context, ship string) (*navigation.ShipNav, error)
	SaveNav(ctx context.Context, nav *navigation.ShipNav) error
	UpdateNavStatus(ctx context.Context, ship, status string) error
	UpdateFlightMode(ctx context.Context, ship, mode string) error
	GetFuel(ctx context.Context, ship string) (*navigation.ShipFuel, error)
	SaveFuel(ctx context.Context, fuel *navigation.ShipFuel) error
	GetCargo(ctx context.Context, ship string) (*shared.Cargo, error)
	SaveCargo(ctx context.Context, ship string, cargo *shared.Cargo) error
	GetCooldown(ctx context.Context, ship string) (*navigation.ShipCooldown, error)
	SaveCooldown(ctx context.Context, cd *navigation.ShipCooldown) error
	GetRole(ctx context.Context, ship string) (string, error)
	SaveRegistration(ctx context.Context, ship, role, name string) error
	SaveMounts(ctx context.Context, ship string, mounts []navigation.ShipMount) error
}

// remote is the slice of the API client the cache refreshes from
type remote interface {
	GetShip(ctx context.Context, ship string) (*api.ShipData, error)
	ListShips(ctx context.Context) ([]api.ShipData, error)
	GetNav(ctx context.Context, ship string) (*api.NavData, error)
	GetCargo(ctx context.Context, ship string) (*api.CargoData, error)
	GetCooldown(ctx context.Context, ship string) (*api.CooldownData, error)
}

// Cache keeps the store's view of each ship's nav, fuel, cargo and cooldown in
// sync with the game. Controller reads go through here; on a miss, or when a
// cached nav shows IN_TRANSIT past its arrival, the cache refreshes from the
// API and writes through to the store before returning.
type Cache struct {
	store  stateStore
	remote remote
	clock  shared.Clock
}

// NewCache creates a ship cache
func NewCache(store stateStore, remote remote, clock shared.Clock) *Cache {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Cache{store: store, remote: remote, clock: clock}
}

// Nav returns the ship's nav, refreshing on miss or staleness
func (c *Cache) Nav(ctx context.Context, ship string) (*navigation.ShipNav, error) {
	nav, err := c.store.GetNav(ctx, ship)
	if err != nil {
		return nil, err
	}
	if nav != nil && !nav.Stale(c.clock.Now()) {
		return nav, nil
	}
	if err := c.RefreshNav(ctx, ship); err != nil {
		return nil, err
	}
	nav, err = c.store.GetNav(ctx, ship)
	if err != nil {
		return nil, err
	}
	if nav == nil {
		return nil, fmt.Errorf("nav for %s missing after refresh", ship)
	}
	return nav, nil
}

// RefreshNav forces a nav read from the API and writes it through
func (c *Cache) RefreshNav(ctx context.Context, ship string) error {
	data, err := c.remote.GetNav(ctx, ship)
	if err != nil {
		return fmt.Errorf("failed to refresh nav for %s: %w", ship, err)
	}
	return c.PutNav(ctx, ship, data)
}

// PutNav writes an authoritative nav component through to the store
func (c *Cache) PutNav(ctx context.Context, ship string, data *api.NavData) error {
	nav := &navigation.ShipNav{
		ShipSymbol:     ship,
		SystemSymbol:   data.SystemSymbol,
		WaypointSymbol: data.WaypointSymbol,
		Status:         data.Status,
		FlightMode:     data.FlightMode,
	}
	if data.Route != nil {
		if t, err := shared.ParseServerTime(data.Route.DepartureTime); err == nil {
			nav.DepartureTime = t
		}
		if t, err := shared.ParseServerTime(data.Route.Arrival); err == nil {
			nav.Arrival = t
		}
	}
	return c.store.SaveNav(ctx, nav)
}

// PutNavStatus updates just the cached status after a dock/orbit round trip
func (c *Cache) PutNavStatus(ctx context.Context, ship, status string) error {
	return c.store.UpdateNavStatus(ctx, ship, status)
}

// PutFlightMode updates just the cached flight mode
func (c *Cache) PutFlightMode(ctx context.Context, ship, mode string) error {
	return c.store.UpdateFlightMode(ctx, ship, mode)
}

// Fuel returns the ship's fuel, refreshing on miss
func (c *Cache) Fuel(ctx context.Context, ship string) (*navigation.ShipFuel, error) {
	fuel, err := c.store.GetFuel(ctx, ship)
	if err != nil {
		return nil, err
	}
	if fuel != nil {
		return fuel, nil
	}
	if err := c.RefreshShip(ctx, ship); err != nil {
		return nil, err
	}
	fuel, err = c.store.GetFuel(ctx, ship)
	if err != nil {
		return nil, err
	}
	if fuel == nil {
		return nil, fmt.Errorf("fuel for %s missing after refresh", ship)
	}
	return fuel, nil
}

// PutFuel writes an authoritative fuel component through to the store
func (c *Cache) PutFuel(ctx context.Context, ship string, data *api.FuelData) error {
	return c.store.SaveFuel(ctx, &navigation.ShipFuel{ShipSymbol: ship, Current: data.Current, Capacity: data.Capacity})
}

// Cargo returns the ship's cargo manifest, refreshing on miss
func (c *Cache) Cargo(ctx context.Context, ship string) (*shared.Cargo, error) {
	cargo, err := c.store.GetCargo(ctx, ship)
	if err != nil {
		return nil, err
	}
	if cargo != nil {
		return cargo, nil
	}
	data, err := c.remote.GetCargo(ctx, ship)
	if err != nil {
		return nil, err
	}
	if err := c.PutCargo(ctx, ship, data); err != nil {
		return nil, err
	}
	return c.store.GetCargo(ctx, ship)
}

// PutCargo writes an authoritative cargo component through to the store
func (c *Cache) PutCargo(ctx context.Context, ship string, data *api.CargoData) error {
	inventory := make([]shared.CargoItem, 0, len(data.Inventory))
	for _, item := range data.Inventory {
		inventory = append(inventory, shared.CargoItem{Symbol: item.Symbol, Units: item.Units})
	}
	cargo, err := shared.NewCargo(data.Capacity, data.Units, inventory)
	if err != nil {
		return fmt.Errorf("cargo for %s violates invariants: %w", ship, err)
	}
	return c.store.SaveCargo(ctx, ship, cargo)
}

// ApplyCargoDelta adjusts the cached cargo by delta units of a good. Used when
// an operation reports only the mutation, not the full manifest.
func (c *Cache) ApplyCargoDelta(ctx context.Context, ship, good string, delta int) error {
	cargo, err := c.Cargo(ctx, ship)
	if err != nil {
		return err
	}
	next, err := cargo.ApplyDelta(good, delta)
	if err != nil {
		return err
	}
	return c.store.SaveCargo(ctx, ship, next)
}

// Cooldown returns the ship's reactor cooldown, refreshing on miss
func (c *Cache) Cooldown(ctx context.Context, ship string) (*navigation.ShipCooldown, error) {
	cd, err := c.store.GetCooldown(ctx, ship)
	if err != nil {
		return nil, err
	}
	if cd != nil {
		return cd, nil
	}
	data, err := c.remote.GetCooldown(ctx, ship)
	if err != nil {
		return nil, err
	}
	if err := c.PutCooldown(ctx, ship, data); err != nil {
		return nil, err
	}
	return c.store.GetCooldown(ctx, ship)
}

// PutCooldown writes an authoritative cooldown component through to the store
func (c *Cache) PutCooldown(ctx context.Context, ship string, data *api.CooldownData) error {
	cd := &navigation.ShipCooldown{ShipSymbol: ship, RemainingSeconds: data.RemainingSeconds}
	if data.Expiration != "" {
		if t, err := shared.ParseServerTime(data.Expiration); err == nil {
			cd.Expiration = t
		}
	}
	return c.store.SaveCooldown(ctx, cd)
}

// Role returns the ship's registered role, refreshing on miss
func (c *Cache) Role(ctx context.Context, ship string) (string, error) {
	role, err := c.store.GetRole(ctx, ship)
	if err != nil {
		return "", err
	}
	if role != "" {
		return role, nil
	}
	if err := c.RefreshShip(ctx, ship); err != nil {
		return "", err
	}
	return c.store.GetRole(ctx, ship)
}

// RefreshShip pulls a full snapshot of one ship and writes every component
// through to the store.
func (c *Cache) RefreshShip(ctx context.Context, ship string) error {
	data, err := c.remote.GetShip(ctx, ship)
	if err != nil {
		return fmt.Errorf("failed to refresh ship %s: %w", ship, err)
	}
	return c.putShip(ctx, data)
}

// RefreshFleet pulls every ship the agent owns and writes them through.
// Run once at startup so locks and dispatchers see the whole fleet.
func (c *Cache) RefreshFleet(ctx context.Context) (int, error) {
	ships, err := c.remote.ListShips(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh fleet: %w", err)
	}
	for i := range ships {
		if err := c.putShip(ctx, &ships[i]); err != nil {
			return 0, err
		}
	}
	return len(ships), nil
}

func (c *Cache) putShip(ctx context.Context, data *api.ShipData) error {
	ship := data.Symbol
	if err := c.PutNav(ctx, ship, &data.Nav); err != nil {
		return err
	}
	if err := c.PutFuel(ctx, ship, &data.Fuel); err != nil {
		return err
	}
	if err := c.PutCargo(ctx, ship, &data.Cargo); err != nil {
		return err
	}
	if err := c.PutCooldown(ctx, ship, &data.Cooldown); err != nil {
		return err
	}
	if err := c.store.SaveRegistration(ctx, ship, data.Registration.Role, data.Registration.Name); err != nil {
		return err
	}
	mounts := make([]navigation.ShipMount, 0, len(data.Mounts))
	for _, m := range data.Mounts {
		mounts = append(mounts, navigation.ShipMount{ShipSymbol: ship, Symbol: m.Symbol, Strength: m.Strength})
	}
	return c.store.SaveMounts(ctx, ship, mounts)
}
