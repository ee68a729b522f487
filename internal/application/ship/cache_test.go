package ship_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetcore/internal/adapters/api"
	"github.com/andrescamacho/fleetcore/internal/adapters/persistence"
	"github.com/andrescamacho/fleetcore/internal/application/ship"
	"github.com/andrescamacho/fleetcore/internal/domain/navigation"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	"github.com/andrescamacho/fleetcore/test/helpers"
)

// remoteStub plays the game API with canned ship state
type remoteStub struct {
	nav      api.NavData
	cargo    api.CargoData
	navCalls int
}

func (r *remoteStub) GetShip(_ context.Context, symbol string) (*api.ShipData, error) {
	return &api.ShipData{
		Symbol:       symbol,
		Registration: api.RegistrationData{Role: "HAULER"},
		Nav:          r.nav,
		Fuel:         api.FuelData{Current: 400, Capacity: 400},
		Cargo:        r.cargo,
	}, nil
}

func (r *remoteStub) ListShips(_ context.Context) ([]api.ShipData, error) {
	return nil, nil
}

func (r *remoteStub) GetNav(_ context.Context, _ string) (*api.NavData, error) {
	r.navCalls++
	return &r.nav, nil
}

func (r *remoteStub) GetCargo(_ context.Context, _ string) (*api.CargoData, error) {
	return &r.cargo, nil
}

func (r *remoteStub) GetCooldown(_ context.Context, _ string) (*api.CooldownData, error) {
	return &api.CooldownData{}, nil
}

func newCache(t *testing.T, remote *remoteStub) (*ship.Cache, *persistence.ShipStateRepository, *shared.MockClock) {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	store := persistence.NewShipStateRepository(db, clock)
	return ship.NewCache(store, remote, clock), store, clock
}

func TestNav_RefreshesStaleTransitRecords(t *testing.T) {
	remote := &remoteStub{nav: api.NavData{
		SystemSymbol:   "X1-TS5",
		WaypointSymbol: "X1-TS5-B2",
		Status:         navigation.NavStatusInOrbit,
		FlightMode:     "CRUISE",
	}}
	cache, store, clock := newCache(t, remote)
	ctx := context.Background()

	// Seed a transit record that arrives in the past.
	require.NoError(t, store.SaveNav(ctx, &navigation.ShipNav{
		ShipSymbol:     "S1",
		SystemSymbol:   "X1-TS5",
		WaypointSymbol: "X1-TS5-A1",
		Status:         navigation.NavStatusInTransit,
		FlightMode:     "CRUISE",
		Arrival:        clock.Now().Add(-time.Minute),
	}))

	nav, err := cache.Nav(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.navCalls)
	assert.Equal(t, navigation.NavStatusInOrbit, nav.Status)
	assert.Equal(t, "X1-TS5-B2", nav.WaypointSymbol)
}

func TestNav_ServesFreshRecordsWithoutRemoteCalls(t *testing.T) {
	remote := &remoteStub{}
	cache, store, clock := newCache(t, remote)
	ctx := context.Background()

	require.NoError(t, store.SaveNav(ctx, &navigation.ShipNav{
		ShipSymbol:     "S1",
		SystemSymbol:   "X1-TS5",
		WaypointSymbol: "X1-TS5-A1",
		Status:         navigation.NavStatusInTransit,
		FlightMode:     "CRUISE",
		Arrival:        clock.Now().Add(time.Minute),
	}))

	nav, err := cache.Nav(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 0, remote.navCalls)
	assert.Equal(t, navigation.NavStatusInTransit, nav.Status)
}

func TestCargo_MissReadsThroughAndKeepsSentinel(t *testing.T) {
	remote := &remoteStub{cargo: api.CargoData{
		Capacity: 40,
		Units:    28,
		Inventory: []api.CargoItemData{
			{Symbol: "IRON_ORE", Units: 18},
			{Symbol: "ICE_WATER", Units: 10},
		},
	}}
	cache, store, _ := newCache(t, remote)
	ctx := context.Background()

	cargo, err := cache.Cargo(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 40, cargo.Capacity)
	assert.Equal(t, 28, cargo.Units)

	// Capacity stays readable after the hold empties.
	require.NoError(t, cache.ApplyCargoDelta(ctx, "S1", "IRON_ORE", -18))
	require.NoError(t, cache.ApplyCargoDelta(ctx, "S1", "ICE_WATER", -10))

	cargo, err = store.GetCargo(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, cargo)
	assert.Equal(t, 40, cargo.Capacity)
	assert.True(t, cargo.IsEmpty())
	assert.Empty(t, cargo.Inventory)
}

func TestApplyCargoDelta_MaintainsUnitSum(t *testing.T) {
	remote := &remoteStub{cargo: api.CargoData{
		Capacity:  40,
		Units:     10,
		Inventory: []api.CargoItemData{{Symbol: "IRON_ORE", Units: 10}},
	}}
	cache, store, _ := newCache(t, remote)
	ctx := context.Background()

	require.NoError(t, cache.ApplyCargoDelta(ctx, "S1", "ICE_WATER", 5))

	cargo, err := store.GetCargo(ctx, "S1")
	require.NoError(t, err)
	sum := 0
	for _, item := range cargo.Inventory {
		sum += item.Units
	}
	assert.Equal(t, 15, cargo.Units)
	assert.Equal(t, cargo.Units, sum)
}
