package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetcore/internal/adapters/persistence"
	appfleet "github.com/andrescamacho/fleetcore/internal/application/fleet"
	"github.com/andrescamacho/fleetcore/internal/domain/fleet"
	"github.com/andrescamacho/fleetcore/internal/domain/navigation"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	"github.com/andrescamacho/fleetcore/test/helpers"
)

// navStub serves nav state for the self-heal path and records forced refreshes
type navStub struct {
	status    map[string]string
	refreshed []string
}

func (n *navStub) Nav(_ context.Context, ship string) (*navigation.ShipNav, error) {
	status := n.status[ship]
	if status == "" {
		status = navigation.NavStatusInOrbit
	}
	return &navigation.ShipNav{ShipSymbol: ship, Status: status, WaypointSymbol: "X1-TS5-A1"}, nil
}

func (n *navStub) RefreshNav(_ context.Context, ship string) error {
	n.refreshed = append(n.refreshed, ship)
	n.status[ship] = navigation.NavStatusInOrbit
	return nil
}

func newManager(t *testing.T) (*appfleet.Manager, *persistence.ControlRepository, *navStub, *shared.MockClock) {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	store := persistence.NewControlRepository(db, clock, 0)
	nav := &navStub{status: make(map[string]string)}
	return appfleet.NewManager(store, nav), store, nav, clock
}

func TestRequest_PreemptsLowerPriority(t *testing.T) {
	mgr, store, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))

	granted, err := mgr.Request(ctx, "S1", "B", 300)
	require.NoError(t, err)
	assert.True(t, granted)

	lock, err := store.GetLock(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "B", lock.Controller)
	assert.Equal(t, 300, lock.Priority)
}

func TestRequest_RefusedAgainstHigherPriority(t *testing.T) {
	mgr, store, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 300))

	granted, err := mgr.Request(ctx, "S1", "B", 100)
	require.NoError(t, err)
	assert.False(t, granted)

	lock, err := store.GetLock(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "A", lock.Controller)
	assert.Equal(t, 300, lock.Priority)
}

func TestRequest_EqualPriorityDoesNotPreempt(t *testing.T) {
	mgr, _, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))

	granted, err := mgr.Request(ctx, "S1", "B", 100)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestRequest_IsIdempotentForOwner(t *testing.T) {
	mgr, _, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))

	granted, err := mgr.Request(ctx, "S1", "A", 100)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestRequest_QueuedGrantAfterUnblockAndRelease(t *testing.T) {
	mgr, store, _, clock := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))
	require.NoError(t, mgr.SetBlocked(ctx, "S1", true))

	granted, err := mgr.Request(ctx, "S1", "B", 100)
	require.NoError(t, err)
	assert.False(t, granted)

	// Same priority: queue order is decided by request age.
	clock.Advance(time.Second)
	granted, err = mgr.Request(ctx, "S1", "C", 100)
	require.NoError(t, err)
	assert.False(t, granted)

	head, err := store.PeekRequest(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "B", head)

	require.NoError(t, mgr.SetBlocked(ctx, "S1", false))
	require.NoError(t, mgr.Release(ctx, "S1", false))

	// B is at the head of the queue and gets the ship; its entry is popped.
	granted, err = mgr.Request(ctx, "S1", "B", 100)
	require.NoError(t, err)
	assert.True(t, granted)

	head, err = store.PeekRequest(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "C", head)
}

func TestRequest_QueueHeadBlocksOthers(t *testing.T) {
	mgr, _, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))
	require.NoError(t, mgr.SetBlocked(ctx, "S1", true))
	_, err := mgr.Request(ctx, "S1", "B", 100)
	require.NoError(t, err)
	require.NoError(t, mgr.SetBlocked(ctx, "S1", false))
	require.NoError(t, mgr.Release(ctx, "S1", false))

	// C isn't at the head of the queue, so the free ship goes to B first.
	granted, err := mgr.Request(ctx, "S1", "C", 100)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestRequest_ExpiredEntriesHaveNoEffect(t *testing.T) {
	mgr, store, _, clock := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))
	require.NoError(t, mgr.SetBlocked(ctx, "S1", true))
	_, err := mgr.Request(ctx, "S1", "B", 100)
	require.NoError(t, err)

	clock.Advance(41 * time.Second)

	head, err := store.PeekRequest(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, head)

	// With B's request expired, C takes the free ship immediately.
	require.NoError(t, mgr.SetBlocked(ctx, "S1", false))
	require.NoError(t, mgr.Release(ctx, "S1", false))
	granted, err := mgr.Request(ctx, "S1", "C", 100)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestRequest_SelfHealsOrphanedTransit(t *testing.T) {
	mgr, _, nav, _ := newManager(t)
	ctx := context.Background()

	nav.status["S1"] = navigation.NavStatusInTransit

	granted, err := mgr.Request(ctx, "S1", "A", 100)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Contains(t, nav.refreshed, "S1")
}

func TestRelease_BlockedShipNeedsForce(t *testing.T) {
	mgr, store, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))
	require.NoError(t, mgr.SetBlocked(ctx, "S1", true))

	assert.Error(t, mgr.Release(ctx, "S1", false))

	require.NoError(t, mgr.Release(ctx, "S1", true))
	lock, err := store.GetLock(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, lock.IsFree())
	assert.Equal(t, -1, lock.Priority)
	assert.False(t, lock.Blocked)
}

func TestLockThenReleaseRoundTrip(t *testing.T) {
	mgr, store, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))
	require.NoError(t, mgr.Release(ctx, "S1", false))

	lock, err := store.GetLock(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, lock.IsFree())
	assert.Equal(t, -1, lock.Priority)
	assert.False(t, lock.Blocked)
}

func TestSetBlocked_PreservesOwnership(t *testing.T) {
	mgr, store, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))
	require.NoError(t, mgr.SetBlocked(ctx, "S1", true))
	require.NoError(t, mgr.SetBlocked(ctx, "S1", false))

	lock, err := store.GetLock(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "A", lock.Controller)
	assert.Equal(t, 100, lock.Priority)
	assert.False(t, lock.Blocked)
}

func TestReleaseFleet_FreesEveryOwnedShip(t *testing.T) {
	mgr, store, _, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mgr.Lock(ctx, "S1", "A", 100))
	require.NoError(t, mgr.Lock(ctx, "S2", "A", 100))
	require.NoError(t, mgr.Lock(ctx, "S3", "B", 100))

	require.NoError(t, mgr.ReleaseFleet(ctx, "A", false))

	ships, err := store.FleetOf(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, ships)
	ships, err = store.FleetOf(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"S3"}, ships)
}

func TestAvailableShips_FiltersOwnershipAndRole(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	store := persistence.NewControlRepository(db, clock, 0)
	shipState := persistence.NewShipStateRepository(db, clock)
	nav := &navStub{status: make(map[string]string)}
	mgr := appfleet.NewManager(store, nav)
	ctx := context.Background()

	for _, s := range []struct {
		symbol, role string
	}{
		{"S1", fleet.RoleSatellite},
		{"S2", fleet.RoleSatellite},
		{"S3", fleet.RoleHauler},
	} {
		require.NoError(t, shipState.SaveNav(ctx, &navigation.ShipNav{
			ShipSymbol:     s.symbol,
			SystemSymbol:   "X1-TS5",
			WaypointSymbol: "X1-TS5-A1",
			Status:         navigation.NavStatusInOrbit,
			FlightMode:     "CRUISE",
		}))
		require.NoError(t, shipState.SaveRegistration(ctx, s.symbol, s.role, ""))
	}

	// S1 owned at higher priority, S2 free, S3 wrong role.
	require.NoError(t, mgr.Lock(ctx, "S1", "OTHER", 500))

	available, err := mgr.AvailableShips(ctx, []string{"X1-TS5"}, fleet.RoleSatellite, 100, "ME")
	require.NoError(t, err)
	assert.Equal(t, []string{"S2"}, available)

	// At an outbidding priority, the owned satellite becomes available too.
	available, err = mgr.AvailableShips(ctx, []string{"X1-TS5"}, fleet.RoleSatellite, 1000, "ME")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"S1", "S2"}, available)
}
