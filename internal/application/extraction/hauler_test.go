package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetcore/internal/application/ship"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// frmStub grants every request and records lock churn
type frmStub struct {
	granted  []string
	released []string
	blocked  map[string]bool
}

func (f *frmStub) Request(_ context.Context, shipSymbol, _ string, _ int) (bool, error) {
	f.granted = append(f.granted, shipSymbol)
	return true, nil
}

func (f *frmStub) Release(_ context.Context, shipSymbol string, _ bool) error {
	f.released = append(f.released, shipSymbol)
	return nil
}

func (f *frmStub) Lock(_ context.Context, _, _ string, _ int) error { return nil }

func (f *frmStub) SetBlocked(_ context.Context, shipSymbol string, blocked bool) error {
	if f.blocked == nil {
		f.blocked = make(map[string]bool)
	}
	f.blocked[shipSymbol] = blocked
	return nil
}

func (f *frmStub) ReleaseFleet(_ context.Context, _ string, _ bool) error { return nil }

func (f *frmStub) AvailableShips(_ context.Context, _ []string, _ string, _ int, _ string) ([]string, error) {
	return nil, nil
}

func (f *frmStub) FleetOf(_ context.Context, _ string) ([]string, error) { return nil, nil }

// opsStub serves cargo manifests from a fixture map
type opsStub struct {
	cargo map[string]*shared.Cargo
}

func (o *opsStub) Navigate(_ context.Context, _, _ string) error       { return nil }
func (o *opsStub) Orbit(_ context.Context, _ string) error             { return nil }
func (o *opsStub) AwaitNavigation(_ context.Context, _ string) error   { return nil }
func (o *opsStub) ClearCargo(_ context.Context, _ string) error        { return nil }
func (o *opsStub) TransferAll(_ context.Context, _, _ string) error    { return nil }
func (o *opsStub) ShipWaypoint(_ context.Context, _ string) (string, error) {
	return "X1-TS5-A1", nil
}

func (o *opsStub) Extract(_ context.Context, _ string, _ []string) (*ship.ExtractionOutcome, error) {
	return &ship.ExtractionOutcome{}, nil
}

func (o *opsStub) Siphon(_ context.Context, _ string, _ []string) (*ship.ExtractionOutcome, error) {
	return &ship.ExtractionOutcome{}, nil
}

func (o *opsStub) Cargo(_ context.Context, shipSymbol string) (*shared.Cargo, error) {
	return o.cargo[shipSymbol], nil
}

// ledgerStub satisfies yieldLedger with empty books
type ledgerStub struct{}

func (l *ledgerStub) YieldSince(_ context.Context, _ []string, _ time.Time) (int, error) {
	return 0, nil
}

func (l *ledgerStub) WhitelistedSales(_ context.Context, _ string, _ time.Time) (int, int, error) {
	return 0, 0, nil
}

func (l *ledgerStub) AppendYieldSale(_ context.Context, _, _ string, _, _ int, _, _ time.Time) error {
	return nil
}

func cargoOf(t *testing.T, capacity, units int) *shared.Cargo {
	t.Helper()
	var inventory []shared.CargoItem
	if units > 0 {
		inventory = []shared.CargoItem{{Symbol: "IRON_ORE", Units: units}}
	}
	cargo, err := shared.NewCargo(capacity, units, inventory)
	require.NoError(t, err)
	return cargo
}

func newHaulerController(frm *frmStub, ops *opsStub) *HaulerController {
	return &HaulerController{
		cfg:      HaulerConfig{System: "X1-TS5", MaxHaulers: 3},
		frm:      frm,
		ops:      ops,
		ledger:   &ledgerStub{},
		clock:    shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		id:       "EXTRACTION-CONTROLLER-HAULERS-X1-TS5",
		priority: 350,
		fleet:    make(map[string]*haulEntry),
	}
}

func TestDispatchHaulers_ReleasesHaulerBelowMinHaulRatio(t *testing.T) {
	// Free capacity 40; drones hold 18 + 10 = 28 < 0.75*40 = 30. The first
	// hauler is released untouched and the smaller one takes the job.
	frm := &frmStub{}
	ops := &opsStub{cargo: map[string]*shared.Cargo{
		"HAULER-1": cargoOf(t, 40, 0),
		"HAULER-2": cargoOf(t, 30, 0),
		"DRONE-1":  cargoOf(t, 20, 18),
		"DRONE-2":  cargoOf(t, 20, 10),
	}}
	c := newHaulerController(frm, ops)

	marked := make(map[string]bool)
	covered := c.dispatchHaulers(context.Background(), []string{"HAULER-1", "HAULER-2"}, []string{"DRONE-1", "DRONE-2"}, marked)

	assert.True(t, covered)
	assert.Contains(t, frm.released, "HAULER-1")
	require.Contains(t, c.fleet, "HAULER-2")
	assert.ElementsMatch(t, []string{"DRONE-1", "DRONE-2"}, c.fleet["HAULER-2"].targets)
	assert.True(t, marked["DRONE-1"])
	assert.True(t, marked["DRONE-2"])
}

func TestDispatchHaulers_RoundsUpTargetsWithinCapacity(t *testing.T) {
	// Free capacity 30 only fits the first two drones (18+10); the third
	// stays unserviced and the dispatch reports incomplete coverage.
	frm := &frmStub{}
	ops := &opsStub{cargo: map[string]*shared.Cargo{
		"HAULER-1": cargoOf(t, 30, 0),
		"DRONE-1":  cargoOf(t, 20, 18),
		"DRONE-2":  cargoOf(t, 20, 10),
		"DRONE-3":  cargoOf(t, 20, 15),
	}}
	c := newHaulerController(frm, ops)

	covered := c.dispatchHaulers(context.Background(), []string{"HAULER-1"}, []string{"DRONE-1", "DRONE-2", "DRONE-3"}, make(map[string]bool))

	assert.False(t, covered)
	require.Contains(t, c.fleet, "HAULER-1")
	assert.ElementsMatch(t, []string{"DRONE-1", "DRONE-2"}, c.fleet["HAULER-1"].targets)
}
