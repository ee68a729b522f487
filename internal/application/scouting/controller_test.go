package scouting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetcore/internal/domain/market"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// frmStub serves a fixed set of available probes
type frmStub struct {
	available []string
}

func (f *frmStub) Request(_ context.Context, _, _ string, _ int) (bool, error) { return false, nil }
func (f *frmStub) Release(_ context.Context, _ string, _ bool) error           { return nil }
func (f *frmStub) Lock(_ context.Context, _, _ string, _ int) error            { return nil }
func (f *frmStub) SetBlocked(_ context.Context, _ string, _ bool) error        { return nil }
func (f *frmStub) ReleaseFleet(_ context.Context, _ string, _ bool) error      { return nil }
func (f *frmStub) FleetOf(_ context.Context, _ string) ([]string, error)       { return nil, nil }

func (f *frmStub) AvailableShips(_ context.Context, _ []string, _ string, _ int, _ string) ([]string, error) {
	return f.available, nil
}

// opsStub places every probe at a fixed waypoint
type opsStub struct {
	at string
}

func (o *opsStub) Navigate(_ context.Context, _, _ string) error   { return nil }
func (o *opsStub) Dock(_ context.Context, _ string) error          { return nil }
func (o *opsStub) RefreshMarket(_ context.Context, _ string) error { return nil }
func (o *opsStub) RefreshShipyard(_ context.Context, _ string) error {
	return nil
}
func (o *opsStub) ShipWaypoint(_ context.Context, _ string) (string, error) {
	return o.at, nil
}

// intelStub serves canned market ages
type intelStub struct {
	ages []market.MarketAge
}

func (i *intelStub) AllMarketsByFreshness(_ context.Context, _ string, _ time.Duration) ([]market.MarketAge, error) {
	return i.ages, nil
}

func (i *intelStub) NonFuelMarketsByFreshness(_ context.Context, _ string, _ time.Duration) ([]market.MarketAge, error) {
	return i.ages, nil
}

func (i *intelStub) ImportExportMarketsByFreshness(_ context.Context, _ string, _ time.Duration) ([]market.MarketAge, error) {
	return i.ages, nil
}

func TestPrioritisedMarkets_PrefersCurrentWaypointAndStaleness(t *testing.T) {
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	now := clock.Now()
	fresh := now
	stale := now.Add(-100 * time.Second)

	dists := map[string]float64{
		"X1-TS5-A1": 0,  // probe's current waypoint
		"X1-TS5-B2": 10, // maximally stale
		"X1-TS5-C3": 10, // as fresh as A1, same distance as B2
	}
	c, err := NewController(Config{System: "X1-TS5", RefreshFreq: 10 * time.Minute, Mode: ModeAll},
		&frmStub{available: []string{"PROBE-1"}},
		&opsStub{at: "X1-TS5-A1"},
		&intelStub{ages: []market.MarketAge{
			{MarketSymbol: "X1-TS5-C3", LastUpdated: &fresh},
			{MarketSymbol: "X1-TS5-B2", LastUpdated: &stale},
			{MarketSymbol: "X1-TS5-A1", LastUpdated: &fresh},
		}},
		func(_ context.Context, a, b string) (float64, error) {
			if a == b {
				return 0, nil
			}
			return dists[b], nil
		},
		clock)
	require.NoError(t, err)

	queue, err := c.prioritisedMarkets(context.Background())
	require.NoError(t, err)

	// A1 scores below zero (probe is parked there); B2's staleness zeroes
	// out its distance penalty; C3 pays full freight for being fresh and far.
	assert.Equal(t, []string{"X1-TS5-A1", "X1-TS5-B2", "X1-TS5-C3"}, queue)
}

func TestPrioritisedMarkets_FallsBackToStalenessOrder(t *testing.T) {
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	c, err := NewController(Config{System: "X1-TS5", RefreshFreq: 10 * time.Minute, Mode: ModeAll},
		&frmStub{available: nil},
		&opsStub{at: "X1-TS5-A1"},
		&intelStub{ages: []market.MarketAge{
			{MarketSymbol: "X1-TS5-B2"},
			{MarketSymbol: "X1-TS5-A1"},
		}},
		func(_ context.Context, _, _ string) (float64, error) { return 0, nil },
		clock)
	require.NoError(t, err)

	queue, err := c.prioritisedMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"X1-TS5-B2", "X1-TS5-A1"}, queue)
}

func TestNewController_RejectsUnknownMode(t *testing.T) {
	_, err := NewController(Config{System: "X1-TS5", Mode: "sometimes"}, &frmStub{}, &opsStub{}, &intelStub{}, nil, nil)
	assert.Error(t, err)
}
