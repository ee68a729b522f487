package trading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetcore/internal/domain/market"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	domaintrading "github.com/andrescamacho/fleetcore/internal/domain/trading"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/tasks"
)

// frmStub records released ships
type frmStub struct {
	released []string
}

func (f *frmStub) Request(_ context.Context, _, _ string, _ int) (bool, error) { return true, nil }
func (f *frmStub) Lock(_ context.Context, _, _ string, _ int) error            { return nil }
func (f *frmStub) SetBlocked(_ context.Context, _ string, _ bool) error        { return nil }
func (f *frmStub) ReleaseFleet(_ context.Context, _ string, _ bool) error      { return nil }
func (f *frmStub) FleetOf(_ context.Context, _ string) ([]string, error)       { return nil, nil }

func (f *frmStub) Release(_ context.Context, shipSymbol string, _ bool) error {
	f.released = append(f.released, shipSymbol)
	return nil
}

func (f *frmStub) AvailableShips(_ context.Context, _ []string, _ string, _ int, _ string) ([]string, error) {
	return nil, nil
}

// ledgerStub serves canned per-ship profits
type ledgerStub struct {
	profit int
}

func (l *ledgerStub) NetCashMovement(_ context.Context, _ string, _, _ time.Time) (int, error) {
	return l.profit, nil
}

func (l *ledgerStub) AppendTrade(_ context.Context, _, _, _, _, _ string, _, _ int, _, _ time.Time) error {
	return nil
}

func (l *ledgerStub) TradeProfitSince(_ context.Context, _, _ string, _ time.Time) (int, error) {
	return l.profit, nil
}

func finishedTask(t *testing.T) *tasks.Task {
	t.Helper()
	task := tasks.Spawn(context.Background(), "done", func(ctx context.Context) (bool, error) {
		return true, nil
	})
	_, err := task.Await(context.Background())
	require.NoError(t, err)
	return task
}

func testRoute() domaintrading.TradeRoute {
	return domaintrading.TradeRoute{
		Symbol:        "IRON_ORE",
		Source:        "X1-TS5-A1",
		Sink:          "X1-TS5-B2",
		TradeVolume:   20,
		Distance:      100,
		PurchasePrice: 100,
		SellPrice:     200,
		NetProfit:     2000,
		SrcSupply:     market.SupplyAbundant,
		SinkSupply:    market.SupplyScarce,
	}
}

func TestDrainFinished_SettlesLedgerAgainstOwnTrade(t *testing.T) {
	frm := &frmStub{}
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	c := &Controller{
		cfg:     Config{System: "X1-TS5", MaxHaulers: 2},
		frm:     frm,
		ledger:  &ledgerStub{profit: 1200},
		clock:   clock,
		id:      "TRADE-CONTROLLER-X1-TS5",
		ongoing: domaintrading.NewLedger(),
		fleet:   make(map[string]*tradeEntry),
	}

	route := testRoute()
	trade := TradeTask{Route: route, Units: 20, Repeats: 3}
	c.ongoing.Add(route.Key(), 3)
	c.fleet["HAULER-1"] = &tradeEntry{
		timeStart: clock.Now(),
		task:      &tradeTaskHandle{trade: trade, task: finishedTask(t)},
	}

	profit, err := c.drainFinished(context.Background())
	require.NoError(t, err)

	// All three bundled repeats come off the ledger; the entry disappears.
	assert.Equal(t, 0, c.ongoing.Ongoing(route.Key()))
	assert.Equal(t, 0, c.ongoing.Total())
	assert.Equal(t, 1200, profit)
	assert.Equal(t, []string{"HAULER-1"}, frm.released)
	assert.Empty(t, c.fleet)
}

func TestDrainFinished_LeavesRunningTradesAlone(t *testing.T) {
	frm := &frmStub{}
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	c := &Controller{
		cfg:     Config{System: "X1-TS5", MaxHaulers: 2},
		frm:     frm,
		ledger:  &ledgerStub{},
		clock:   clock,
		id:      "TRADE-CONTROLLER-X1-TS5",
		ongoing: domaintrading.NewLedger(),
		fleet:   make(map[string]*tradeEntry),
	}

	release := make(chan struct{})
	defer close(release)
	running := tasks.Spawn(context.Background(), "running", func(ctx context.Context) (bool, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return true, nil
	})

	route := testRoute()
	c.ongoing.Add(route.Key(), 1)
	c.fleet["HAULER-1"] = &tradeEntry{
		timeStart: clock.Now(),
		task:      &tradeTaskHandle{trade: TradeTask{Route: route, Units: 20, Repeats: 1}, task: running},
	}

	_, err := c.drainFinished(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, c.ongoing.Ongoing(route.Key()))
	assert.Empty(t, frm.released)
	assert.Contains(t, c.fleet, "HAULER-1")
}
