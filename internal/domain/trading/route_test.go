package trading_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andrescamacho/fleetcore/internal/domain/market"
	"github.com/andrescamacho/fleetcore/internal/domain/trading"
)

func route(src, snk string, purchase, sell int) trading.TradeRoute {
	return trading.TradeRoute{
		Symbol:        "IRON_ORE",
		Source:        "X1-TS5-A1",
		Sink:          "X1-TS5-B2",
		TradeVolume:   20,
		Distance:      100,
		PurchasePrice: purchase,
		SellPrice:     sell,
		SrcSupply:     src,
		SinkSupply:    snk,
	}
}

func TestMaxTraders_DeepSourceThinSink(t *testing.T) {
	// ROI 2.0 → margin 100% → ceil(100/49) = 3
	r := route(market.SupplyAbundant, market.SupplyScarce, 100, 200)
	assert.Equal(t, 3, r.MaxTraders())
}

func TestMaxTraders_ModerateSupply(t *testing.T) {
	// ROI 1.6 → margin 60% → ceil(60/51) = 2
	r := route(market.SupplyModerate, market.SupplyScarce, 100, 160)
	assert.Equal(t, 2, r.MaxTraders())
}

func TestMaxTraders_DefaultsToOne(t *testing.T) {
	r := route(market.SupplyLimited, market.SupplyScarce, 100, 500)
	assert.Equal(t, 1, r.MaxTraders())
}

func TestRepeats_BundlesUpToCapacityAndSlots(t *testing.T) {
	r := route(market.SupplyAbundant, market.SupplyScarce, 100, 200)
	r.TradeVolume = 20

	// cargo 60 / volume 20 = 3 trips; 4-1 = 3 slots remain → bundle 3.
	assert.Equal(t, 3, r.Repeats(60, 3))

	// Slots bound tighter than capacity.
	assert.Equal(t, 2, r.Repeats(60, 2))

	// Tiny hold still executes one trip.
	assert.Equal(t, 1, r.Repeats(10, 3))
}

func TestLedger_AddRemoveAndTotal(t *testing.T) {
	l := trading.NewLedger()
	r := route(market.SupplyAbundant, market.SupplyScarce, 100, 200)
	key := r.Key()

	l.Add(key, 3)
	assert.Equal(t, 3, l.Ongoing(key))
	assert.Equal(t, 3, l.Total())

	l.Remove(key, 1)
	assert.Equal(t, 2, l.Ongoing(key))

	// Removing the rest deletes the entry.
	l.Remove(key, 2)
	assert.Equal(t, 0, l.Ongoing(key))
	assert.Equal(t, 0, l.Total())

	// Removing from an unknown route is a no-op.
	l.Remove(key, 1)
	assert.Equal(t, 0, l.Ongoing(key))
}

func TestProfitOverDistance(t *testing.T) {
	r := route(market.SupplyAbundant, market.SupplyScarce, 100, 200)
	r.NetProfit = 2000
	r.Distance = 100
	assert.Equal(t, 20.0, r.ProfitOverDistance())
}
