package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetcore/internal/adapters/persistence"
	"github.com/andrescamacho/fleetcore/internal/domain/market"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	"github.com/andrescamacho/fleetcore/test/helpers"
)

func good(symbol, tradeType, supply string, purchase, sell, volume int) market.TradeGood {
	return market.TradeGood{
		Symbol:        symbol,
		Type:          tradeType,
		TradeVolume:   volume,
		Supply:        supply,
		PurchasePrice: purchase,
		SellPrice:     sell,
	}
}

func TestCurrentGood_ServesLatestSnapshot(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := persistence.NewMarketRepository(db, clock)
	ctx := context.Background()

	require.NoError(t, repo.AppendSnapshots(ctx, "X1-TS5-A1", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeExport, market.SupplyHigh, 100, 90, 20),
	}))
	clock.Advance(time.Minute)
	require.NoError(t, repo.AppendSnapshots(ctx, "X1-TS5-A1", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeExport, market.SupplyAbundant, 80, 70, 20),
	}))

	current, err := repo.CurrentGood(ctx, "X1-TS5-A1", "IRON_ORE")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 80, current.PurchasePrice)
	assert.Equal(t, market.SupplyAbundant, current.Supply)

	missing, err := repo.CurrentGood(ctx, "X1-TS5-A1", "GOLD")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFuelStops_ListsMarketsSellingFuel(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := persistence.NewMarketRepository(db, clock)
	ctx := context.Background()

	require.NoError(t, repo.AppendSnapshots(ctx, "X1-TS5-A1", []market.TradeGood{
		good(market.FuelSymbol, market.TradeTypeExchange, market.SupplyModerate, 70, 60, 100),
	}))
	require.NoError(t, repo.AppendSnapshots(ctx, "X1-TS5-B2", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeExport, market.SupplyHigh, 100, 90, 20),
	}))
	require.NoError(t, repo.AppendSnapshots(ctx, "X9-QQ1-A1", []market.TradeGood{
		good(market.FuelSymbol, market.TradeTypeExchange, market.SupplyModerate, 70, 60, 100),
	}))

	stops, err := repo.FuelStops(ctx, "X1-TS5")
	require.NoError(t, err)
	assert.Equal(t, []string{"X1-TS5-A1"}, stops)
}

func TestImportExportMarketsByFreshness_SelectsOnlyStaleTwoWayMarkets(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := persistence.NewMarketRepository(db, clock)
	ctx := context.Background()

	// A1 imports and exports; B2 only exchanges; C3 imports and exports but
	// is fresh at query time.
	require.NoError(t, repo.AppendSnapshots(ctx, "X1-TS5-A1", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeExport, market.SupplyHigh, 100, 90, 20),
		good("MACHINERY", market.TradeTypeImport, market.SupplyScarce, 400, 450, 10),
	}))
	require.NoError(t, repo.AppendSnapshots(ctx, "X1-TS5-B2", []market.TradeGood{
		good(market.FuelSymbol, market.TradeTypeExchange, market.SupplyModerate, 70, 60, 100),
	}))
	clock.Advance(30 * time.Minute)
	require.NoError(t, repo.AppendSnapshots(ctx, "X1-TS5-C3", []market.TradeGood{
		good("ICE_WATER", market.TradeTypeExport, market.SupplyHigh, 10, 8, 60),
		good("PLASTICS", market.TradeTypeImport, market.SupplyLimited, 90, 100, 30),
	}))

	stale, err := repo.ImportExportMarketsByFreshness(ctx, "X1-TS5", 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "X1-TS5-A1", stale[0].MarketSymbol)
}

func TestAllMarketsByFreshness_NeverScannedFirst(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	marketRepo := persistence.NewMarketRepository(db, clock)
	waypointRepo := persistence.NewWaypointRepository(db, clock)
	ctx := context.Background()

	for _, symbol := range []string{"X1-TS5-A1", "X1-TS5-B2"} {
		wp, err := shared.NewWaypoint(symbol, 0, 0)
		require.NoError(t, err)
		wp.Type = "PLANET"
		wp.Traits = []string{market.MarketplaceTrait}
		require.NoError(t, waypointRepo.Save(ctx, wp))
	}

	require.NoError(t, marketRepo.AppendSnapshots(ctx, "X1-TS5-B2", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeExport, market.SupplyHigh, 100, 90, 20),
	}))
	clock.Advance(time.Hour)

	ages, err := marketRepo.AllMarketsByFreshness(ctx, "X1-TS5", 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, ages, 2)
	assert.Equal(t, "X1-TS5-A1", ages[0].MarketSymbol)
	assert.Nil(t, ages[0].LastUpdated)
	assert.Equal(t, "X1-TS5-B2", ages[1].MarketSymbol)
	assert.NotNil(t, ages[1].LastUpdated)
}

func TestGreedyTradeCandidates_AppliesFloorsAndOrdering(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	marketRepo := persistence.NewMarketRepository(db, clock)
	waypointRepo := persistence.NewWaypointRepository(db, clock)
	ctx := context.Background()

	coords := map[string][2]float64{
		"X1-TS5-A1": {0, 0},
		"X1-TS5-B2": {100, 0},
		"X1-TS5-C3": {0, 50},
	}
	for symbol, xy := range coords {
		wp, err := shared.NewWaypoint(symbol, xy[0], xy[1])
		require.NoError(t, err)
		wp.Type = "PLANET"
		require.NoError(t, waypointRepo.Save(ctx, wp))
	}
	// Distances are precomputed into the cache by the first lookup.
	for _, pair := range [][2]string{{"X1-TS5-A1", "X1-TS5-B2"}, {"X1-TS5-A1", "X1-TS5-C3"}, {"X1-TS5-B2", "X1-TS5-C3"}} {
		_, err := waypointRepo.Distance(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	require.NoError(t, marketRepo.AppendSnapshots(ctx, "X1-TS5-A1", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeExport, market.SupplyAbundant, 100, 90, 20),
		good("GOLD", market.TradeTypeExport, market.SupplyAbundant, 100, 90, 2), // volume floor
	}))
	require.NoError(t, marketRepo.AppendSnapshots(ctx, "X1-TS5-B2", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeImport, market.SupplyScarce, 190, 200, 20),
	}))
	require.NoError(t, marketRepo.AppendSnapshots(ctx, "X1-TS5-C3", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeImport, market.SupplyScarce, 180, 190, 20),
	}))

	routes, err := marketRepo.GreedyTradeCandidates(ctx, "X1-TS5", 1000, 500, []string{"FAB_MATS"})
	require.NoError(t, err)
	require.Len(t, routes, 2)

	// The shorter A1→C3 run wins on profit over distance.
	assert.Equal(t, "X1-TS5-C3", routes[0].Sink)
	assert.Equal(t, "X1-TS5-A1", routes[0].Source)
	assert.Equal(t, "IRON_ORE", routes[0].Symbol)
	assert.Equal(t, 20*(190-100), routes[0].NetProfit)
	assert.Equal(t, "X1-TS5-B2", routes[1].Sink)

	// Distance cap prunes the far sink.
	near, err := marketRepo.GreedyTradeCandidates(ctx, "X1-TS5", 60, 500, nil)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, "X1-TS5-C3", near[0].Sink)
}

func TestBestMarketFor_PicksHighestSellPrice(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := persistence.NewMarketRepository(db, clock)
	ctx := context.Background()

	require.NoError(t, repo.AppendSnapshots(ctx, "X1-TS5-A1", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeImport, market.SupplyScarce, 190, 200, 20),
	}))
	require.NoError(t, repo.AppendSnapshots(ctx, "X1-TS5-B2", []market.TradeGood{
		good("IRON_ORE", market.TradeTypeImport, market.SupplyScarce, 180, 250, 20),
	}))

	best, price, err := repo.BestMarketFor(ctx, "X1-TS5", "IRON_ORE")
	require.NoError(t, err)
	assert.Equal(t, "X1-TS5-B2", best)
	assert.Equal(t, 250, price)

	none, _, err := repo.BestMarketFor(ctx, "X1-TS5", "GOLD")
	require.NoError(t, err)
	assert.Empty(t, none)
}
