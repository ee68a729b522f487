package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetcore/internal/domain/market"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	"github.com/andrescamacho/fleetcore/internal/domain/trading"
)

// MarketRepository persists trade good snapshots and serves the freshness and
// trade-selection queries the controllers run. Snapshots are append-only; the
// current view of a market is its latest row per good.
type MarketRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewMarketRepository creates a GORM-based market repository
func NewMarketRepository(db *gorm.DB, clock shared.Clock) *MarketRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &MarketRepository{db: db, clock: clock}
}

// AppendSnapshots appends one observation per good for a market
func (r *MarketRepository) AppendSnapshots(ctx context.Context, marketSymbol string, goods []market.TradeGood) error {
	if len(goods) == 0 {
		return nil
	}
	now := r.clock.Now()
	rows := make([]TradeGoodSnapshotModel, len(goods))
	for i, g := range goods {
		rows[i] = TradeGoodSnapshotModel{
			MarketSymbol:  marketSymbol,
			GoodSymbol:    g.Symbol,
			Type:          g.Type,
			TradeVolume:   g.TradeVolume,
			Supply:        g.Supply,
			Activity:      g.Activity,
			PurchasePrice: g.PurchasePrice,
			SellPrice:     g.SellPrice,
			CreatedAt:     now,
		}
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Create(&rows).Error
	})
}

// currentSnapshotJoin restricts trade_good_snapshots to the latest row per
// (market, good) pair.
const currentSnapshotJoin = `
INNER JOIN (
	SELECT market_symbol, good_symbol, MAX(created_at) AS max_created
	FROM trade_good_snapshots
	GROUP BY market_symbol, good_symbol
) latest ON latest.market_symbol = trade_good_snapshots.market_symbol
        AND latest.good_symbol = trade_good_snapshots.good_symbol
        AND latest.max_created = trade_good_snapshots.created_at`

// CurrentGood returns the latest snapshot of one good at one market, or nil
func (r *MarketRepository) CurrentGood(ctx context.Context, marketSymbol, good string) (*market.TradeGood, error) {
	var model TradeGoodSnapshotModel
	err := r.db.WithContext(ctx).
		Where("market_symbol = ? AND good_symbol = ?", marketSymbol, good).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current %s at %s: %w", good, marketSymbol, err)
	}
	return &market.TradeGood{
		Symbol:        model.GoodSymbol,
		Type:          model.Type,
		TradeVolume:   model.TradeVolume,
		Supply:        model.Supply,
		Activity:      model.Activity,
		PurchasePrice: model.PurchasePrice,
		SellPrice:     model.SellPrice,
	}, nil
}

// FuelStops returns the markets in a system currently known to sell fuel
func (r *MarketRepository) FuelStops(ctx context.Context, system string) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).
		Table("trade_good_snapshots").
		Select("DISTINCT trade_good_snapshots.market_symbol").
		Joins(currentSnapshotJoin).
		Where("trade_good_snapshots.good_symbol = ? AND trade_good_snapshots.market_symbol LIKE ?", market.FuelSymbol, system+"-%").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list fuel stops in %s: %w", system, err)
	}
	return out, nil
}

// AllMarketsByFreshness returns every waypoint with a MARKETPLACE trait in the
// system whose data is missing or older than maxAge, never-scanned first, then
// oldest first.
func (r *MarketRepository) AllMarketsByFreshness(ctx context.Context, system string, maxAge time.Duration) ([]market.MarketAge, error) {
	cutoff := r.clock.Now().Add(-maxAge)
	var rows []struct {
		Symbol      string
		LastUpdated *time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT wp.symbol AS symbol, mu.last_updated AS last_updated
		FROM waypoints wp
		INNER JOIN waypoint_traits t
			ON t.waypoint_symbol = wp.symbol AND t.symbol = ?
		LEFT JOIN (
			SELECT market_symbol, MAX(created_at) AS last_updated
			FROM trade_good_snapshots
			GROUP BY market_symbol
		) mu ON mu.market_symbol = wp.symbol
		WHERE wp.system_symbol = ?
		  AND (mu.last_updated IS NULL OR mu.last_updated < ?)
		ORDER BY mu.last_updated ASC`,
		market.MarketplaceTrait, system, cutoff).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list markets by freshness in %s: %w", system, err)
	}
	out := make([]market.MarketAge, len(rows))
	for i, row := range rows {
		out[i] = market.MarketAge{MarketSymbol: row.Symbol, LastUpdated: row.LastUpdated}
	}
	return out, nil
}

// NonFuelMarketsByFreshness returns markets in the system whose non-fuel
// snapshots are older than maxAge, oldest first.
func (r *MarketRepository) NonFuelMarketsByFreshness(ctx context.Context, system string, maxAge time.Duration) ([]market.MarketAge, error) {
	cutoff := r.clock.Now().Add(-maxAge)
	return r.scanMarketAges(ctx, `
		SELECT trade_good_snapshots.market_symbol AS symbol,
		       MIN(trade_good_snapshots.created_at) AS last_updated
		FROM trade_good_snapshots `+currentSnapshotJoin+`
		WHERE trade_good_snapshots.good_symbol <> ?
		  AND trade_good_snapshots.market_symbol LIKE ?
		GROUP BY trade_good_snapshots.market_symbol
		HAVING MIN(trade_good_snapshots.created_at) < ?
		ORDER BY last_updated ASC`,
		market.FuelSymbol, system+"-%", cutoff)
}

// ImportExportMarketsByFreshness returns markets in the system that both
// import and export goods, with data older than maxAge, oldest first.
func (r *MarketRepository) ImportExportMarketsByFreshness(ctx context.Context, system string, maxAge time.Duration) ([]market.MarketAge, error) {
	cutoff := r.clock.Now().Add(-maxAge)
	return r.scanMarketAges(ctx, `
		SELECT trade_good_snapshots.market_symbol AS symbol,
		       MIN(trade_good_snapshots.created_at) AS last_updated
		FROM trade_good_snapshots `+currentSnapshotJoin+`
		WHERE trade_good_snapshots.market_symbol LIKE ?
		GROUP BY trade_good_snapshots.market_symbol
		HAVING SUM(trade_good_snapshots.type = ?) > 0
		   AND SUM(trade_good_snapshots.type = ?) > 0
		   AND MIN(trade_good_snapshots.created_at) < ?
		ORDER BY last_updated ASC`,
		system+"-%", market.TradeTypeImport, market.TradeTypeExport, cutoff)
}

func (r *MarketRepository) scanMarketAges(ctx context.Context, query string, args ...interface{}) ([]market.MarketAge, error) {
	var rows []struct {
		Symbol      string
		LastUpdated *time.Time
	}
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list markets by freshness: %w", err)
	}
	out := make([]market.MarketAge, len(rows))
	for i, row := range rows {
		out[i] = market.MarketAge{MarketSymbol: row.Symbol, LastUpdated: row.LastUpdated}
	}
	return out, nil
}

// GreedyTradeCandidates joins current snapshots into source→sink routes
// subject to the greedy trader's floors: both sides trading at volume, the
// route within reach, deep enough source supply, thin enough sink supply, and
// a worthwhile net profit. Ordered by profit over distance, best first.
func (r *MarketRepository) GreedyTradeCandidates(ctx context.Context, system string, maxDistance float64, minProfit int, excludedGoods []string) ([]trading.TradeRoute, error) {
	if len(excludedGoods) == 0 {
		excludedGoods = []string{""}
	}
	var rows []struct {
		Symbol        string
		Source        string
		Sink          string
		TradeVolume   int
		Dist          float64
		PurchasePrice int
		SellPrice     int
		SrcSupply     string
		SinkSupply    string
	}
	err := r.db.WithContext(ctx).Raw(`
		WITH current_goods AS (
			SELECT trade_good_snapshots.*
			FROM trade_good_snapshots `+currentSnapshotJoin+`
			WHERE trade_good_snapshots.market_symbol LIKE ?
		)
		SELECT src.good_symbol   AS symbol,
		       src.market_symbol AS source,
		       snk.market_symbol AS sink,
		       MIN(src.trade_volume, snk.trade_volume) AS trade_volume,
		       d.dist            AS dist,
		       src.purchase_price AS purchase_price,
		       snk.sell_price     AS sell_price,
		       src.supply         AS src_supply,
		       snk.supply         AS sink_supply
		FROM current_goods src
		INNER JOIN current_goods snk
			ON snk.good_symbol = src.good_symbol
			AND snk.market_symbol <> src.market_symbol
		INNER JOIN waypoint_distances d
			ON (d.src = src.market_symbol AND d.dst = snk.market_symbol)
			OR (d.src = snk.market_symbol AND d.dst = src.market_symbol)
		WHERE src.trade_volume >= 6
		  AND snk.trade_volume >= 6
		  AND d.dist < ?
		  AND src.supply IN (?, ?, ?, ?)
		  AND snk.supply IN (?, ?, ?)
		  AND src.good_symbol NOT IN ?
		  AND (MIN(src.trade_volume, snk.trade_volume) * (snk.sell_price - src.purchase_price)) >= ?
		ORDER BY (MIN(src.trade_volume, snk.trade_volume) * (snk.sell_price - src.purchase_price)) / d.dist DESC`,
		system+"-%", maxDistance,
		market.SupplyAbundant, market.SupplyHigh, market.SupplyModerate, market.SupplyLimited,
		market.SupplyScarce, market.SupplyLimited, market.SupplyModerate,
		excludedGoods, minProfit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select greedy trade candidates in %s: %w", system, err)
	}
	out := make([]trading.TradeRoute, 0, len(rows))
	for _, row := range rows {
		route := trading.TradeRoute{
			Symbol:        row.Symbol,
			Source:        row.Source,
			Sink:          row.Sink,
			TradeVolume:   row.TradeVolume,
			Distance:      row.Dist,
			PurchasePrice: row.PurchasePrice,
			SellPrice:     row.SellPrice,
			NetProfit:     row.TradeVolume * (row.SellPrice - row.PurchasePrice),
			SrcSupply:     row.SrcSupply,
			SinkSupply:    row.SinkSupply,
		}
		if route.MaxTraders() < 1 {
			continue
		}
		out = append(out, route)
	}
	return out, nil
}

// AppendShipyard persists a shipyard observation (ships and their modules)
func (r *MarketRepository) AppendShipyard(ctx context.Context, ships []market.ShipyardShip, modules []market.ShipyardModule) error {
	now := r.clock.Now()
	shipRows := make([]ShipyardShipModel, len(ships))
	for i, s := range ships {
		shipRows[i] = ShipyardShipModel{
			ShipyardSymbol: s.ShipyardSymbol,
			Type:           s.Type,
			Name:           s.Name,
			PurchasePrice:  s.PurchasePrice,
			Supply:         s.Supply,
			FrameSymbol:    s.FrameSymbol,
			CreatedAt:      now,
		}
	}
	moduleRows := make([]ShipyardModuleModel, len(modules))
	for i, m := range modules {
		moduleRows[i] = ShipyardModuleModel{
			ShipType:  m.ShipType,
			Symbol:    m.Symbol,
			Name:      m.Name,
			Capacity:  m.Capacity,
			CreatedAt: now,
		}
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if len(shipRows) > 0 {
				if err := tx.Create(&shipRows).Error; err != nil {
					return err
				}
			}
			if len(moduleRows) > 0 {
				if err := tx.Create(&moduleRows).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// BestMarketFor returns the market in a system currently paying the most for
// a good, or "" when no market is known to trade it.
func (r *MarketRepository) BestMarketFor(ctx context.Context, system, good string) (string, int, error) {
	var row struct {
		MarketSymbol string
		SellPrice    int
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT trade_good_snapshots.market_symbol, trade_good_snapshots.sell_price
		FROM trade_good_snapshots `+currentSnapshotJoin+`
		WHERE trade_good_snapshots.good_symbol = ?
		  AND trade_good_snapshots.market_symbol LIKE ?
		ORDER BY trade_good_snapshots.sell_price DESC
		LIMIT 1`,
		good, system+"-%").Scan(&row).Error
	if err != nil {
		return "", 0, fmt.Errorf("failed to find best market for %s in %s: %w", good, system, err)
	}
	return row.MarketSymbol, row.SellPrice, nil
}
