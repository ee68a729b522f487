package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// LedgerRepository persists the append-only money and yield trails:
// transactions, completed trades, extraction yields and yield sales. These
// back the post-hoc profitability reports.
type LedgerRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewLedgerRepository creates a GORM-based ledger repository
func NewLedgerRepository(db *gorm.DB, clock shared.Clock) *LedgerRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &LedgerRepository{db: db, clock: clock}
}

// Transaction types
const (
	TransactionPurchase = "PURCHASE"
	TransactionSell     = "SELL"
)

// AppendTransaction records a market transaction as returned by the game
func (r *LedgerRepository) AppendTransaction(ctx context.Context, ship, waypoint, good, txType string, units, pricePerUnit, totalPrice int) error {
	model := TransactionModel{
		ID:             uuid.NewString(),
		ShipSymbol:     ship,
		WaypointSymbol: waypoint,
		TradeSymbol:    good,
		Type:           txType,
		Units:          units,
		PricePerUnit:   pricePerUnit,
		TotalPrice:     totalPrice,
		CreatedAt:      r.clock.Now(),
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	})
}

// NetCashMovement sums a ship's transactions over a window: sales positive,
// purchases negative.
func (r *LedgerRepository) NetCashMovement(ctx context.Context, ship string, from, to time.Time) (int, error) {
	var result struct{ Total *int }
	err := r.db.WithContext(ctx).Raw(`
		SELECT SUM(CASE type
			WHEN ? THEN -total_price
			WHEN ? THEN total_price
		END) AS total
		FROM transactions
		WHERE ship_symbol = ? AND created_at >= ? AND created_at <= ?`,
		TransactionPurchase, TransactionSell, ship, from, to).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions for %s: %w", ship, err)
	}
	if result.Total == nil {
		return 0, nil
	}
	return *result.Total, nil
}

// WhitelistedSales sums units and revenue of a ship's sales of whitelisted
// extraction goods since a timestamp.
func (r *LedgerRepository) WhitelistedSales(ctx context.Context, ship string, since time.Time) (units, revenue int, err error) {
	var result struct {
		Units   *int
		Revenue *int
	}
	err = r.db.WithContext(ctx).Raw(`
		SELECT SUM(t.units) AS units, SUM(t.total_price) AS revenue
		FROM transactions t
		INNER JOIN excavator_goods wl ON wl.symbol = t.trade_symbol
		WHERE t.ship_symbol = ? AND t.type = ? AND t.created_at >= ?`,
		ship, TransactionSell, since).Scan(&result).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum whitelisted sales for %s: %w", ship, err)
	}
	if result.Units != nil {
		units = *result.Units
	}
	if result.Revenue != nil {
		revenue = *result.Revenue
	}
	return units, revenue, nil
}

// AppendTrade records one completed trade task
func (r *LedgerRepository) AppendTrade(ctx context.Context, ship, controller, good, source, sink string, units, profit int, startedAt, endedAt time.Time) error {
	model := TradeModel{
		ID:          uuid.NewString(),
		ShipSymbol:  ship,
		Controller:  controller,
		TradeSymbol: good,
		Source:      source,
		Sink:        sink,
		Units:       units,
		Profit:      profit,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	})
}

// TradeProfitSince sums recorded trade profit, filtered by ship or controller
// (empty string skips the filter).
func (r *LedgerRepository) TradeProfitSince(ctx context.Context, ship, controller string, since time.Time) (int, error) {
	query := r.db.WithContext(ctx).Model(&TradeModel{}).Where("started_at >= ?", since)
	if ship != "" {
		query = query.Where("ship_symbol = ?", ship)
	}
	if controller != "" {
		query = query.Where("controller = ?", controller)
	}
	var result struct{ Total *int }
	if err := query.Select("SUM(profit) AS total").Scan(&result).Error; err != nil {
		return 0, fmt.Errorf("failed to sum trade profit: %w", err)
	}
	if result.Total == nil {
		return 0, nil
	}
	return *result.Total, nil
}

// AppendYield records one extraction or siphon yield
func (r *LedgerRepository) AppendYield(ctx context.Context, ship, good string, units int) error {
	model := YieldModel{
		ShipSymbol: ship,
		GoodSymbol: good,
		Units:      units,
		CreatedAt:  r.clock.Now(),
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	})
}

// YieldSince sums the units extracted by the given ships since a timestamp
func (r *LedgerRepository) YieldSince(ctx context.Context, ships []string, since time.Time) (int, error) {
	if len(ships) == 0 {
		return 0, nil
	}
	var result struct{ Total *int }
	err := r.db.WithContext(ctx).Model(&YieldModel{}).
		Select("SUM(units) AS total").
		Where("ship_symbol IN ? AND created_at >= ?", ships, since).
		Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum yields: %w", err)
	}
	if result.Total == nil {
		return 0, nil
	}
	return *result.Total, nil
}

// AppendYieldSale records one completed haul-and-sell run
func (r *LedgerRepository) AppendYieldSale(ctx context.Context, ship, controller string, units, profit int, startedAt, endedAt time.Time) error {
	model := YieldSaleModel{
		ShipSymbol: ship,
		Controller: controller,
		Units:      units,
		Profit:     profit,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
	}
	return withStoreRetries(r.clock, func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	})
}
