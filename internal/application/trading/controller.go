// Package trading runs the greedy trader: it acquires haulers and keeps them
// executing the most profitable source→sink routes the market snapshots
// support, with per-route concurrency caps.
package trading

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/andrescamacho/fleetcore/internal/domain/fleet"
	"github.com/andrescamacho/fleetcore/internal/domain/market"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	domaintrading "github.com/andrescamacho/fleetcore/internal/domain/trading"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/tasks"
)

const (
	baseControllerID = "TRADE-CONTROLLER"

	defaultRefreshPeriod = 12 * time.Second

	// Trades whose re-checked projection drops below this are aborted at the
	// source rather than executed at a loss.
	minProjectedProfit = 50

	// Route selection floors.
	minNetProfit = 500

	// Reach limit as a multiple of the hauler's usable tank.
	distanceFuelFactor = 1.5
)

// Goods too volatile to trade on snapshots alone
var excludedGoods = []string{"FAB_MATS", "ADVANCED_CIRCUITRY", "QUANTUM_STABILIZERS", market.FuelSymbol}

// tradeSelector is the slice of the market repository the trader queries
type tradeSelector interface {
	GreedyTradeCandidates(ctx context.Context, system string, maxDistance float64, minProfit int, excluded []string) ([]domaintrading.TradeRoute, error)
	CurrentGood(ctx context.Context, marketSymbol, good string) (*market.TradeGood, error)
}

// traderOps is the slice of ship operations the trade tasks run
type traderOps interface {
	Navigate(ctx context.Context, shipSymbol, destination string) error
	AwaitNavigation(ctx context.Context, shipSymbol string) error
	BuyGoods(ctx context.Context, shipSymbol string, goods map[string]int) error
	SellToMarket(ctx context.Context, shipSymbol, marketSymbol string, goods map[string]int) error
	RefreshMarket(ctx context.Context, shipSymbol string) error
	ClearCargo(ctx context.Context, shipSymbol string) error
	Cargo(ctx context.Context, shipSymbol string) (*shared.Cargo, error)
	ShipWaypoint(ctx context.Context, shipSymbol string) (string, error)
	FuelCapacity(ctx context.Context, shipSymbol string) (int, error)
}

// tradeLedger records completed trades and answers profit queries
type tradeLedger interface {
	NetCashMovement(ctx context.Context, shipSymbol string, from, to time.Time) (int, error)
	AppendTrade(ctx context.Context, shipSymbol, controller, good, source, sink string, units, profit int, startedAt, endedAt time.Time) error
	TradeProfitSince(ctx context.Context, shipSymbol, controller string, since time.Time) (int, error)
}

// distanceFunc resolves same-system waypoint distances
type distanceFunc func(ctx context.Context, a, b string) (float64, error)

// Config parameterises one greedy trader
type Config struct {
	System        string
	MaxHaulers    int
	RefreshPeriod time.Duration
}

// TradeTask is one committed trade order: a route plus how many round-trips
// the assigned hauler covers.
type TradeTask struct {
	Route   domaintrading.TradeRoute
	Units   int
	Repeats int
}

// Controller is the greedy trader
type Controller struct {
	cfg      Config
	frm      fleet.Manager
	ops      traderOps
	selector tradeSelector
	ledger   tradeLedger
	distance distanceFunc
	clock    shared.Clock
	rng      *rand.Rand

	id       string
	priority int
	ongoing  *domaintrading.Ledger
	fleet    map[string]*tradeEntry
	started  time.Time
}

type tradeEntry struct {
	task      *tradeTaskHandle
	timeStart time.Time
}

type tradeTaskHandle struct {
	trade TradeTask
	task  *tasks.Task
}

// NewController creates a greedy trader controller
func NewController(cfg Config, frm fleet.Manager, ops traderOps, selector tradeSelector, ledger tradeLedger, distance distanceFunc, clock shared.Clock) *Controller {
	if cfg.RefreshPeriod <= 0 {
		cfg.RefreshPeriod = defaultRefreshPeriod
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Controller{
		cfg:      cfg,
		frm:      frm,
		ops:      ops,
		selector: selector,
		ledger:   ledger,
		distance: distance,
		clock:    clock,
		rng:      rand.New(rand.NewSource(clock.Now().UnixNano())),
		id:       baseControllerID + "-" + cfg.System,
		priority: fleet.PriorityTraders,
		ongoing:  domaintrading.NewLedger(),
		fleet:    make(map[string]*tradeEntry),
	}
}

// ID returns the controller identifier used in lock rows
func (c *Controller) ID() string {
	return c.id
}

// Run drives the trading loop until the context is cancelled. The fleet is
// released on every exit path.
func (c *Controller) Run(ctx context.Context) error {
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		if err := c.frm.ReleaseFleet(releaseCtx, c.id, false); err != nil {
			fmt.Printf("[ERROR] %s failed to release its fleet on exit: %v\n", c.id, err)
		}
	}()

	c.started = c.clock.Now()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cycleProfit, err := c.drainFinished(ctx)
		if err != nil {
			return err
		}

		if err := c.assignTrades(ctx); err != nil {
			return err
		}

		if cycleProfit != 0 {
			c.profitReport(ctx)
		}

		if err := tasks.Sleep(ctx, c.cfg.RefreshPeriod); err != nil {
			return err
		}
	}
}

// drainFinished releases finished traders and settles their ledger entries.
// Returns the profit recorded by the ships released this cycle.
func (c *Controller) drainFinished(ctx context.Context) (int, error) {
	cycleProfit := 0
	for s, entry := range c.fleet {
		if !entry.task.task.Done() {
			continue
		}
		if _, taskErr := entry.task.task.Result(); taskErr != nil && shared.IsFatal(taskErr) {
			return 0, taskErr
		}
		// Settle against the entry's own trade, not whatever the selection
		// loop looked at last.
		finished := entry.task.trade
		c.ongoing.Remove(finished.Route.Key(), finished.Repeats)

		profit, err := c.ledger.TradeProfitSince(ctx, s, "", entry.timeStart)
		if err == nil {
			cycleProfit += profit
		}

		if err := c.frm.Release(ctx, s, false); err != nil {
			fmt.Printf("[ERROR] %s failed to release %s: %v\n", c.id, s, err)
		}
		delete(c.fleet, s)
	}
	return cycleProfit, nil
}

// assignTrades walks the candidate list best-first and assigns available
// haulers to routes that still have assignment slots.
func (c *Controller) assignTrades(ctx context.Context) error {
	maxDistance, err := c.maxTradeDistance(ctx)
	if err != nil {
		return err
	}
	candidates, err := c.selector.GreedyTradeCandidates(ctx, c.cfg.System, maxDistance, minNetProfit, excludedGoods)
	if err != nil {
		fmt.Printf("[ERROR] %s failed to select trades: %v\n", c.id, err)
		return nil
	}

	tIx := 0
	for len(candidates) > 0 && tIx < len(candidates) {
		if len(c.fleet) >= c.cfg.MaxHaulers {
			break
		}

		route := candidates[tIx]
		maxTraders := route.MaxTraders()
		nOngoing := c.ongoing.Ongoing(route.Key())

		if nOngoing >= maxTraders {
			// Saturated; move down the queue if possible.
			if tIx < len(candidates)-1 {
				tIx++
				continue
			}
			break
		}

		haulers, err := c.frm.AvailableShips(ctx, []string{c.cfg.System}, fleet.RoleHauler, c.priority, c.id)
		if err != nil {
			return err
		}
		var free []string
		for _, h := range haulers {
			if _, busy := c.fleet[h]; !busy {
				free = append(free, h)
			}
		}

		assigned, err := c.assignHauler(ctx, free, route, maxTraders-nOngoing)
		if err != nil {
			return err
		}
		if assigned == "" {
			// Nothing acquirable; stop issuing assignments this pass.
			fmt.Printf("[INFO] %s was unable to clear all trades. Currently waiting for %d traders to report back.\n", c.id, len(c.fleet))
			break
		}

		covered := c.fleet[assigned].task.trade.Repeats
		c.ongoing.Add(route.Key(), covered)
		if c.ongoing.Ongoing(route.Key()) >= maxTraders {
			candidates = append(candidates[:tIx], candidates[tIx+1:]...)
		}

		// Small random delay so traders hitting the same source spread out.
		jitter := time.Duration(20+c.rng.Intn(281)) * time.Millisecond
		if err := tasks.Sleep(ctx, jitter); err != nil {
			return err
		}
	}
	return nil
}

// maxTradeDistance derives the route reach from a representative hauler tank
func (c *Controller) maxTradeDistance(ctx context.Context) (float64, error) {
	fuelCap := 600
	haulers, err := c.frm.AvailableShips(ctx, []string{c.cfg.System}, fleet.RoleHauler, c.priority, c.id)
	if err != nil {
		return 0, err
	}
	if len(haulers) > 0 {
		if fc, err := c.ops.FuelCapacity(ctx, haulers[0]); err == nil && fc > 0 {
			fuelCap = fc
		}
	}
	return float64(fuelCap-1) * distanceFuelFactor, nil
}

// assignHauler sends the candidate closest to the route's source to execute
// it, bundling repeat round-trips when the hauler's hold allows. Returns the
// assigned ship symbol, or "" when none could be acquired.
func (c *Controller) assignHauler(ctx context.Context, candidates []string, route domaintrading.TradeRoute, remainingSlots int) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}
	located := make([]fleet.Candidate, 0, len(candidates))
	for _, s := range candidates {
		wp, err := c.ops.ShipWaypoint(ctx, s)
		if err != nil {
			continue
		}
		located = append(located, fleet.Candidate{ShipSymbol: s, Waypoint: wp})
	}
	selector := fleet.NewSelector(func(src, dst string) (float64, error) {
		return c.distance(ctx, src, dst)
	})
	best, err := selector.Closest(located, route.Source)
	if err != nil {
		return "", nil
	}

	shipSymbol := best.ShipSymbol
	granted, err := c.frm.Request(ctx, shipSymbol, c.id, c.priority)
	if err != nil || !granted {
		return "", err
	}

	cargo, err := c.ops.Cargo(ctx, shipSymbol)
	if err != nil {
		return "", err
	}
	trade := TradeTask{
		Route:   route,
		Units:   route.TradeVolume,
		Repeats: route.Repeats(cargo.Capacity, remainingSlots),
	}
	c.fleet[shipSymbol] = &tradeEntry{
		timeStart: c.clock.Now(),
		task: &tradeTaskHandle{
			trade: trade,
			task: tasks.Spawn(ctx, "trade-"+route.Symbol, func(taskCtx context.Context) (bool, error) {
				return c.executeTrade(taskCtx, shipSymbol, trade)
			}),
		},
	}
	return shipSymbol, nil
}

// executeTrade is the per-hauler task: reach the source, re-check the route
// still pays, buy, reach the sink, sell, and settle the books. The span is
// blocked so the trader cannot be preempted mid-trade.
func (c *Controller) executeTrade(ctx context.Context, shipSymbol string, trade TradeTask) (bool, error) {
	if err := c.frm.SetBlocked(ctx, shipSymbol, true); err != nil {
		return false, err
	}
	defer func() {
		unblockCtx := context.WithoutCancel(ctx)
		if err := c.frm.SetBlocked(unblockCtx, shipSymbol, false); err != nil {
			fmt.Printf("[ERROR] %s failed to unblock %s: %v\n", c.id, shipSymbol, err)
		}
	}()

	if err := c.ops.AwaitNavigation(ctx, shipSymbol); err != nil {
		return false, err
	}

	cargo, err := c.ops.Cargo(ctx, shipSymbol)
	if err != nil {
		return false, err
	}
	if !cargo.IsEmpty() {
		fmt.Printf("[INFO] %s is trying to trade with a non-empty hold. Clearing cargo first.\n", shipSymbol)
		if err := c.ops.ClearCargo(ctx, shipSymbol); err != nil {
			return false, nil
		}
	}

	// Reaching the source first lets the ship re-check price drift between
	// selection and purchase.
	if err := c.ops.Navigate(ctx, shipSymbol, trade.Route.Source); err != nil {
		fmt.Printf("[WARNING] %s couldn't execute trade: unable to reach source market %s.\n", shipSymbol, trade.Route.Source)
		return false, nil
	}

	started := c.clock.Now()
	units := trade.Units * trade.Repeats
	if units > cargo.Capacity {
		units = cargo.Capacity
	}
	goods := map[string]int{trade.Route.Symbol: units}

	projected, err := c.projectedProfit(ctx, trade.Route, units)
	if err != nil || projected < minProjectedProfit {
		fmt.Printf("[INFO] %s detected a losing trade order. Aborting trade.\n", shipSymbol)
		return false, nil
	}

	if err := c.ops.BuyGoods(ctx, shipSymbol, goods); err != nil {
		fmt.Printf("[ERROR] %s was unable to procure trade goods. Aborting trade.\n", shipSymbol)
		return false, nil
	}
	if err := c.ops.RefreshMarket(ctx, shipSymbol); err != nil {
		fmt.Printf("[WARNING] %s failed to refresh the source market after buying: %v\n", shipSymbol, err)
	}

	if err := c.ops.SellToMarket(ctx, shipSymbol, trade.Route.Sink, goods); err != nil {
		fmt.Printf("[ERROR] %s was unable to offload trade goods. Aborting trade.\n", shipSymbol)
		return false, nil
	}

	ended := c.clock.Now()
	profit, err := c.ledger.NetCashMovement(ctx, shipSymbol, started, ended)
	if err == nil {
		fmt.Printf("[INFO] %s finished trade. Total profit: %d credits.\n", shipSymbol, profit)
		if err := c.ledger.AppendTrade(ctx, shipSymbol, c.id, trade.Route.Symbol, trade.Route.Source, trade.Route.Sink, units, profit, started, ended); err != nil {
			fmt.Printf("[ERROR] %s failed to log the trade for %s: %v\n", c.id, shipSymbol, err)
		}
	} else {
		fmt.Printf("[INFO] %s finished trade.\n", shipSymbol)
	}
	return true, nil
}

// projectedProfit recomputes the route's profit from the freshest snapshots
func (c *Controller) projectedProfit(ctx context.Context, route domaintrading.TradeRoute, units int) (int, error) {
	src, err := c.selector.CurrentGood(ctx, route.Source, route.Symbol)
	if err != nil {
		return 0, err
	}
	snk, err := c.selector.CurrentGood(ctx, route.Sink, route.Symbol)
	if err != nil {
		return 0, err
	}
	if src == nil || snk == nil {
		return 0, fmt.Errorf("no current snapshot for %s on %s→%s", route.Symbol, route.Source, route.Sink)
	}
	return units*snk.SellPrice - units*src.PurchasePrice, nil
}

// profitReport prints the cycle's profit summary
func (c *Controller) profitReport(ctx context.Context) {
	jobProfit, err := c.ledger.TradeProfitSince(ctx, "", c.id, c.started)
	if err != nil {
		return
	}
	totalProfit, err := c.ledger.TradeProfitSince(ctx, "", c.id, time.Time{})
	if err != nil {
		return
	}
	hours := c.clock.Now().Sub(c.started).Hours()
	hourly := 0.0
	if hours > 0 {
		hourly = float64(jobProfit) / hours
	}
	fmt.Printf("[PROFIT REPORT - %s]\n", c.id)
	fmt.Printf("       HOURLY PROFIT :  %.0f cr/h.\n", hourly)
	fmt.Printf("        TOTAL PROFIT :  %d cr.\n", totalProfit)
	fmt.Printf("          JOB PROFIT :  %d cr.\n", jobProfit)
}
