package ship

import (
	"context"
	"fmt"
	"time"

	"github.com/andrescamacho/fleetcore/internal/adapters/api"
	"github.com/andrescamacho/fleetcore/internal/domain/market"
	"github.com/andrescamacho/fleetcore/internal/domain/navigation"
	"github.com/andrescamacho/fleetcore/internal/domain/routing"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/tasks"
)

// Server needs a beat to register a docked ship before market queries succeed.
const marketSettleDelay = 3 * time.Second

// apiSurface is the slice of the API client the scripts drive
type apiSurface interface {
	Dock(ctx context.Context, ship string) (*api.NavData, error)
	Orbit(ctx context.Context, ship string) (*api.NavData, error)
	SetFlightMode(ctx context.Context, ship, mode string) (*api.NavData, error)
	Navigate(ctx context.Context, ship, waypoint string) (*api.NavigateResult, error)
	Refuel(ctx context.Context, ship string, units *int, fromCargo bool) (*api.RefuelResult, error)
	Extract(ctx context.Context, ship string) (*api.ExtractionResult, error)
	Siphon(ctx context.Context, ship string) (*api.ExtractionResult, error)
	Jettison(ctx context.Context, ship, good string, units int) (*api.CargoData, error)
	Purchase(ctx context.Context, ship, good string, units int) (*api.TradeResult, error)
	Sell(ctx context.Context, ship, good string, units int) (*api.TradeResult, error)
	Transfer(ctx context.Context, fromShip, toShip, good string, units int) (*api.CargoData, error)
	PurchaseShip(ctx context.Context, shipType, shipyardWaypoint string) (*api.ShipPurchaseResult, error)
	GetMarket(ctx context.Context, system, waypoint string) (*api.MarketData, error)
	GetShipyard(ctx context.Context, system, waypoint string) (*api.ShipyardData, error)
	ListWaypoints(ctx context.Context, system string) ([]api.WaypointData, error)
}

// marketStore is the slice of the market repository the scripts use
type marketStore interface {
	AppendSnapshots(ctx context.Context, marketSymbol string, goods []market.TradeGood) error
	CurrentGood(ctx context.Context, marketSymbol, good string) (*market.TradeGood, error)
	BestMarketFor(ctx context.Context, system, good string) (string, int, error)
	AppendShipyard(ctx context.Context, ships []market.ShipyardShip, modules []market.ShipyardModule) error
}

// waypointStore is the slice of the waypoint repository the scripts use
type waypointStore interface {
	Save(ctx context.Context, wp *shared.Waypoint) error
}

// moneyLedger records the financial trail of buy/sell operations
type moneyLedger interface {
	AppendTransaction(ctx context.Context, ship, waypoint, good, txType string, units, pricePerUnit, totalPrice int) error
	AppendYield(ctx context.Context, ship, good string, units int) error
}

// Ops executes the domain scripts against the game: navigation, docking,
// extraction, trading and transfers. Every mutating call writes the returned
// authoritative state through the ship cache, so the store stays coherent
// with the game after each step.
type Ops struct {
	cache     *Cache
	client    apiSurface
	planner   *routing.Planner
	waypoints waypointStore
	markets   marketStore
	ledger    moneyLedger
	clock     shared.Clock
}

// NewOps wires the ship operation scripts
func NewOps(cache *Cache, client apiSurface, planner *routing.Planner, waypoints waypointStore, markets marketStore, ledger moneyLedger, clock shared.Clock) *Ops {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Ops{
		cache:     cache,
		client:    client,
		planner:   planner,
		waypoints: waypoints,
		markets:   markets,
		ledger:    ledger,
		clock:     clock,
	}
}

// Cache exposes the underlying ship cache for read paths
func (o *Ops) Cache() *Cache {
	return o.cache
}

// AwaitNavigation idles until the ship is out of transit, re-checking halfway
// through the remaining transit time each pass.
func (o *Ops) AwaitNavigation(ctx context.Context, ship string) error {
	for {
		nav, err := o.cache.Nav(ctx, ship)
		if err != nil {
			return err
		}
		remaining := nav.TransitRemaining(o.clock.Now())
		if remaining <= 0 {
			return nil
		}
		wait := remaining / 2
		if wait < 250*time.Millisecond {
			wait = 250 * time.Millisecond
		}
		if err := tasks.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Dock docks the ship at its current waypoint; a no-op when already docked
func (o *Ops) Dock(ctx context.Context, ship string) error {
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	if nav.Status == navigation.NavStatusDocked {
		return nil
	}
	result, err := o.client.Dock(ctx, ship)
	if err != nil {
		return err
	}
	return o.cache.PutNavStatus(ctx, ship, result.Status)
}

// Orbit puts the ship in orbit; a no-op when already in orbit
func (o *Ops) Orbit(ctx context.Context, ship string) error {
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	if nav.Status == navigation.NavStatusInOrbit {
		return nil
	}
	result, err := o.client.Orbit(ctx, ship)
	if err != nil {
		return err
	}
	return o.cache.PutNavStatus(ctx, ship, result.Status)
}

// SetFlightMode patches the flight mode; skips the call when the cache shows
// the ship already flying that mode.
func (o *Ops) SetFlightMode(ctx context.Context, ship, mode string) error {
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	if nav.FlightMode == mode {
		return nil
	}
	if _, err := o.client.SetFlightMode(ctx, ship, mode); err != nil {
		return err
	}
	return o.cache.PutFlightMode(ctx, ship, mode)
}

// Refuel tops the ship up at its current waypoint. Waypoints that sell no
// fuel refuse with a 400; that refusal is reported as a domain failure.
func (o *Ops) Refuel(ctx context.Context, ship string) error {
	if err := o.Dock(ctx, ship); err != nil {
		return err
	}
	result, err := o.client.Refuel(ctx, ship, nil, false)
	if err != nil {
		if shared.IsDomainFailure(err) {
			return shared.NewDomainError(shared.FailureNoFuelSold, "%s could not refuel here", ship)
		}
		return err
	}
	return o.cache.PutFuel(ctx, ship, &result.Fuel)
}

// Navigate runs the full multi-hop navigation script: plan, refuel before
// each hop, set the flight mode, order the hop and idle until arrival.
// Succeeds trivially when the ship is already at the destination.
func (o *Ops) Navigate(ctx context.Context, ship, destination string) error {
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	if nav.WaypointSymbol == destination && !nav.InTransit() {
		return nil
	}
	if nav.InTransit() {
		if err := o.AwaitNavigation(ctx, ship); err != nil {
			return err
		}
		nav, err = o.cache.Nav(ctx, ship)
		if err != nil {
			return err
		}
	}

	fuel, err := o.cache.Fuel(ctx, ship)
	if err != nil {
		return err
	}
	role, err := o.cache.Role(ctx, ship)
	if err != nil {
		return err
	}
	plan, err := o.planner.Plan(ctx, routing.PlanShip{
		Symbol:       ship,
		Role:         role,
		SystemSymbol: nav.SystemSymbol,
		FuelCapacity: fuel.Capacity,
	}, nav.WaypointSymbol, destination)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		return shared.NewDomainError(shared.FailureNoPath, "%s could not find a path to %s", ship, destination)
	}

	for _, hop := range plan {
		// Top up before each hop; some waypoints sell no fuel and that's fine.
		if err := o.Refuel(ctx, ship); err != nil && !shared.IsDomainFailure(err, shared.FailureNoFuelSold) {
			fmt.Printf("[WARNING] %s failed to refuel before hop to %s: %v\n", ship, hop.Waypoint, err)
		}
		if err := o.hop(ctx, ship, hop); err != nil {
			// The ship may already be in place or hit a refusal; break off and
			// let the final position check decide.
			fmt.Printf("[ERROR] %s failed hop to %s: %v\n", ship, hop.Waypoint, err)
			break
		}
		if err := o.AwaitNavigation(ctx, ship); err != nil {
			return err
		}
	}

	// Re-sync once arrived to ensure internal consistency.
	if err := o.cache.RefreshNav(ctx, ship); err != nil {
		return err
	}
	nav, err = o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	if nav.WaypointSymbol != destination {
		return shared.NewDomainError(shared.FailureNoPath, "%s could not complete path to %s", ship, destination)
	}
	return nil
}

// hop orders one leg of a plan: flight mode, orbit, navigate, write-through.
func (o *Ops) hop(ctx context.Context, ship string, hop routing.Hop) error {
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	if nav.InTransit() {
		return shared.NewDomainError(shared.FailureShipInTransit, "%s is already in transit", ship)
	}
	if nav.WaypointSymbol == hop.Waypoint {
		return nil
	}
	if err := o.SetFlightMode(ctx, ship, hop.FlightMode); err != nil {
		return err
	}
	if err := o.Orbit(ctx, ship); err != nil {
		return err
	}
	result, err := o.client.Navigate(ctx, ship, hop.Waypoint)
	if err != nil {
		return err
	}
	if err := o.cache.PutNav(ctx, ship, &result.Nav); err != nil {
		return err
	}
	return o.cache.PutFuel(ctx, ship, &result.Fuel)
}

// ExtractionOutcome reports one extraction or siphon cycle
type ExtractionOutcome struct {
	YieldSymbol     string
	YieldUnits      int
	Kept            bool
	CargoFull       bool
	CooldownSeconds int
}

// Extract mines the ship's current waypoint, keeping only whitelisted goods.
// An empty whitelist keeps everything.
func (o *Ops) Extract(ctx context.Context, ship string, whitelist []string) (*ExtractionOutcome, error) {
	return o.extraction(ctx, ship, whitelist, o.client.Extract)
}

// Siphon siphons the ship's current waypoint, keeping only whitelisted goods
func (o *Ops) Siphon(ctx context.Context, ship string, whitelist []string) (*ExtractionOutcome, error) {
	return o.extraction(ctx, ship, whitelist, o.client.Siphon)
}

func (o *Ops) extraction(ctx context.Context, ship string, whitelist []string, action func(context.Context, string) (*api.ExtractionResult, error)) (*ExtractionOutcome, error) {
	result, err := action(ctx, ship)
	if err != nil {
		return nil, err
	}
	if err := o.cache.PutCargo(ctx, ship, &result.Cargo); err != nil {
		return nil, err
	}
	if err := o.cache.PutCooldown(ctx, ship, &result.Cooldown); err != nil {
		return nil, err
	}
	if err := o.ledger.AppendYield(ctx, ship, result.Yield.Symbol, result.Yield.Units); err != nil {
		return nil, err
	}

	outcome := &ExtractionOutcome{
		YieldSymbol:     result.Yield.Symbol,
		YieldUnits:      result.Yield.Units,
		Kept:            true,
		CargoFull:       result.Cargo.Units >= result.Cargo.Capacity,
		CooldownSeconds: result.Cooldown.RemainingSeconds,
	}

	// The game records the yield before the whitelist applies, so undesired
	// goods are jettisoned right after the fact.
	if len(whitelist) > 0 && !contains(whitelist, result.Yield.Symbol) {
		cargo, err := o.client.Jettison(ctx, ship, result.Yield.Symbol, result.Yield.Units)
		if err != nil {
			return nil, err
		}
		if err := o.cache.PutCargo(ctx, ship, cargo); err != nil {
			return nil, err
		}
		outcome.Kept = false
		outcome.CargoFull = cargo.Units >= cargo.Capacity
	}
	return outcome, nil
}

// Jettison dumps units of a good and writes the cargo through
func (o *Ops) Jettison(ctx context.Context, ship, good string, units int) error {
	cargo, err := o.client.Jettison(ctx, ship, good, units)
	if err != nil {
		return err
	}
	return o.cache.PutCargo(ctx, ship, cargo)
}

// SellGoods docks and sells the given goods at the current market, in
// increments capped by each good's trade volume.
func (o *Ops) SellGoods(ctx context.Context, ship string, goods map[string]int) error {
	if err := o.Dock(ctx, ship); err != nil {
		return err
	}
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	var firstErr error
	for good, units := range goods {
		tg, err := o.markets.CurrentGood(ctx, nav.WaypointSymbol, good)
		if err != nil {
			return err
		}
		if tg == nil {
			if firstErr == nil {
				firstErr = shared.NewDomainError(shared.FailureGoodNotTraded, "market %s does not trade %s", nav.WaypointSymbol, good)
			}
			continue
		}
		remaining := units
		for remaining > 0 {
			batch := remaining
			if tg.TradeVolume < batch {
				batch = tg.TradeVolume
			}
			result, err := o.client.Sell(ctx, ship, good, batch)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				break
			}
			t := result.Transaction
			fmt.Printf("[INFO] %s sold %d %s @ %d for a total of %d credits.\n", ship, t.Units, good, t.PricePerUnit, t.TotalPrice)
			if err := o.ledger.AppendTransaction(ctx, ship, t.WaypointSymbol, good, t.Type, t.Units, t.PricePerUnit, t.TotalPrice); err != nil {
				return err
			}
			if err := o.cache.PutCargo(ctx, ship, &result.Cargo); err != nil {
				return err
			}
			remaining -= t.Units
		}
	}
	return firstErr
}

// BuyGoods docks and buys the given goods at the current market, in
// increments capped by each good's trade volume.
func (o *Ops) BuyGoods(ctx context.Context, ship string, goods map[string]int) error {
	if err := o.Dock(ctx, ship); err != nil {
		return err
	}
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	for good, units := range goods {
		tg, err := o.markets.CurrentGood(ctx, nav.WaypointSymbol, good)
		if err != nil {
			return err
		}
		if tg == nil {
			return shared.NewDomainError(shared.FailureGoodNotTraded, "market %s does not trade %s", nav.WaypointSymbol, good)
		}
		remaining := units
		for remaining > 0 {
			batch := remaining
			if tg.TradeVolume < batch {
				batch = tg.TradeVolume
			}
			result, err := o.client.Purchase(ctx, ship, good, batch)
			if err != nil {
				return err
			}
			t := result.Transaction
			fmt.Printf("[INFO] %s bought %d %s @ %d for a total of %d credits.\n", ship, t.Units, good, t.PricePerUnit, t.TotalPrice)
			if err := o.ledger.AppendTransaction(ctx, ship, t.WaypointSymbol, good, t.Type, t.Units, t.PricePerUnit, t.TotalPrice); err != nil {
				return err
			}
			if err := o.cache.PutCargo(ctx, ship, &result.Cargo); err != nil {
				return err
			}
			remaining -= t.Units
		}
	}
	return nil
}

// SellToMarket navigates to a market, sells the goods there and refreshes the
// market snapshot afterwards.
func (o *Ops) SellToMarket(ctx context.Context, ship, marketSymbol string, goods map[string]int) error {
	if err := o.Navigate(ctx, ship, marketSymbol); err != nil {
		return err
	}
	if err := o.SellGoods(ctx, ship, goods); err != nil {
		return err
	}
	if err := tasks.Sleep(ctx, marketSettleDelay); err != nil {
		return err
	}
	return o.RefreshMarket(ctx, ship)
}

// BuyFromMarket navigates to a market, buys the goods there and refreshes the
// market snapshot afterwards.
func (o *Ops) BuyFromMarket(ctx context.Context, ship, marketSymbol string, goods map[string]int) error {
	if err := o.Navigate(ctx, ship, marketSymbol); err != nil {
		return err
	}
	if err := o.BuyGoods(ctx, ship, goods); err != nil {
		return err
	}
	if err := tasks.Sleep(ctx, marketSettleDelay); err != nil {
		return err
	}
	return o.RefreshMarket(ctx, ship)
}

// ClearCargo sells off the ship's entire hold, chasing the best-paying market
// for the largest stack each round. Goods no market is known to trade are
// jettisoned so the hold always ends empty.
func (o *Ops) ClearCargo(ctx context.Context, ship string) error {
	for {
		cargo, err := o.cache.Cargo(ctx, ship)
		if err != nil {
			return err
		}
		if cargo.IsEmpty() {
			return nil
		}
		nav, err := o.cache.Nav(ctx, ship)
		if err != nil {
			return err
		}

		// Largest stack decides the next stop.
		biggest := cargo.Inventory[0]
		for _, item := range cargo.Inventory {
			if item.Units > biggest.Units {
				biggest = item
			}
		}
		best, _, err := o.markets.BestMarketFor(ctx, nav.SystemSymbol, biggest.Symbol)
		if err != nil {
			return err
		}
		if best == "" {
			fmt.Printf("[WARNING] %s found no market for %d %s; jettisoning.\n", ship, biggest.Units, biggest.Symbol)
			if err := o.Jettison(ctx, ship, biggest.Symbol, biggest.Units); err != nil {
				return err
			}
			continue
		}

		if err := o.Navigate(ctx, ship, best); err != nil {
			return err
		}
		// Sell everything this market takes, not just the stack we came for.
		toSell := make(map[string]int)
		for _, item := range cargo.Inventory {
			if tg, err := o.markets.CurrentGood(ctx, best, item.Symbol); err == nil && tg != nil {
				toSell[item.Symbol] = item.Units
			}
		}
		if err := o.SellGoods(ctx, ship, toSell); err != nil && !shared.IsDomainFailure(err) {
			return err
		}
		if err := tasks.Sleep(ctx, marketSettleDelay); err != nil {
			return err
		}
		if err := o.RefreshMarket(ctx, ship); err != nil {
			return err
		}
	}
}

// TransferAll drains every unit of the source ship's hold into the sink ship.
// The sink must already be at the source's waypoint; it is docked first when
// the source is docked, and is not moved to orbit otherwise.
func (o *Ops) TransferAll(ctx context.Context, sinkShip, sourceShip string) error {
	sinkNav, err := o.cache.Nav(ctx, sinkShip)
	if err != nil {
		return err
	}
	srcNav, err := o.cache.Nav(ctx, sourceShip)
	if err != nil {
		return err
	}
	if sinkNav.WaypointSymbol != srcNav.WaypointSymbol {
		return shared.NewDomainError(shared.FailureShipsNotColocated, "%s and %s are not at the same waypoint", sinkShip, sourceShip)
	}
	if srcNav.Status == navigation.NavStatusDocked {
		if err := o.Dock(ctx, sinkShip); err != nil {
			return err
		}
	}

	srcCargo, err := o.cache.Cargo(ctx, sourceShip)
	if err != nil {
		return err
	}
	sinkCargo, err := o.cache.Cargo(ctx, sinkShip)
	if err != nil {
		return err
	}
	free := sinkCargo.AvailableCapacity()
	for _, item := range srcCargo.Inventory {
		units := item.Units
		if units > free {
			units = free
		}
		if units <= 0 {
			break
		}
		cargo, err := o.client.Transfer(ctx, sourceShip, sinkShip, item.Symbol, units)
		if err != nil {
			return err
		}
		if err := o.cache.PutCargo(ctx, sourceShip, cargo); err != nil {
			return err
		}
		if err := o.cache.ApplyCargoDelta(ctx, sinkShip, item.Symbol, units); err != nil {
			return err
		}
		free -= units
		fmt.Printf("[INFO] %s fetched %d %s from %s.\n", sinkShip, units, item.Symbol, sourceShip)
	}
	return nil
}

// RefreshMarket snapshots trade goods at the ship's current waypoint
func (o *Ops) RefreshMarket(ctx context.Context, ship string) error {
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	data, err := o.client.GetMarket(ctx, nav.SystemSymbol, nav.WaypointSymbol)
	if err != nil {
		return err
	}
	if len(data.TradeGoods) == 0 {
		return shared.NewDomainError(shared.FailureRefused, "no trade good visibility at %s", nav.WaypointSymbol)
	}
	goods := make([]market.TradeGood, len(data.TradeGoods))
	for i, g := range data.TradeGoods {
		goods[i] = market.TradeGood{
			Symbol:        g.Symbol,
			Type:          g.Type,
			TradeVolume:   g.TradeVolume,
			Supply:        g.Supply,
			Activity:      g.Activity,
			PurchasePrice: g.PurchasePrice,
			SellPrice:     g.SellPrice,
		}
	}
	return o.markets.AppendSnapshots(ctx, nav.WaypointSymbol, goods)
}

// RefreshShipyard snapshots the shipyard at the ship's current waypoint, when
// there is one.
func (o *Ops) RefreshShipyard(ctx context.Context, ship string) error {
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return err
	}
	data, err := o.client.GetShipyard(ctx, nav.SystemSymbol, nav.WaypointSymbol)
	if err != nil {
		return err
	}
	var ships []market.ShipyardShip
	var modules []market.ShipyardModule
	for _, s := range data.Ships {
		ships = append(ships, market.ShipyardShip{
			ShipyardSymbol: data.Symbol,
			Type:           s.Type,
			Name:           s.Name,
			PurchasePrice:  s.PurchasePrice,
			Supply:         s.Supply,
			FrameSymbol:    s.Frame.Symbol,
		})
		for _, m := range s.Modules {
			modules = append(modules, market.ShipyardModule{
				ShipType: s.Type,
				Symbol:   m.Symbol,
				Name:     m.Name,
				Capacity: m.Capacity,
			})
		}
	}
	return o.markets.AppendShipyard(ctx, ships, modules)
}

// PurchaseShip buys a new ship at a shipyard and registers it in the cache
func (o *Ops) PurchaseShip(ctx context.Context, ship, shipyard, shipType string) error {
	if err := o.Navigate(ctx, ship, shipyard); err != nil {
		return err
	}
	if err := o.Dock(ctx, ship); err != nil {
		return err
	}
	result, err := o.client.PurchaseShip(ctx, shipType, shipyard)
	if err != nil {
		return err
	}
	fmt.Printf("[INFO] %s bought a new %s for %d credits (at %s).\n", ship, shipType, result.Transaction.Price, shipyard)
	return o.cache.putShip(ctx, &result.Ship)
}

// RefreshWaypoints pulls every waypoint in a system and persists it with its
// traits. Run at startup to bootstrap the map.
func (o *Ops) RefreshWaypoints(ctx context.Context, system string) (int, error) {
	data, err := o.client.ListWaypoints(ctx, system)
	if err != nil {
		return 0, err
	}
	for _, wpData := range data {
		wp := &shared.Waypoint{
			Symbol:       wpData.Symbol,
			SystemSymbol: wpData.SystemSymbol,
			Type:         wpData.Type,
			X:            wpData.X,
			Y:            wpData.Y,
		}
		for _, t := range wpData.Traits {
			wp.Traits = append(wp.Traits, t.Symbol)
		}
		if err := o.waypoints.Save(ctx, wp); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ShipWaypoint returns the ship's current waypoint from the cache
func (o *Ops) ShipWaypoint(ctx context.Context, ship string) (string, error) {
	nav, err := o.cache.Nav(ctx, ship)
	if err != nil {
		return "", err
	}
	return nav.WaypointSymbol, nil
}

// Cargo returns the ship's cargo manifest from the cache
func (o *Ops) Cargo(ctx context.Context, ship string) (*shared.Cargo, error) {
	return o.cache.Cargo(ctx, ship)
}

// FuelCapacity returns the ship's tank size from the cache
func (o *Ops) FuelCapacity(ctx context.Context, ship string) (int, error) {
	fuel, err := o.cache.Fuel(ctx, ship)
	if err != nil {
		return 0, err
	}
	return fuel.Capacity, nil
}
