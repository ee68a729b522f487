// Package scouting keeps market snapshots fresh across a system by
// dispatching satellite probes to markets whose data has gone stale.
package scouting

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andrescamacho/fleetcore/internal/domain/fleet"
	"github.com/andrescamacho/fleetcore/internal/domain/market"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/tasks"
)

// Refresh modes select which markets are worth a probe's time
const (
	ModeAll         = "all"
	ModeNoFuel      = "no_fuel"
	ModeNoExchanges = "no_exchanges"
)

const (
	baseControllerID = "PROBE-MANAGER"

	// The server needs to register the probe's presence before market data
	// can be fetched after arrival.
	serverSettleDelay = 4 * time.Second

	// Idle time between passes when no probes could be acquired.
	acquireRetryDelay = 2 * time.Second
)

// marketIntel is the slice of the market repository the controller queries
type marketIntel interface {
	AllMarketsByFreshness(ctx context.Context, system string, maxAge time.Duration) ([]market.MarketAge, error)
	NonFuelMarketsByFreshness(ctx context.Context, system string, maxAge time.Duration) ([]market.MarketAge, error)
	ImportExportMarketsByFreshness(ctx context.Context, system string, maxAge time.Duration) ([]market.MarketAge, error)
}

// probeOps is the slice of ship operations the probe tasks run
type probeOps interface {
	Navigate(ctx context.Context, ship, destination string) error
	Dock(ctx context.Context, ship string) error
	RefreshMarket(ctx context.Context, ship string) error
	RefreshShipyard(ctx context.Context, ship string) error
	ShipWaypoint(ctx context.Context, ship string) (string, error)
}

// distanceFunc resolves same-system waypoint distances
type distanceFunc func(ctx context.Context, a, b string) (float64, error)

// Config parameterises one market-intel controller
type Config struct {
	System      string
	RefreshFreq time.Duration // -1 disables idle sleeping between passes
	Mode        string
}

// Controller dispatches satellites to stale markets until cancelled
type Controller struct {
	cfg      Config
	frm      fleet.Manager
	ops      probeOps
	intel    marketIntel
	distance distanceFunc
	clock    shared.Clock

	id       string
	priority int
	fleet    map[string]*fleetEntry
}

type fleetEntry struct {
	market  string
	task    *tasks.Task
	started time.Time
}

// NewController creates a market-intel controller
func NewController(cfg Config, frm fleet.Manager, ops probeOps, intel marketIntel, distance distanceFunc, clock shared.Clock) (*Controller, error) {
	switch cfg.Mode {
	case ModeAll, ModeNoFuel, ModeNoExchanges:
	default:
		return nil, fmt.Errorf("incorrect market refresh mode: %q", cfg.Mode)
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Controller{
		cfg:      cfg,
		frm:      frm,
		ops:      ops,
		intel:    intel,
		distance: distance,
		clock:    clock,
		id:       baseControllerID + "-" + cfg.System,
		priority: fleet.PriorityProbes,
		fleet:    make(map[string]*fleetEntry),
	}, nil
}

// ID returns the controller identifier used in lock rows
func (c *Controller) ID() string {
	return c.id
}

// Run drives the refresh loop until the context is cancelled. The fleet is
// released on every exit path.
func (c *Controller) Run(ctx context.Context) error {
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		if err := c.frm.ReleaseFleet(releaseCtx, c.id, false); err != nil {
			fmt.Printf("[ERROR] %s failed to release its fleet on exit: %v\n", c.id, err)
		}
	}()

	slowest := time.Duration(-1)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		queue, err := c.prioritisedMarkets(ctx)
		if err != nil {
			if shared.IsFatal(err) {
				return err
			}
			fmt.Printf("[ERROR] %s failed to build its market queue: %v\n", c.id, err)
			queue = nil
		}
		if len(queue) >= len(c.fleet) {
			fmt.Printf("[INFO] %s is targeting %d markets.\n", c.id, len(queue))
		}

		cleared, err := c.dispatch(ctx, queue)
		if err != nil {
			return err
		}

		switch {
		case cleared && c.cfg.RefreshFreq > 0:
			if err := tasks.Sleep(ctx, c.cfg.RefreshFreq); err != nil {
				return err
			}
		case !cleared && len(c.runningTasks()) > 0:
			fmt.Printf("[INFO] %s was unable to clear its queue. Waiting for %d probes to report back.\n", c.id, len(c.runningTasks()))
			if _, _, err := tasks.AwaitAny(ctx, c.runningTasks()); err != nil {
				return err
			}
		case !cleared:
			fmt.Printf("[INFO] %s is waiting to acquire a fleet.\n", c.id)
			if err := tasks.Sleep(ctx, acquireRetryDelay); err != nil {
				return err
			}
		}

		// Release finished probes and report.
		failures, successes := 0, 0
		for probe, entry := range c.fleet {
			if !entry.task.Done() {
				continue
			}
			ok, taskErr := entry.task.Result()
			if taskErr != nil && shared.IsFatal(taskErr) {
				return taskErr
			}
			if ok {
				successes++
				taken := c.clock.Now().Sub(entry.started)
				if taken > slowest {
					fmt.Printf("[INFO] %s is reporting a new slowest recon from %s: %.1f seconds.\n", c.id, probe, taken.Seconds())
					slowest = taken
				}
			} else {
				failures++
			}
			if err := c.frm.Release(ctx, probe, false); err != nil {
				fmt.Printf("[ERROR] %s failed to release %s: %v\n", c.id, probe, err)
			}
			delete(c.fleet, probe)
		}
		if successes > 0 {
			fmt.Printf("[INFO] %s successfully refreshed %d markets.\n", c.id, successes)
		}
		if failures > 0 {
			fmt.Printf("[INFO] %s is reporting %d failures to refresh.\n", c.id, failures)
		}

		if err := tasks.Sleep(ctx, time.Second); err != nil {
			return err
		}
	}
}

// dispatch assigns probes to every market in the queue, draining completions
// as it goes. Returns whether the queue was fully cleared. When no probe can
// be acquired the pass is marked blocked: no more assignments are issued and
// finished probes are retained so the same mapping can resume next tick.
func (c *Controller) dispatch(ctx context.Context, queue []string) (bool, error) {
	handled := make(map[string]bool)
	for _, entry := range c.fleet {
		handled[entry.market] = true
	}

	blocked := false
	remaining := append([]string(nil), queue...)
	for len(remaining) > 0 {
		market := remaining[0]

		if handled[market] {
			remaining = remaining[1:]
			continue
		}

		probes, err := c.frm.AvailableShips(ctx, []string{c.cfg.System}, fleet.RoleSatellite, c.priority, c.id)
		if err != nil {
			return false, err
		}
		if len(probes) == 0 {
			fmt.Printf("[INFO] %s found no available ships.\n", c.id)
		}

		var candidates []string
		for _, p := range probes {
			if _, busy := c.fleet[p]; !busy {
				candidates = append(candidates, p)
			}
		}
		assigned, err := c.assignProbe(ctx, candidates, market)
		if err != nil {
			return false, err
		}
		if assigned {
			handled[market] = true
			remaining = remaining[1:]
		} else {
			blocked = true
		}

		// Drain completions every iteration so the availability view stays
		// current within one dispatch pass.
		for probe, entry := range c.fleet {
			if !entry.task.Done() {
				continue
			}
			ok, taskErr := entry.task.Result()
			if taskErr != nil && shared.IsFatal(taskErr) {
				return false, taskErr
			}
			if ok {
				delete(handled, entry.market)
			} else {
				fmt.Printf("[INFO] %s is reporting one failed refresh from %s.\n", c.id, probe)
			}
			// Keep the probe when blocked: it may be reassigned to the
			// blocking market next tick.
			if !blocked {
				if err := c.frm.Release(ctx, probe, false); err != nil {
					fmt.Printf("[ERROR] %s failed to release %s: %v\n", c.id, probe, err)
				}
				delete(c.fleet, probe)
			}
		}

		if blocked {
			break
		}
	}
	return len(remaining) == 0, nil
}

// assignProbe sends the closest candidate probe to the market
func (c *Controller) assignProbe(ctx context.Context, candidates []string, market string) (bool, error) {
	if len(candidates) == 0 {
		return false, nil
	}
	located := make([]fleet.Candidate, 0, len(candidates))
	for _, probe := range candidates {
		wp, err := c.ops.ShipWaypoint(ctx, probe)
		if err != nil {
			return false, err
		}
		located = append(located, fleet.Candidate{ShipSymbol: probe, Waypoint: wp})
	}
	selector := fleet.NewSelector(func(src, dst string) (float64, error) {
		return c.distance(ctx, src, dst)
	})
	best, err := selector.Closest(located, market)
	if err != nil {
		return false, nil
	}
	granted, err := c.frm.Request(ctx, best.ShipSymbol, c.id, c.priority)
	if err != nil || !granted {
		return false, err
	}
	probe := best.ShipSymbol
	c.fleet[probe] = &fleetEntry{
		market:  market,
		started: c.clock.Now(),
		task: tasks.Spawn(ctx, "update-market-"+market, func(taskCtx context.Context) (bool, error) {
			return c.updateMarket(taskCtx, probe, market)
		}),
	}
	return true, nil
}

// updateMarket is the per-probe task: reach the market, wait out the server
// settle delay, dock, and persist trade good and shipyard snapshots. The span
// is blocked end to end so the probe cannot be reassigned mid-refresh.
func (c *Controller) updateMarket(ctx context.Context, probe, market string) (bool, error) {
	if err := c.frm.SetBlocked(ctx, probe, true); err != nil {
		return false, err
	}
	defer func() {
		unblockCtx := context.WithoutCancel(ctx)
		if err := c.frm.SetBlocked(unblockCtx, probe, false); err != nil {
			fmt.Printf("[ERROR] %s failed to unblock %s: %v\n", c.id, probe, err)
		}
	}()

	wp, err := c.ops.ShipWaypoint(ctx, probe)
	if err != nil {
		return false, err
	}
	if wp != market {
		if err := c.ops.Navigate(ctx, probe, market); err != nil {
			fmt.Printf("[ERROR] %s failed to reach market %s: %v\n", probe, market, err)
			return false, nil
		}
	}

	if err := tasks.Sleep(ctx, serverSettleDelay); err != nil {
		return false, err
	}
	if err := c.ops.Dock(ctx, probe); err != nil {
		return false, nil
	}
	if err := c.ops.RefreshMarket(ctx, probe); err != nil {
		fmt.Printf("[ERROR] %s failed to refresh trade goods at %s: %v\n", probe, market, err)
		return false, nil
	}
	// Shipyard data is a bonus; most markets have none.
	if err := c.ops.RefreshShipyard(ctx, probe); err == nil {
		fmt.Printf("[INFO] %s refreshed shipyard data for %s.\n", probe, market)
	}
	return true, nil
}

// prioritisedMarkets builds the refresh queue: the mode's selector picks the
// candidates, then each is scored against the closest available probe.
// The score is the distance plus the distance times how many seconds fresher
// the market is than the stalest candidate, minus one at the probe's current
// waypoint. Lower scores first.
func (c *Controller) prioritisedMarkets(ctx context.Context) ([]string, error) {
	var ages []market.MarketAge
	var err error
	switch c.cfg.Mode {
	case ModeNoFuel:
		ages, err = c.intel.NonFuelMarketsByFreshness(ctx, c.cfg.System, c.cfg.RefreshFreq)
	case ModeNoExchanges:
		ages, err = c.intel.ImportExportMarketsByFreshness(ctx, c.cfg.System, c.cfg.RefreshFreq)
	default:
		ages, err = c.intel.AllMarketsByFreshness(ctx, c.cfg.System, c.cfg.RefreshFreq)
	}
	if err != nil {
		return nil, err
	}
	if len(ages) == 0 {
		return nil, nil
	}

	probes, err := c.frm.AvailableShips(ctx, []string{c.cfg.System}, fleet.RoleSatellite, c.priority, c.id)
	if err != nil {
		return nil, err
	}
	if len(probes) == 0 {
		// No probe positions to score against; fall back to staleness order.
		out := make([]string, len(ages))
		for i, a := range ages {
			out[i] = a.MarketSymbol
		}
		return out, nil
	}

	now := c.clock.Now()
	maxAge := time.Duration(0)
	ageOf := make(map[string]time.Duration, len(ages))
	for _, a := range ages {
		age := time.Duration(0)
		if a.LastUpdated != nil {
			age = now.Sub(*a.LastUpdated)
		}
		ageOf[a.MarketSymbol] = age
		if age > maxAge {
			maxAge = age
		}
	}

	type scoredMarket struct {
		market string
		score  float64
	}
	scored := make([]scoredMarket, 0, len(ages))
	for _, a := range ages {
		best := math.MaxFloat64
		for _, probe := range probes {
			wp, err := c.ops.ShipWaypoint(ctx, probe)
			if err != nil {
				continue
			}
			d, err := c.distance(ctx, wp, a.MarketSymbol)
			if err != nil {
				continue
			}
			score := d + d*(maxAge-ageOf[a.MarketSymbol]).Seconds()
			if wp == a.MarketSymbol {
				score -= 1
			}
			if score < best {
				best = score
			}
		}
		scored = append(scored, scoredMarket{market: a.MarketSymbol, score: best})
	}
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].score < scored[j-1].score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.market
	}
	return out, nil
}

func (c *Controller) runningTasks() []*tasks.Task {
	var out []*tasks.Task
	for _, entry := range c.fleet {
		if !entry.task.Done() {
			out = append(out, entry.task)
		}
	}
	return out
}
