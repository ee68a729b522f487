package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/andrescamacho/fleetcore/internal/domain/fleet"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/tasks"
)

const (
	haulerRefreshPeriod = 9 * time.Second

	// Excavators count as serviceable once this full.
	fullCargoRatio = 0.85

	// A haul order is only worth the trip when the rounded-up yields cover
	// this share of the hauler's free capacity.
	minHaulRatio = 0.75
)

// HaulerConfig parameterises the hauler sub-controller
type HaulerConfig struct {
	System     string
	MaxHaulers int
}

// HaulerController periodically scans the extraction sites for near-full
// excavators and sends the closest available haulers to collect and sell
// their yields.
type HaulerController struct {
	cfg      HaulerConfig
	frm      fleet.Manager
	ops      excavatorOps
	sites    siteStore
	ships    fleetQueries
	ledger   yieldLedger
	distance distanceFunc
	clock    shared.Clock

	id       string
	priority int
	fleet    map[string]*haulEntry
}

type haulEntry struct {
	targets []string
	task    *tasks.Task
	started time.Time
}

// NewHaulerController creates the hauler sub-controller
func NewHaulerController(cfg HaulerConfig, frm fleet.Manager, ops excavatorOps, sites siteStore, ships fleetQueries, ledger yieldLedger, distance distanceFunc, clock shared.Clock) *HaulerController {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &HaulerController{
		cfg:      cfg,
		frm:      frm,
		ops:      ops,
		sites:    sites,
		ships:    ships,
		ledger:   ledger,
		distance: distance,
		clock:    clock,
		id:       baseControllerID + "-HAULERS-" + cfg.System,
		priority: fleet.PriorityHaulers,
		fleet:    make(map[string]*haulEntry),
	}
}

// ID returns the controller identifier used in lock rows
func (c *HaulerController) ID() string {
	return c.id
}

// Run drives the pickup loop until the context is cancelled. The fleet is
// released on every exit path.
func (c *HaulerController) Run(ctx context.Context) error {
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		if err := c.frm.ReleaseFleet(releaseCtx, c.id, false); err != nil {
			fmt.Printf("[ERROR] %s failed to release its fleet on exit: %v\n", c.id, err)
		}
	}()

	asteroid, err := c.sites.FindSiteByType(ctx, c.cfg.System, asteroidType)
	if err != nil {
		return err
	}
	gasGiant, err := c.sites.FindSiteByType(ctx, c.cfg.System, gasGiantType)
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Release haulers that finished their runs.
		for s, entry := range c.fleet {
			if !entry.task.Done() {
				continue
			}
			if _, taskErr := entry.task.Result(); taskErr != nil && shared.IsFatal(taskErr) {
				return taskErr
			}
			fmt.Printf("[INFO] %s finished delivering mined goods.\n", s)
			if err := c.frm.Release(ctx, s, false); err != nil {
				fmt.Printf("[ERROR] %s failed to release %s: %v\n", c.id, s, err)
			}
			delete(c.fleet, s)
		}

		if len(c.fleet) >= c.cfg.MaxHaulers {
			fmt.Printf("[INFO] %s is at fleet capacity (%d haulers). Standing by.\n", c.id, len(c.fleet))
			if err := tasks.Sleep(ctx, haulerRefreshPeriod); err != nil {
				return err
			}
			continue
		}

		// Excavators already being serviced are off-limits this pass.
		marked := make(map[string]bool)
		for _, entry := range c.fleet {
			for _, t := range entry.targets {
				marked[t] = true
			}
		}

		for _, site := range []string{asteroid, gasGiant} {
			if site == "" {
				continue
			}
			if err := c.serviceSite(ctx, site, marked); err != nil {
				if shared.IsFatal(err) {
					return err
				}
				fmt.Printf("[ERROR] %s failed to service %s: %v\n", c.id, site, err)
			}
		}

		if err := tasks.Sleep(ctx, haulerRefreshPeriod); err != nil {
			return err
		}
	}
}

// serviceSite finds near-full excavators at one site and dispatches haulers
func (c *HaulerController) serviceSite(ctx context.Context, site string, marked map[string]bool) error {
	full, err := c.ships.FullShipsAt(ctx, site, fleet.RoleExcavator, fullCargoRatio)
	if err != nil {
		return err
	}
	var targets []string
	for _, s := range full {
		if !marked[s] {
			targets = append(targets, s)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	candidates, err := c.closestHaulers(ctx, site)
	if err != nil {
		return err
	}
	maxCandidates := c.cfg.MaxHaulers - len(c.fleet)
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	c.dispatchHaulers(ctx, candidates, targets, marked)
	return nil
}

// closestHaulers returns the system's haulers ordered by distance to the
// site, busy or not; the resource manager decides acquirability at request
// time.
func (c *HaulerController) closestHaulers(ctx context.Context, site string) ([]string, error) {
	haulers, err := c.ships.ShipsByRoleInSystems(ctx, []string{c.cfg.System}, fleet.RoleHauler)
	if err != nil {
		return nil, err
	}
	candidates := make([]fleet.Candidate, 0, len(haulers))
	for s, wp := range haulers {
		candidates = append(candidates, fleet.Candidate{ShipSymbol: s, Waypoint: wp})
	}
	selector := fleet.NewSelector(func(src, dst string) (float64, error) {
		return c.distance(ctx, src, dst)
	})
	ordered := selector.SortByDistance(candidates, site)
	out := make([]string, len(ordered))
	for i, cand := range ordered {
		out[i] = cand.ShipSymbol
	}
	return out, nil
}

// dispatchHaulers tries to cover all target excavators with the candidate
// haulers. Per candidate: acquire it, round up as many targets as fit its
// free capacity, and only commit when the total yield is worth the trip;
// otherwise release it immediately and try the next (possibly smaller) one.
// Returns true when every target was assigned.
func (c *HaulerController) dispatchHaulers(ctx context.Context, candidates, targets []string, marked map[string]bool) bool {
	hIx := 0
	remaining := append([]string(nil), targets...)
	for len(remaining) > 0 && hIx < len(candidates) {
		hauler := candidates[hIx]
		granted, err := c.frm.Request(ctx, hauler, c.id, c.priority)
		if err != nil {
			fmt.Printf("[ERROR] %s failed requesting %s: %v\n", c.id, hauler, err)
			return false
		}
		if !granted {
			hIx++
			continue
		}

		cargo, err := c.ops.Cargo(ctx, hauler)
		if err != nil {
			fmt.Printf("[ERROR] %s failed reading cargo of %s: %v\n", c.id, hauler, err)
			return false
		}
		capacity := cargo.AvailableCapacity()

		var haulTargets []string
		totalYield := 0
		for _, drone := range remaining {
			droneCargo, err := c.ops.Cargo(ctx, drone)
			if err != nil {
				continue
			}
			if totalYield+droneCargo.Units <= capacity {
				haulTargets = append(haulTargets, drone)
				totalYield += droneCargo.Units
			}
		}

		if float64(totalYield) < float64(capacity)*minHaulRatio {
			// Remaining drones aren't filled enough for this hauler; free it
			// right away so a smaller one can take the job.
			if err := c.frm.Release(ctx, hauler, false); err != nil {
				fmt.Printf("[ERROR] %s failed to release %s: %v\n", c.id, hauler, err)
			}
			hIx++
			continue
		}

		fmt.Printf("[INFO] %s en-route to pick up %d units of mined goods from %v.\n", hauler, totalYield, haulTargets)
		committed := hauler
		committedTargets := append([]string(nil), haulTargets...)
		c.fleet[committed] = &haulEntry{
			targets: committedTargets,
			started: c.clock.Now(),
			task: tasks.Spawn(ctx, "haul-"+committed, func(taskCtx context.Context) (bool, error) {
				return c.haulYields(taskCtx, committed, committedTargets)
			}),
		}
		for _, t := range committedTargets {
			marked[t] = true
		}

		next := remaining[:0]
		for _, t := range remaining {
			if !contains(committedTargets, t) {
				next = append(next, t)
			}
		}
		remaining = next
		hIx++
	}
	return len(remaining) == 0
}

// haulYields is the per-hauler task: visit each target drone, drain its
// cargo, then sell off the collected hold and log the sale. The span is
// blocked so the hauler cannot be preempted mid-run.
func (c *HaulerController) haulYields(ctx context.Context, hauler string, targets []string) (bool, error) {
	if err := c.frm.SetBlocked(ctx, hauler, true); err != nil {
		return false, err
	}
	defer func() {
		unblockCtx := context.WithoutCancel(ctx)
		if err := c.frm.SetBlocked(unblockCtx, hauler, false); err != nil {
			fmt.Printf("[ERROR] %s failed to unblock %s: %v\n", c.id, hauler, err)
		}
	}()

	if err := c.ops.AwaitNavigation(ctx, hauler); err != nil {
		return false, err
	}

	started := c.clock.Now()
	for _, drone := range targets {
		wp, err := c.ops.ShipWaypoint(ctx, drone)
		if err != nil {
			fmt.Printf("[ERROR] %s could not locate %s: %v\n", hauler, drone, err)
			continue
		}
		if err := c.ops.Navigate(ctx, hauler, wp); err != nil {
			fmt.Printf("[ERROR] %s could not reach %s: %v\n", hauler, drone, err)
			continue
		}
		if err := c.ops.TransferAll(ctx, hauler, drone); err != nil {
			fmt.Printf("[ERROR] %s was unable to drain cargo from %s: %v\n", hauler, drone, err)
		}
	}
	fmt.Printf("[INFO] %s picked up designated yields.\n", hauler)

	if err := c.ops.ClearCargo(ctx, hauler); err != nil {
		fmt.Printf("[ERROR] %s was unable to sell off its collected haul: %v\n", hauler, err)
	}

	ended := c.clock.Now()
	units, revenue, err := c.ledger.WhitelistedSales(ctx, hauler, started)
	if err != nil {
		fmt.Printf("[ERROR] %s failed to compute haul profit for %s: %v\n", c.id, hauler, err)
		return true, nil
	}
	if err := c.ledger.AppendYieldSale(ctx, hauler, c.id, units, revenue, started, ended); err != nil {
		fmt.Printf("[ERROR] %s failed to log the haul sale for %s: %v\n", c.id, hauler, err)
	}
	fmt.Printf("[INFO] [%s] %s sold %d extracted goods for %d credits.\n", c.id, hauler, units, revenue)
	return true, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
