package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/andrescamacho/fleetcore/internal/application/ship"
	"github.com/andrescamacho/fleetcore/internal/domain/fleet"
	"github.com/andrescamacho/fleetcore/internal/domain/navigation"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/tasks"
)

const (
	baseControllerID = "EXTRACTION-CONTROLLER"

	// Over-mining drains a site, so the working excavator counts are capped.
	defaultMaxMiners    = 8
	defaultMaxSiphoners = 10

	extractorRefreshPeriod = 15 * time.Second
	statusReportPeriod     = 10 * time.Minute

	// Extraction site types, fixed per system.
	asteroidType = "ENGINEERED_ASTEROID"
	gasGiantType = "GAS_GIANT"

	// Time between hold checks while a full excavator waits for pickup.
	pickupWait = 10 * time.Second

	// Slack added on top of the reported cooldown before the next attempt.
	cooldownSlack = 150 * time.Millisecond
)

// ExtractorConfig parameterises the excavator sub-controller
type ExtractorConfig struct {
	System       string
	MaxMiners    int
	MaxSiphoners int
}

// ExtractorController keeps up to the configured number of mining and siphon
// drones permanently working the system's extraction sites.
type ExtractorController struct {
	cfg    ExtractorConfig
	frm    fleet.Manager
	ops    excavatorOps
	sites  siteStore
	ships  fleetQueries
	ledger yieldLedger
	clock  shared.Clock

	id       string
	priority int
	miners   map[string]*extractorEntry
	siphons  map[string]*extractorEntry
}

type extractorEntry struct {
	waypoint string
	task     *tasks.Task
	started  time.Time
}

// NewExtractorController creates the excavator sub-controller
func NewExtractorController(cfg ExtractorConfig, frm fleet.Manager, ops excavatorOps, sites siteStore, ships fleetQueries, ledger yieldLedger, clock shared.Clock) *ExtractorController {
	if cfg.MaxMiners <= 0 {
		cfg.MaxMiners = defaultMaxMiners
	}
	if cfg.MaxSiphoners <= 0 {
		cfg.MaxSiphoners = defaultMaxSiphoners
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ExtractorController{
		cfg:      cfg,
		frm:      frm,
		ops:      ops,
		sites:    sites,
		ships:    ships,
		ledger:   ledger,
		clock:    clock,
		id:       baseControllerID + "-EXCAVATORS-" + cfg.System,
		priority: fleet.PriorityExtractors,
		miners:   make(map[string]*extractorEntry),
		siphons:  make(map[string]*extractorEntry),
	}
}

// ID returns the controller identifier used in lock rows
func (c *ExtractorController) ID() string {
	return c.id
}

// Run acquires excavators up to the caps and keeps them extracting until the
// context is cancelled. The fleet is released on every exit path.
func (c *ExtractorController) Run(ctx context.Context) error {
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		if err := c.frm.ReleaseFleet(releaseCtx, c.id, false); err != nil {
			fmt.Printf("[ERROR] %s failed to release its fleet on exit: %v\n", c.id, err)
		}
	}()

	// Extraction sites are static per system, so they are looked up once.
	asteroid, err := c.sites.FindSiteByType(ctx, c.cfg.System, asteroidType)
	if err != nil {
		return err
	}
	gasGiant, err := c.sites.FindSiteByType(ctx, c.cfg.System, gasGiantType)
	if err != nil {
		return err
	}

	started := c.clock.Now()
	lastReport := started
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Re-read the whitelist each tick so policy changes apply to new
		// dispatches; running tasks keep the list they started with.
		goods, err := c.sites.ExcavatorGoods(ctx)
		if err != nil {
			fmt.Printf("[ERROR] %s failed to read the goods whitelist: %v\n", c.id, err)
			goods = nil
		}

		if asteroid != "" {
			if err := c.acquire(ctx, c.miners, c.cfg.MaxMiners, navigation.MountMiningLaserPrefix, asteroid, goods, c.ops.Extract); err != nil {
				return err
			}
		}
		if gasGiant != "" {
			if err := c.acquire(ctx, c.siphons, c.cfg.MaxSiphoners, navigation.MountGasSiphonPrefix, gasGiant, goods, c.ops.Siphon); err != nil {
				return err
			}
		}

		// Excavator tasks loop forever; one finishing means it failed out.
		for _, group := range []map[string]*extractorEntry{c.miners, c.siphons} {
			for s, entry := range group {
				if !entry.task.Done() {
					continue
				}
				if _, taskErr := entry.task.Result(); taskErr != nil && shared.IsFatal(taskErr) {
					return taskErr
				}
				if err := c.frm.Release(ctx, s, false); err != nil {
					fmt.Printf("[ERROR] %s failed to release %s: %v\n", c.id, s, err)
				}
				delete(group, s)
			}
		}

		if c.clock.Now().Sub(lastReport) >= statusReportPeriod {
			c.report(ctx, started)
			lastReport = c.clock.Now()
		}

		if err := tasks.Sleep(ctx, extractorRefreshPeriod); err != nil {
			return err
		}
	}
}

// acquire tops the group up to its cap with available excavators carrying the
// right mounts, spawning the endless extraction task per acquired ship.
func (c *ExtractorController) acquire(ctx context.Context, group map[string]*extractorEntry, limit int, mountPrefix, site string, goods []string,
	action func(ctx context.Context, shipSymbol string, whitelist []string) (*ship.ExtractionOutcome, error)) error {
	if len(group) >= limit {
		return nil
	}
	available, err := c.frm.AvailableShips(ctx, []string{c.cfg.System}, fleet.RoleExcavator, c.priority, c.id)
	if err != nil {
		return err
	}
	candidates, err := c.ships.ShipsWithMountPrefix(ctx, available, mountPrefix)
	if err != nil {
		return err
	}
	toAcquire := limit - len(group)
	for _, candidate := range candidates {
		if toAcquire == 0 {
			break
		}
		if _, busy := group[candidate]; busy {
			continue
		}
		granted, err := c.frm.Request(ctx, candidate, c.id, c.priority)
		if err != nil {
			return err
		}
		if !granted {
			continue
		}
		drone := candidate
		whitelist := append([]string(nil), goods...)
		group[drone] = &extractorEntry{
			waypoint: site,
			started:  c.clock.Now(),
			task: tasks.Spawn(ctx, "extract-"+drone, func(taskCtx context.Context) (bool, error) {
				return c.extractLoop(taskCtx, drone, site, whitelist, action)
			}),
		}
		toAcquire--
	}
	return nil
}

// extractLoop is the per-drone task: reach the site, orbit, and extract until
// cancelled. A full hold idles awaiting pickup; failures wait out the same
// pickup interval and try again.
func (c *ExtractorController) extractLoop(ctx context.Context, drone, site string, whitelist []string,
	action func(ctx context.Context, shipSymbol string, whitelist []string) (*ship.ExtractionOutcome, error)) (bool, error) {
	if err := c.ops.Navigate(ctx, drone, site); err != nil {
		fmt.Printf("[ERROR] %s was unable to reach extraction site %s: %v\n", drone, site, err)
		return false, nil
	}
	if err := c.ops.Orbit(ctx, drone); err != nil {
		return false, nil
	}

	for {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		cargo, err := c.ops.Cargo(ctx, drone)
		if err != nil {
			return false, err
		}
		if cargo.IsFull() {
			// Standing by for pickup.
			if err := tasks.Sleep(ctx, pickupWait); err != nil {
				return false, err
			}
			continue
		}

		outcome, err := action(ctx, drone, whitelist)
		if err != nil {
			if shared.IsFatal(err) {
				return false, err
			}
			if err := tasks.Sleep(ctx, pickupWait); err != nil {
				return false, err
			}
			continue
		}
		if outcome.CargoFull {
			fmt.Printf("[INFO] %s has filled its hold. Standing by for pickup.\n", drone)
			if err := tasks.Sleep(ctx, pickupWait); err != nil {
				return false, err
			}
			continue
		}
		wait := time.Duration(outcome.CooldownSeconds)*time.Second + cooldownSlack
		if err := tasks.Sleep(ctx, wait); err != nil {
			return false, err
		}
	}
}

// report prints the periodic yield summary
func (c *ExtractorController) report(ctx context.Context, since time.Time) {
	all := make([]string, 0, len(c.miners)+len(c.siphons))
	for s := range c.miners {
		all = append(all, s)
	}
	for s := range c.siphons {
		all = append(all, s)
	}
	total, err := c.ledger.YieldSince(ctx, all, since)
	if err != nil {
		fmt.Printf("[ERROR] %s failed to compute its yield report: %v\n", c.id, err)
		return
	}
	minutes := c.clock.Now().Sub(since).Minutes()
	perHour := 0.0
	if minutes > 0 {
		perHour = float64(total) / minutes * 60
	}
	fmt.Printf("[STATUS REPORT - %s]\n", c.id)
	fmt.Printf("\t  [INFO] Currently controlling %d miners and %d siphon drones.\n", len(c.miners), len(c.siphons))
	fmt.Printf("\t  [INFO] Total yield for job : %d units.\n", total)
	fmt.Printf("\t  [INFO] Projected units/hr  : %.1f u/hr.\n", perHour)
}
