package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrescamacho/fleetcore/internal/adapters/api"
	"github.com/andrescamacho/fleetcore/internal/adapters/persistence"
	appfleet "github.com/andrescamacho/fleetcore/internal/application/fleet"
	"github.com/andrescamacho/fleetcore/internal/application/extraction"
	"github.com/andrescamacho/fleetcore/internal/application/scouting"
	"github.com/andrescamacho/fleetcore/internal/application/ship"
	"github.com/andrescamacho/fleetcore/internal/application/trading"
	"github.com/andrescamacho/fleetcore/internal/domain/routing"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/config"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/database"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/pidfile"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/tasks"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "fleet-daemon",
		Short: "Autonomous fleet orchestration daemon",
		Long: "fleet-daemon runs the fleet orchestration core: a market-intel sweeper, an\n" +
			"extract+haul loop and a greedy trader, all sharing one fleet resource pool.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default: search ./config.yaml)")

	if err := root.Execute(); err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	fmt.Println("fleetcore daemon v0.1.0")
	fmt.Println("=======================")

	cfg := config.MustLoadConfig(configPath)

	pf := pidfile.New(cfg.Fleet.PIDFile)
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := pf.Release(); err != nil {
			fmt.Printf("[WARNING] failed to release PID file: %v\n", err)
		}
	}()

	agentToken, err := cfg.API.LoadAgentToken()
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s database...\n", cfg.Database.Type)
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	clock := shared.NewRealClock()

	// Repositories
	shipStateRepo := persistence.NewShipStateRepository(db, clock)
	waypointRepo := persistence.NewWaypointRepository(db, clock)
	marketRepo := persistence.NewMarketRepository(db, clock)
	ledgerRepo := persistence.NewLedgerRepository(db, clock)
	controlRepo := persistence.NewControlRepository(db, clock, cfg.Fleet.RequestTTL)
	requestLogRepo := persistence.NewRequestLogRepository(db, clock)

	// API client, cache, planner, scripts
	client := api.NewClient(cfg.API.BaseURL, agentToken, cfg.API.RateLimit.Requests, cfg.API.RateLimit.Burst,
		cfg.API.Retry.MaxAttempts, time.Duration(cfg.API.Retry.BackoffBaseMillis)*time.Millisecond, clock, requestLogRepo)
	cache := ship.NewCache(shipStateRepo, client, clock)
	planner := routing.NewPlanner(&storeMap{waypoints: waypointRepo, markets: marketRepo})
	ops := ship.NewOps(cache, client, planner, waypointRepo, marketRepo, ledgerRepo, clock)
	frm := appfleet.NewManager(controlRepo, cache)

	// Graceful shutdown: cancel the controllers, then bulk-release every
	// non-user ownership row below the reserved priority.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		fmt.Println("[INFO] Releasing ships & shutting down.")
		if err := frm.AdminClear(context.Background()); err != nil {
			fmt.Printf("[ERROR] Administrative clear failed: %v\n", err)
		}
	}()

	// Bootstrap: full fleet snapshot plus the waypoint map of every system a
	// controller works.
	n, err := cache.RefreshFleet(ctx)
	if err != nil {
		return fmt.Errorf("failed to bootstrap fleet: %w", err)
	}
	fmt.Printf("[INFO] Synced %d ships.\n", n)
	for _, system := range workedSystems(cfg) {
		count, err := ops.RefreshWaypoints(ctx, system)
		if err != nil {
			return fmt.Errorf("failed to bootstrap waypoints for %s: %w", system, err)
		}
		fmt.Printf("[INFO] Synced %d waypoints in %s.\n", count, system)
	}

	distance := waypointRepo.Distance

	// Compose the enabled controllers.
	var controllers []*tasks.Task

	if cfg.Controllers.MarketIntel.Enabled {
		intel, err := scouting.NewController(scouting.Config{
			System:      cfg.Controllers.MarketIntel.System,
			RefreshFreq: cfg.Controllers.MarketIntel.RefreshFreq,
			Mode:        cfg.Controllers.MarketIntel.Mode,
		}, frm, ops, marketRepo, distance, clock)
		if err != nil {
			return err
		}
		controllers = append(controllers, tasks.Spawn(ctx, intel.ID(), func(taskCtx context.Context) (bool, error) {
			return true, intel.Run(taskCtx)
		}))
	}

	if cfg.Controllers.Extraction.Enabled {
		sites := &siteStore{waypoints: waypointRepo, control: controlRepo}
		extractor := extraction.NewExtractorController(extraction.ExtractorConfig{
			System:       cfg.Controllers.Extraction.System,
			MaxMiners:    cfg.Controllers.Extraction.MaxMiners,
			MaxSiphoners: cfg.Controllers.Extraction.MaxSiphoners,
		}, frm, ops, sites, shipStateRepo, ledgerRepo, clock)
		hauler := extraction.NewHaulerController(extraction.HaulerConfig{
			System:     cfg.Controllers.Extraction.System,
			MaxHaulers: cfg.Controllers.Extraction.MaxHaulers,
		}, frm, ops, sites, shipStateRepo, ledgerRepo, distance, clock)
		controllers = append(controllers,
			tasks.Spawn(ctx, extractor.ID(), func(taskCtx context.Context) (bool, error) {
				return true, extractor.Run(taskCtx)
			}),
			tasks.Spawn(ctx, hauler.ID(), func(taskCtx context.Context) (bool, error) {
				return true, hauler.Run(taskCtx)
			}))
	}

	if cfg.Controllers.Trading.Enabled {
		trader := trading.NewController(trading.Config{
			System:        cfg.Controllers.Trading.System,
			MaxHaulers:    cfg.Controllers.Trading.MaxHaulers,
			RefreshPeriod: cfg.Controllers.Trading.RefreshPeriod,
		}, frm, ops, marketRepo, ledgerRepo, distance, clock)
		controllers = append(controllers, tasks.Spawn(ctx, trader.ID(), func(taskCtx context.Context) (bool, error) {
			return true, trader.Run(taskCtx)
		}))
	}

	if len(controllers) == 0 {
		return fmt.Errorf("no controllers enabled; nothing to do")
	}
	fmt.Printf("[INFO] Running %d controllers. Ctrl-C to stop.\n", len(controllers))

	// Controllers run until cancelled; the first fatal error tears everything
	// down, and a clean interrupt exits 0.
	pending := controllers
	for len(pending) > 0 {
		done, rest, err := tasks.AwaitAny(ctx, pending)
		if err != nil {
			break
		}
		for _, t := range done {
			if _, err := t.Result(); err != nil && ctx.Err() == nil {
				stop()
				return err
			}
		}
		pending = rest
	}
	if ctx.Err() != nil {
		fmt.Println("[INFO] Interrupt caught. Exiting gracefully.")
	}
	return nil
}

// workedSystems collects the distinct systems the enabled controllers target
func workedSystems(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(system string, enabled bool) {
		if enabled && system != "" && !seen[system] {
			seen[system] = true
			out = append(out, system)
		}
	}
	add(cfg.Controllers.MarketIntel.System, cfg.Controllers.MarketIntel.Enabled)
	add(cfg.Controllers.Extraction.System, cfg.Controllers.Extraction.Enabled)
	add(cfg.Controllers.Trading.System, cfg.Controllers.Trading.Enabled)
	return out
}

// storeMap adapts the repositories into the planner's map provider
type storeMap struct {
	waypoints *persistence.WaypointRepository
	markets   *persistence.MarketRepository
}

func (m *storeMap) Distance(ctx context.Context, src, dst string) (float64, error) {
	return m.waypoints.Distance(ctx, src, dst)
}

func (m *storeMap) FuelStops(ctx context.Context, system string) ([]string, error) {
	return m.markets.FuelStops(ctx, system)
}

// siteStore adapts the repositories into the extraction controllers' ports
type siteStore struct {
	waypoints *persistence.WaypointRepository
	control   *persistence.ControlRepository
}

func (s *siteStore) FindSiteByType(ctx context.Context, system, wpType string) (string, error) {
	wp, err := s.waypoints.FindByType(ctx, system, wpType)
	if err != nil {
		return "", err
	}
	if wp == nil {
		return "", nil
	}
	return wp.Symbol, nil
}

func (s *siteStore) ExcavatorGoods(ctx context.Context) ([]string, error) {
	return s.control.ExcavatorGoods(ctx)
}
