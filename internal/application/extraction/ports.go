// Package extraction runs the extract+haul loop: excavators permanently
// working the system's fixed extraction sites, and haulers dispatched to
// collect and sell their yields once holds fill up.
package extraction

import (
	"context"
	"time"

	"github.com/andrescamacho/fleetcore/internal/application/ship"
	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// excavatorOps is the slice of ship operations the extraction tasks run
type excavatorOps interface {
	Navigate(ctx context.Context, shipSymbol, destination string) error
	Orbit(ctx context.Context, shipSymbol string) error
	AwaitNavigation(ctx context.Context, shipSymbol string) error
	Extract(ctx context.Context, shipSymbol string, whitelist []string) (*ship.ExtractionOutcome, error)
	Siphon(ctx context.Context, shipSymbol string, whitelist []string) (*ship.ExtractionOutcome, error)
	Cargo(ctx context.Context, shipSymbol string) (*shared.Cargo, error)
	TransferAll(ctx context.Context, sinkShip, sourceShip string) error
	ClearCargo(ctx context.Context, shipSymbol string) error
	ShipWaypoint(ctx context.Context, shipSymbol string) (string, error)
}

// siteStore resolves the fixed extraction sites and the goods whitelist
type siteStore interface {
	FindSiteByType(ctx context.Context, system, wpType string) (string, error)
	ExcavatorGoods(ctx context.Context) ([]string, error)
}

// fleetQueries answers the dispatcher's questions about the cached fleet
type fleetQueries interface {
	ShipsWithMountPrefix(ctx context.Context, ships []string, prefix string) ([]string, error)
	FullShipsAt(ctx context.Context, waypoint, role string, ratio float64) ([]string, error)
	ShipsByRoleInSystems(ctx context.Context, systems []string, role string) (map[string]string, error)
}

// yieldLedger backs the status reports and haul bookkeeping
type yieldLedger interface {
	YieldSince(ctx context.Context, ships []string, since time.Time) (int, error)
	WhitelistedSales(ctx context.Context, ship string, since time.Time) (units, revenue int, err error)
	AppendYieldSale(ctx context.Context, ship, controller string, units, profit int, startedAt, endedAt time.Time) error
}

// distanceFunc resolves same-system waypoint distances
type distanceFunc func(ctx context.Context, a, b string) (float64, error)
