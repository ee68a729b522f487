package routing

import (
	"context"
	"fmt"
	"math"

	"github.com/andrescamacho/fleetcore/internal/domain/fleet"
)

// Flight modes
const (
	ModeCruise  = "CRUISE"
	ModeBurn    = "BURN"
	ModeDrift   = "DRIFT"
	ModeStealth = "STEALTH"
)

// Hop is one leg of a planned route
type Hop struct {
	Waypoint   string
	FlightMode string
	Distance   float64
}

// MapProvider resolves distances and refuel stops from the state store
type MapProvider interface {
	// Distance returns the Euclidean distance between two same-system waypoints.
	Distance(ctx context.Context, src, dst string) (float64, error)
	// FuelStops returns the waypoints known to sell fuel in the system.
	FuelStops(ctx context.Context, system string) ([]string, error)
}

// PlanShip carries the ship attributes the planner needs
type PlanShip struct {
	Symbol       string
	Role         string
	SystemSymbol string
	FuelCapacity int
}

// Planner produces greedy, fuel-bounded multi-hop routes between waypoints.
// Pathing happens greedily since ships travel in open space: the shortest
// path is a straight line or something approaching it via refuel stops.
type Planner struct {
	provider MapProvider
}

// NewPlanner creates a planner over the given map provider
func NewPlanner(provider MapProvider) *Planner {
	return &Planner{provider: provider}
}

// FuelCost returns the units of fuel needed to travel a distance in the given
// flight mode.
func FuelCost(distance float64, flightMode string) int {
	switch flightMode {
	case ModeDrift:
		return 1
	case ModeBurn:
		return 2 * int(math.Round(distance))
	default: // CRUISE and STEALTH
		return int(math.Round(distance))
	}
}

// Plan returns hops that take the ship from src to dst without drifting, or an
// empty plan when no route exists. Burns are only planned toward refuel stops,
// and only when the hop leaves margin to refuel again.
func (p *Planner) Plan(ctx context.Context, ship PlanShip, src, dst string) ([]Hop, error) {
	fuelCap := float64(ship.FuelCapacity) - 1.0
	burnCap := math.Floor(fuelCap/2.0) - 1.0

	if fuelCap < 1 {
		// Probes have no tank and burn everywhere in a single hop; anything
		// else without fuel capacity cannot path at all.
		if ship.Role == fleet.RoleSatellite {
			d, err := p.provider.Distance(ctx, src, dst)
			if err != nil {
				return nil, err
			}
			return []Hop{{Waypoint: dst, FlightMode: ModeBurn, Distance: d}}, nil
		}
		return nil, fmt.Errorf("%s cannot path to %s: fuel capacity too low (%d)", ship.Symbol, dst, ship.FuelCapacity)
	}

	fuelStops, err := p.provider.FuelStops(ctx, ship.SystemSymbol)
	if err != nil {
		return nil, err
	}
	isFuelStop := make(map[string]bool, len(fuelStops))
	for _, s := range fuelStops {
		isFuelStop[s] = true
	}

	nodes := map[string]bool{src: true, dst: true}
	for _, s := range fuelStops {
		nodes[s] = true
	}

	var path []Hop
	cur := src
	for {
		dstDist, err := p.provider.Distance(ctx, cur, dst)
		if err != nil {
			return nil, err
		}
		// Direct hop when fuel allows. Separate case because co-located
		// waypoints (a planet and its moons) can confuse the ordering below.
		if dstDist <= fuelCap {
			mode := ModeCruise
			if dstDist <= burnCap && isFuelStop[dst] {
				mode = ModeBurn
			}
			path = append(path, Hop{Waypoint: dst, FlightMode: mode, Distance: dstDist})
			return path, nil
		}

		// Otherwise go as far as the tank allows toward the destination.
		next := ""
		nextToDst := math.MaxFloat64
		var nextHopDist float64
		for n := range nodes {
			if n == cur {
				continue
			}
			hopDist, err := p.provider.Distance(ctx, cur, n)
			if err != nil {
				return nil, err
			}
			if float64(FuelCost(hopDist, ModeCruise)) >= fuelCap {
				continue
			}
			toDst, err := p.provider.Distance(ctx, n, dst)
			if err != nil {
				return nil, err
			}
			if toDst < nextToDst {
				next = n
				nextToDst = toDst
				nextHopDist = hopDist
			}
		}
		if next == "" {
			// Dead end: nothing reachable on a full tank.
			return nil, nil
		}
		if nextToDst >= dstDist {
			// The best reachable node is no improvement, so the greedy
			// approach has failed.
			return nil, nil
		}

		mode := ModeCruise
		if nextHopDist <= burnCap {
			mode = ModeBurn
		}
		path = append(path, Hop{Waypoint: next, FlightMode: mode, Distance: nextHopDist})

		// Never revisit a node.
		delete(nodes, cur)
		cur = next
	}
}
