package navigation

import (
	"time"

	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// Nav statuses
const (
	NavStatusInOrbit   = "IN_ORBIT"
	NavStatusDocked    = "DOCKED"
	NavStatusInTransit = "IN_TRANSIT"
)

// ShipNav is the navigation component of a ship
type ShipNav struct {
	ShipSymbol     string
	SystemSymbol   string
	WaypointSymbol string
	Status         string
	FlightMode     string
	DepartureTime  time.Time
	Arrival        time.Time
	UpdatedAt      time.Time
}

// InTransit reports whether the ship is currently navigating
func (n *ShipNav) InTransit() bool {
	return n.Status == NavStatusInTransit
}

// Stale reports whether the cached record can no longer be trusted: a ship
// still showing IN_TRANSIT past its arrival time has been moved on the server
// without the cache hearing about it.
func (n *ShipNav) Stale(now time.Time) bool {
	return n.InTransit() && !n.Arrival.After(now)
}

// TransitRemaining returns the seconds left until arrival, zero when the ship
// is not in transit or arrived in the past.
func (n *ShipNav) TransitRemaining(now time.Time) time.Duration {
	if !n.InTransit() {
		return 0
	}
	remaining := n.Arrival.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ShipFuel is the fuel component of a ship
type ShipFuel struct {
	ShipSymbol string
	Current    int
	Capacity   int
}

// ShipCooldown is the reactor cooldown component of a ship
type ShipCooldown struct {
	ShipSymbol       string
	RemainingSeconds int
	Expiration       time.Time
}

// ShipMount is one installed mount on a ship
type ShipMount struct {
	ShipSymbol string
	Symbol     string
	Strength   int
}

// Mount symbol prefixes used to classify excavators
const (
	MountMiningLaserPrefix = "MOUNT_MINING_LASER"
	MountGasSiphonPrefix   = "MOUNT_GAS_SIPHON"
)

// Ship is the cached aggregate view of one ship
type Ship struct {
	Symbol   string
	Role     string
	Nav      ShipNav
	Fuel     ShipFuel
	Cargo    shared.Cargo
	Cooldown ShipCooldown
}
