package fleet

import "time"

// Ship roles recognised by the dispatchers
const (
	RoleSatellite = "SATELLITE"
	RoleExcavator = "EXCAVATOR"
	RoleHauler    = "HAULER"
	RoleCommand   = "COMMAND"
)

// Controller base priorities. Haulers outrank extractors so that pickups are
// never starved by the extraction fleet; traders sit between the two.
const (
	PriorityProbes     = 100
	PriorityExtractors = 100
	PriorityTraders    = 300
	PriorityHaulers    = 350

	// Locks at or above PriorityReserved survive the administrative clear on
	// shutdown (user-held ships and manual interventions).
	PriorityReserved = 10000
)

// UserController marks manual ownership; it is never bulk-released.
const UserController = "USER"

// ShipLock is the authoritative ownership row for one ship.
// Controller == "" with Priority == -1 means the ship is free.
// Blocked marks an uninterruptible span during which the lock can neither be
// taken over nor released without force.
type ShipLock struct {
	ShipSymbol string
	Controller string
	Priority   int
	Blocked    bool
}

// IsFree reports whether no controller owns the ship
func (l *ShipLock) IsFree() bool {
	return l.Controller == ""
}

// FreeLock returns the released state for a ship
func FreeLock(shipSymbol string) *ShipLock {
	return &ShipLock{ShipSymbol: shipSymbol, Controller: "", Priority: -1, Blocked: false}
}

// ShipRequest is one controller's queued claim on a ship. Requests expire
// RequestTTL after creation and are ignored afterwards.
type ShipRequest struct {
	ShipSymbol string
	Controller string
	Priority   int
	CreatedAt  time.Time
}

// RequestTTL is how long a queued ship request remains valid.
const RequestTTL = 40 * time.Second

// Expired reports whether the request is past its TTL at the given time
func (r *ShipRequest) Expired(now time.Time) bool {
	return now.Sub(r.CreatedAt) > RequestTTL
}
