package fleet

import "context"

// Manager is the capability surface controllers use to claim and release
// ships. The production implementation persists ownership in the state store;
// tests inject fakes with deterministic behavior.
type Manager interface {
	// Request signals that the controller wants control of the ship. Returns
	// true when the ship is granted (possibly by preempting a lower-priority
	// owner), false when the request was queued or refused.
	Request(ctx context.Context, ship, controller string, priority int) (bool, error)

	// Release frees the ship. A blocked ship is only released when force is set.
	Release(ctx context.Context, ship string, force bool) error

	// Lock sets the ownership row directly; refuses when the ship is blocked.
	Lock(ctx context.Context, ship, controller string, priority int) error

	// SetBlocked toggles the uninterruptible flag without changing ownership.
	SetBlocked(ctx context.Context, ship string, blocked bool) error

	// ReleaseFleet releases every ship currently owned by the controller.
	ReleaseFleet(ctx context.Context, controller string, force bool) error

	// AvailableShips returns ships in the listed systems whose owner is empty,
	// equal to controller, or lower-priority than priority, and not blocked.
	// role filters by ship role when non-empty.
	AvailableShips(ctx context.Context, systems []string, role string, priority int, controller string) ([]string, error)

	// FleetOf returns the ships currently owned by the controller.
	FleetOf(ctx context.Context, controller string) ([]string, error)
}
