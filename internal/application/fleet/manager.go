// Package fleet implements the fleet resource manager: priority-based ship
// ownership with preemption, an uninterruptible-span flag, and a TTL-bounded
// request queue, persisted in the state store.
package fleet

import (
	"context"
	"fmt"
	"sync"

	"github.com/andrescamacho/fleetcore/internal/domain/fleet"
	"github.com/andrescamacho/fleetcore/internal/domain/navigation"
)

// controlStore is the persistence surface for locks and requests
type controlStore interface {
	GetLock(ctx context.Context, ship string) (*fleet.ShipLock, error)
	SaveLock(ctx context.Context, lock *fleet.ShipLock) error
	SetBlocked(ctx context.Context, ship string, blocked bool) error
	FleetOf(ctx context.Context, controller string) ([]string, error)
	AvailableShips(ctx context.Context, systems []string, role string, priority int, controller string) ([]string, error)
	AdminClear(ctx context.Context) error
	EnqueueRequest(ctx context.Context, ship, controller string, priority int) error
	PopRequest(ctx context.Context, ship, controller string) error
	PeekRequest(ctx context.Context, ship string) (string, error)
}

// navProbe is the slice of the ship cache the manager needs for the
// orphaned-transit self-heal.
type navProbe interface {
	Nav(ctx context.Context, ship string) (*navigation.ShipNav, error)
	RefreshNav(ctx context.Context, ship string) error
}

// Manager is the production fleet resource manager. All mutations are
// serialized under one mutex so the request algorithm's read-decide-write
// spans never interleave.
type Manager struct {
	mu    sync.Mutex
	store controlStore
	nav   navProbe
}

// NewManager creates a fleet resource manager
func NewManager(store controlStore, nav navProbe) *Manager {
	return &Manager{store: store, nav: nav}
}

var _ fleet.Manager = (*Manager)(nil)

// Request signals that the controller wants control of the ship.
//
// A blocked ship queues the request. An unblocked ship is granted when the
// controller already owns it or outbids the current owner; a free ship is
// granted when the request queue's live head is empty or this controller.
// Otherwise the request is queued for a later try.
func (m *Manager) Request(ctx context.Context, ship, controller string, priority int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, err := m.store.GetLock(ctx, ship)
	if err != nil {
		return false, err
	}

	if lock.Blocked {
		if err := m.store.EnqueueRequest(ctx, ship, controller, priority); err != nil {
			return false, err
		}
		return false, nil
	}

	// A moving ship with no owner lost its controller without being released;
	// assume the previous owner crashed and self-heal the nav before claiming.
	if lock.IsFree() {
		nav, err := m.nav.Nav(ctx, ship)
		if err != nil {
			return false, err
		}
		if nav.InTransit() {
			fmt.Printf("[WARNING] Fleet resources detected a moving ship without controller: %s.\n", ship)
			if err := m.nav.RefreshNav(ctx, ship); err != nil {
				return false, err
			}
		}
	}

	if lock.Controller == controller {
		return true, nil
	}

	if !lock.IsFree() {
		// A strictly more urgent request is granted immediately by handover.
		// Equal priority never preempts; it waits in the queue instead.
		if lock.Priority < priority {
			if err := m.release(ctx, ship, false); err != nil {
				return false, err
			}
			if err := m.lock(ctx, ship, controller, priority); err != nil {
				return false, err
			}
			return true, nil
		}
		if err := m.store.EnqueueRequest(ctx, ship, controller, priority); err != nil {
			return false, err
		}
		return false, nil
	}

	// The ship is free; the queue decides who goes first.
	head, err := m.store.PeekRequest(ctx, ship)
	if err != nil {
		return false, err
	}
	if head == "" || head == controller {
		if err := m.lock(ctx, ship, controller, priority); err != nil {
			return false, err
		}
		if err := m.store.PopRequest(ctx, ship, controller); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := m.store.EnqueueRequest(ctx, ship, controller, priority); err != nil {
		return false, err
	}
	return false, nil
}

// Release frees the ship. A blocked ship is only released when force is set.
func (m *Manager) Release(ctx context.Context, ship string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.release(ctx, ship, force)
}

func (m *Manager) release(ctx context.Context, ship string, force bool) error {
	if !force {
		lock, err := m.store.GetLock(ctx, ship)
		if err != nil {
			return err
		}
		if lock.Blocked {
			return fmt.Errorf("can't release %s: currently blocked", ship)
		}
	}
	return m.store.SaveLock(ctx, fleet.FreeLock(ship))
}

// Lock sets the ownership row directly; refuses when the ship is blocked.
func (m *Manager) Lock(ctx context.Context, ship, controller string, priority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lock(ctx, ship, controller, priority)
}

func (m *Manager) lock(ctx context.Context, ship, controller string, priority int) error {
	lock, err := m.store.GetLock(ctx, ship)
	if err != nil {
		return err
	}
	if lock.Blocked {
		return fmt.Errorf("can't lock %s: currently blocked", ship)
	}
	return m.store.SaveLock(ctx, &fleet.ShipLock{
		ShipSymbol: ship,
		Controller: controller,
		Priority:   priority,
		Blocked:    false,
	})
}

// SetBlocked toggles the uninterruptible flag without changing ownership
func (m *Manager) SetBlocked(ctx context.Context, ship string, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.SetBlocked(ctx, ship, blocked)
}

// ReleaseFleet releases every ship currently owned by the controller
func (m *Manager) ReleaseFleet(ctx context.Context, controller string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ships, err := m.store.FleetOf(ctx, controller)
	if err != nil {
		return err
	}
	var firstErr error
	for _, s := range ships {
		if err := m.release(ctx, s, force); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AvailableShips returns ships in the listed systems whose owner is empty,
// equal to controller, or lower-priority than priority, and not blocked.
func (m *Manager) AvailableShips(ctx context.Context, systems []string, role string, priority int, controller string) ([]string, error) {
	return m.store.AvailableShips(ctx, systems, role, priority, controller)
}

// FleetOf returns the ships currently owned by the controller
func (m *Manager) FleetOf(ctx context.Context, controller string) ([]string, error) {
	return m.store.FleetOf(ctx, controller)
}

// AdminClear bulk-releases all non-user ownership below the reserved
// priority. Called by graceful shutdown.
func (m *Manager) AdminClear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.AdminClear(ctx)
}
