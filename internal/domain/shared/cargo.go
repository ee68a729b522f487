package shared

import "fmt"

// CargoItem represents an individual cargo item in a ship's hold
type CargoItem struct {
	Symbol string
	Units  int
}

// Cargo represents a ship's cargo manifest.
// Invariant: Units equals the sum of inventory units and never exceeds Capacity.
type Cargo struct {
	Capacity  int
	Units     int
	Inventory []CargoItem
}

// NewCargo creates a cargo manifest with validation
func NewCargo(capacity, units int, inventory []CargoItem) (*Cargo, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("cargo capacity cannot be negative")
	}
	if units < 0 {
		return nil, fmt.Errorf("cargo units cannot be negative")
	}
	if units > capacity {
		return nil, fmt.Errorf("cargo units %d exceed capacity %d", units, capacity)
	}
	sum := 0
	for _, item := range inventory {
		sum += item.Units
	}
	if sum != units {
		return nil, fmt.Errorf("inventory sum %d != total units %d", sum, units)
	}
	return &Cargo{Capacity: capacity, Units: units, Inventory: inventory}, nil
}

// ItemUnits gets units of a specific trade good in cargo (0 if not present)
func (c *Cargo) ItemUnits(symbol string) int {
	for _, item := range c.Inventory {
		if item.Symbol == symbol {
			return item.Units
		}
	}
	return 0
}

// AvailableCapacity calculates free cargo space
func (c *Cargo) AvailableCapacity() int {
	return c.Capacity - c.Units
}

// IsEmpty checks if the hold is empty
func (c *Cargo) IsEmpty() bool {
	return c.Units == 0
}

// IsFull checks if the hold is full
func (c *Cargo) IsFull() bool {
	return c.Units >= c.Capacity
}

// ApplyDelta returns a copy of the cargo with the given good adjusted by delta
// units. Goods that drop to zero units are removed from the inventory.
func (c *Cargo) ApplyDelta(symbol string, delta int) (*Cargo, error) {
	cur := c.ItemUnits(symbol)
	next := cur + delta
	if next < 0 {
		return nil, fmt.Errorf("cargo delta drops %s below zero (%d%+d)", symbol, cur, delta)
	}
	inventory := make([]CargoItem, 0, len(c.Inventory)+1)
	placed := false
	for _, item := range c.Inventory {
		if item.Symbol == symbol {
			placed = true
			if next > 0 {
				inventory = append(inventory, CargoItem{Symbol: symbol, Units: next})
			}
			continue
		}
		inventory = append(inventory, item)
	}
	if !placed && next > 0 {
		inventory = append(inventory, CargoItem{Symbol: symbol, Units: next})
	}
	return NewCargo(c.Capacity, c.Units+delta, inventory)
}

func (c *Cargo) String() string {
	return fmt.Sprintf("Cargo(%d/%d)", c.Units, c.Capacity)
}
