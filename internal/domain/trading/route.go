package trading

import (
	"math"

	"github.com/andrescamacho/fleetcore/internal/domain/market"
)

// TradeRoute is one candidate source→sink trade derived from current market
// snapshots.
type TradeRoute struct {
	Symbol        string
	Source        string
	Sink          string
	TradeVolume   int
	Distance      float64
	PurchasePrice int
	SellPrice     int
	NetProfit     int
	SrcSupply     string
	SinkSupply    string
}

// ROI is the sell/purchase price ratio for the route
func (t *TradeRoute) ROI() float64 {
	if t.PurchasePrice == 0 {
		return 0
	}
	return float64(t.SellPrice) / float64(t.PurchasePrice)
}

// MaxTraders derives how many traders may run the route concurrently. Deep
// source supply against thin sink supply earns one extra trader per ~49% of
// margin; moderate supply on either side per ~51%; anything else gets one.
func (t *TradeRoute) MaxTraders() int {
	roi := t.ROI()
	marginPct := (roi - 1) * 100
	switch {
	case (t.SrcSupply == market.SupplyAbundant || t.SrcSupply == market.SupplyHigh) &&
		(t.SinkSupply == market.SupplyLimited || t.SinkSupply == market.SupplyScarce):
		return int(math.Ceil(marginPct / 49))
	case t.SrcSupply == market.SupplyModerate || t.SinkSupply == market.SupplyModerate:
		return int(math.Ceil(marginPct / 51))
	default:
		return 1
	}
}

// ProfitOverDistance is the ranking key for the greedy strategy
func (t *TradeRoute) ProfitOverDistance() float64 {
	if t.Distance == 0 {
		return float64(t.NetProfit)
	}
	return float64(t.NetProfit) / t.Distance
}

// Repeats returns how many round-trips one ship with the given cargo capacity
// should bundle into a single order, given how many assignment slots remain.
func (t *TradeRoute) Repeats(cargoCapacity, remainingSlots int) int {
	if t.TradeVolume <= 0 {
		return 1
	}
	byCapacity := cargoCapacity / t.TradeVolume
	n := byCapacity
	if remainingSlots < n {
		n = remainingSlots
	}
	if n < 1 {
		n = 1
	}
	return n
}
