package fleet_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetcore/internal/domain/fleet"
)

func tableDistance(dists map[string]float64) fleet.DistanceFunc {
	return func(src, dst string) (float64, error) {
		d, ok := dists[src]
		if !ok {
			return 0, fmt.Errorf("no distance for %s", src)
		}
		return d, nil
	}
}

func TestSortByDistance_OrdersClosestFirst(t *testing.T) {
	selector := fleet.NewSelector(tableDistance(map[string]float64{
		"X1-TS5-A1": 50,
		"X1-TS5-B2": 10,
		"X1-TS5-C3": 30,
	}))
	candidates := []fleet.Candidate{
		{ShipSymbol: "S1", Waypoint: "X1-TS5-A1"},
		{ShipSymbol: "S2", Waypoint: "X1-TS5-B2"},
		{ShipSymbol: "S3", Waypoint: "X1-TS5-C3"},
	}

	ordered := selector.SortByDistance(candidates, "X1-TS5-T0")

	assert.Equal(t, "S2", ordered[0].ShipSymbol)
	assert.Equal(t, "S3", ordered[1].ShipSymbol)
	assert.Equal(t, "S1", ordered[2].ShipSymbol)
}

func TestSortByDistance_UnresolvableDistancesSortLast(t *testing.T) {
	selector := fleet.NewSelector(tableDistance(map[string]float64{
		"X1-TS5-A1": 50,
	}))
	candidates := []fleet.Candidate{
		{ShipSymbol: "S1", Waypoint: "X1-TS5-UNKNOWN"},
		{ShipSymbol: "S2", Waypoint: "X1-TS5-A1"},
	}

	ordered := selector.SortByDistance(candidates, "X1-TS5-T0")

	assert.Equal(t, "S2", ordered[0].ShipSymbol)
	assert.Equal(t, "S1", ordered[1].ShipSymbol)
}

func TestClosest(t *testing.T) {
	selector := fleet.NewSelector(tableDistance(map[string]float64{
		"X1-TS5-A1": 50,
		"X1-TS5-B2": 10,
	}))

	best, err := selector.Closest([]fleet.Candidate{
		{ShipSymbol: "S1", Waypoint: "X1-TS5-A1"},
		{ShipSymbol: "S2", Waypoint: "X1-TS5-B2"},
	}, "X1-TS5-T0")
	require.NoError(t, err)
	assert.Equal(t, "S2", best.ShipSymbol)

	_, err = selector.Closest(nil, "X1-TS5-T0")
	assert.Error(t, err)
}
