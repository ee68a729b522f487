package shared_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

func TestNewCargo_RejectsInvariantViolations(t *testing.T) {
	_, err := shared.NewCargo(10, 12, []shared.CargoItem{{Symbol: "IRON_ORE", Units: 12}})
	assert.Error(t, err)

	_, err = shared.NewCargo(10, 5, []shared.CargoItem{{Symbol: "IRON_ORE", Units: 3}})
	assert.Error(t, err)
}

func TestApplyDelta_KeepsUnitsConsistent(t *testing.T) {
	cargo, err := shared.NewCargo(10, 5, []shared.CargoItem{
		{Symbol: "IRON_ORE", Units: 3},
		{Symbol: "ICE_WATER", Units: 2},
	})
	require.NoError(t, err)

	next, err := cargo.ApplyDelta("IRON_ORE", 2)
	require.NoError(t, err)
	assert.Equal(t, 7, next.Units)
	assert.Equal(t, 5, next.ItemUnits("IRON_ORE"))

	sum := 0
	for _, item := range next.Inventory {
		sum += item.Units
	}
	assert.Equal(t, next.Units, sum)
}

func TestApplyDelta_DropsEmptiedGoods(t *testing.T) {
	cargo, err := shared.NewCargo(10, 5, []shared.CargoItem{
		{Symbol: "IRON_ORE", Units: 3},
		{Symbol: "ICE_WATER", Units: 2},
	})
	require.NoError(t, err)

	next, err := cargo.ApplyDelta("ICE_WATER", -2)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Units)
	assert.Len(t, next.Inventory, 1)
	assert.Equal(t, 0, next.ItemUnits("ICE_WATER"))

	_, err = cargo.ApplyDelta("ICE_WATER", -3)
	assert.Error(t, err)
}
