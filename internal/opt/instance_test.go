package opt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEuclideanMatrixRounds(t *testing.T) {
	m := EuclideanMatrix([]float64{0, 3, 1}, []float64{0, 4, 1})
	assert.Equal(t, [][]int{
		{0, 5, 1},
		{5, 0, 4},
		{1, 4, 0},
	}, m)
}

func TestNewEuclideanDefaults(t *testing.T) {
	inst := lineInstance()
	require.NoError(t, inst.Validate())
	assert.Equal(t, 4, inst.Nodes())
	assert.Equal(t, []int{1, 2, 3}, inst.Customers())
	assert.Equal(t, DefaultDue, inst.Due[0])
	assert.Equal(t, 2, inst.Due[2])
	assert.True(t, inst.IsCustomer(3))
	assert.False(t, inst.IsCustomer(0))
	assert.False(t, inst.IsCustomer(4))
}

func TestInstanceValidate(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Instance)
		field string
	}{
		{"negative vehicles", func(i *Instance) { i.Vehicles = -1 }, "vehicles"},
		{"negative capacity", func(i *Instance) { i.Capacity = -5 }, "capacity"},
		{"depot out of range", func(i *Instance) { i.Depot = 9 }, "depot"},
		{"short due", func(i *Instance) { i.Due = i.Due[:2] }, "due"},
		{"ragged travel", func(i *Instance) { i.Travel[1] = i.Travel[1][:2] }, "travel"},
		{"diagonal", func(i *Instance) { i.Travel[2][2] = 1 }, "travel"},
		{"negative travel", func(i *Instance) { i.Travel[0][3] = -1 }, "travel"},
		{"negative demand", func(i *Instance) { i.Demand[1] = -1 }, "demand"},
		{"inverted window", func(i *Instance) { i.Ready[3] = 200 }, "window"},
		{"depot demand", func(i *Instance) { i.Demand[0] = 1 }, "demand"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inst := lineInstance()
			tc.edit(inst)
			err := inst.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedInstance))
			var me *MalformedInstanceError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tc.field, me.Field)
		})
	}
}

func TestConstructRejectsMalformed(t *testing.T) {
	inst := lineInstance()
	inst.Service = nil
	_, err := Construct(inst, Options{})
	assert.ErrorIs(t, err, ErrMalformedInstance)
}
