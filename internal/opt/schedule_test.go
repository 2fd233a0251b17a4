package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateWaitsForWindow(t *testing.T) {
	inst := NewEuclidean("wait", 1, 10, []Site{
		{X: 0, Y: 0},
		{X: 2, Y: 0, Demand: 1, Ready: 10, Due: 20, Service: 3},
		{X: 4, Y: 0, Demand: 1, Ready: 0, Due: 30, Service: 1},
	})
	s := inst.Evaluate([]int{1, 2})
	assert.Equal(t, []int{2, 15}, s.Arrivals)
	assert.Equal(t, []int{10, 15}, s.Starts)
	assert.Equal(t, 20, s.Return)
	assert.Equal(t, 8, s.Cost)
	assert.Equal(t, 2, s.Load)
	assert.True(t, s.Feasible())
	assert.Empty(t, s.LateAt)
}

func TestEvaluateReportsLateVisitsWithoutClamping(t *testing.T) {
	inst := lineInstance()
	s := inst.Evaluate([]int{3, 2, 1})
	assert.False(t, s.TimeOK)
	assert.Equal(t, []int{1}, s.LateAt)
	assert.Equal(t, 4, s.Arrivals[1])
	assert.Equal(t, 4, s.Starts[1])
}

func TestEvaluateLateDepotReturn(t *testing.T) {
	inst := NewEuclidean("depot", 1, 10, []Site{
		{X: 0, Y: 0, Due: 15},
		{X: 5, Y: 0, Demand: 1, Due: 100, Service: 6},
	})
	s := inst.Evaluate([]int{1})
	assert.Equal(t, 16, s.Return)
	assert.Equal(t, []int{1}, s.LateAt)
	assert.False(t, inst.SequenceFeasible([]int{1}))
}

func TestEvaluateCapacity(t *testing.T) {
	inst := lineInstance()
	inst.Capacity = 9
	s := inst.Evaluate([]int{1, 3})
	assert.False(t, s.CapacityOK)
	assert.True(t, s.TimeOK)
	assert.False(t, inst.SequenceFeasible([]int{1, 3}))
}

func TestEmptySequence(t *testing.T) {
	inst := lineInstance()
	s := inst.Evaluate(nil)
	assert.True(t, s.Feasible())
	assert.Zero(t, s.Cost)
	assert.True(t, inst.SequenceFeasible(nil))
	assert.Zero(t, inst.SequenceCost(nil))
}

func TestSequenceHelpersAgreeWithEvaluate(t *testing.T) {
	inst := randomInstance(7, 12, 12, 30)
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		seq := rng.Perm(12)[:1+rng.Intn(12)]
		for i := range seq {
			seq[i]++
		}
		s := inst.Evaluate(seq)
		require.Equal(t, s.Feasible(), inst.SequenceFeasible(seq), "seq %v", seq)
		require.Equal(t, s.Cost, inst.SequenceCost(seq), "seq %v", seq)
	}
}
