package opt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// crossedInstance has two full routes whose customers are paired badly;
// capacity and fleet leave swapping as the only improving move.
func crossedInstance() *Instance {
	return NewEuclidean("crossed", 2, 20, []Site{
		{X: 0, Y: 0},
		{X: 10, Y: 0, Demand: 10},
		{X: 0, Y: 10, Demand: 10},
		{X: 10, Y: 1, Demand: 10},
		{X: 0, Y: 11, Demand: 10},
	})
}

func TestImproveAppliesSingleSwap(t *testing.T) {
	inst := crossedInstance()
	sol := FromSequences(inst, [][]int{{1, 2}, {3, 4}})
	require.Equal(t, 69, sol.Cost())

	out, met := Improve(sol, farFuture, Options{})
	assert.Equal(t, 43, out.Cost())
	assert.Equal(t, [][]int{{4, 2}, {3, 1}}, out.Sequences())
	assert.Equal(t, 1, met.Swaps)
	assert.Zero(t, met.Relocates)
	assert.Equal(t, 2, met.Iterations)
	assert.Equal(t, StopLocalOptimum, met.StoppedBy)
	assert.Equal(t, 69, met.InitialCost)
	assert.Equal(t, 43, met.FinalCost)
	requireComplete(t, out)
}

func TestImproveRelocateEmptiesRoute(t *testing.T) {
	inst := NewEuclidean("merge", 2, 10, []Site{
		{X: 0, Y: 0},
		{X: 10, Y: 0, Demand: 1},
		{X: 11, Y: 0, Demand: 1},
	})
	sol := FromSequences(inst, [][]int{{1}, {2}})
	require.Equal(t, 42, sol.Cost())

	out, met := Improve(sol, farFuture, Options{})
	assert.Equal(t, [][]int{{1, 2}}, out.Sequences())
	assert.Equal(t, 22, out.Cost())
	assert.Equal(t, 1, out.RoutesUsed())
	assert.Equal(t, 1, met.Relocates)
	requireComplete(t, out)
}

func TestImproveOpensRouteWhenSlotFree(t *testing.T) {
	// Going between 1 and 2 directly costs more than two round trips.
	inst := &Instance{
		Name:     "detour",
		Vehicles: 2,
		Capacity: 10,
		Travel: [][]int{
			{0, 1, 1},
			{1, 0, 10},
			{1, 10, 0},
		},
		Demand:  []int{0, 1, 1},
		Ready:   []int{0, 0, 0},
		Due:     []int{DefaultDue, DefaultDue, DefaultDue},
		Service: []int{0, 0, 0},
	}
	require.NoError(t, inst.Validate())
	sol := FromSequences(inst, [][]int{{1, 2}})
	require.Equal(t, 12, sol.Cost())

	out, met := Improve(sol, farFuture, Options{})
	assert.Equal(t, [][]int{{2}, {1}}, out.Sequences())
	assert.Equal(t, 4, out.Cost())
	assert.Equal(t, 1, met.Relocates)
	assert.Equal(t, StopLocalOptimum, met.StoppedBy)
	requireComplete(t, out)

	inst.Vehicles = 1
	sol = FromSequences(inst, [][]int{{1, 2}})
	out, met = Improve(sol, farFuture, Options{})
	assert.Equal(t, 12, out.Cost())
	assert.Zero(t, met.Relocates+met.Swaps)
}

func TestImproveStopsAtDeadline(t *testing.T) {
	inst := crossedInstance()
	sol := FromSequences(inst, [][]int{{1, 2}, {3, 4}})
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	out, met := Improve(sol, now, Options{Now: clock})
	assert.Equal(t, StopDeadline, met.StoppedBy)
	assert.Zero(t, met.Iterations)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}}, out.Sequences())
}

func TestImproveDeadlineMidScan(t *testing.T) {
	inst := randomInstance(5, 60, 60, 40)
	sol, err := Construct(inst, Options{})
	require.NoError(t, err)
	initial := sol.Cost()

	// The clock jumps past the deadline on its second reading, which is the
	// first poll inside the scan.
	base := time.Unix(0, 0)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(time.Hour)
	}
	out, met := Improve(sol, base.Add(time.Minute), Options{Now: clock})
	assert.Equal(t, StopDeadline, met.StoppedBy)
	assert.Equal(t, 1, met.Iterations)
	assert.Zero(t, met.Relocates+met.Swaps)
	assert.Equal(t, initial, out.Cost())
	assert.GreaterOrEqual(t, met.Evaluations, evalCheckMask+1)
	requireComplete(t, out)
}

func TestImproveMaxIterations(t *testing.T) {
	inst := randomInstance(9, 30, 30, 40)
	sol, err := Construct(inst, Options{})
	require.NoError(t, err)
	_, met := Improve(sol, farFuture, Options{MaxIterations: 1})
	assert.LessOrEqual(t, met.Relocates+met.Swaps, 1)
	if met.Relocates+met.Swaps == 1 {
		assert.Equal(t, StopMaxIterations, met.StoppedBy)
	}
}

func TestImproveProperties(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		inst := randomInstance(seed, 30, 10, 60)
		sol, err := Construct(inst, Options{})
		if err != nil {
			require.ErrorIs(t, err, ErrInfeasibleInstance)
			continue
		}
		initial := sol.Cost()
		first, met := Improve(sol.Clone(), farFuture, Options{})
		assert.LessOrEqual(t, first.Cost(), initial, "seed %d", seed)
		assert.Equal(t, initial, met.InitialCost)
		assert.Equal(t, StopLocalOptimum, met.StoppedBy)
		requireComplete(t, first)

		second, _ := Improve(sol.Clone(), farFuture, Options{})
		assert.Equal(t, first.Sequences(), second.Sequences(), "seed %d not deterministic", seed)

		// A local optimum admits no further improving move.
		again, met := Improve(first, farFuture, Options{})
		assert.Equal(t, 1, met.Iterations)
		assert.Equal(t, first.Cost(), again.Cost())
	}
}

func TestImproveProgressCallback(t *testing.T) {
	inst := crossedInstance()
	sol := FromSequences(inst, [][]int{{1, 2}, {3, 4}})
	var got []Progress
	Improve(sol, farFuture, Options{Progress: func(p Progress) { got = append(got, p) }})
	require.Len(t, got, 1)
	assert.Equal(t, Progress{Phase: PhaseImprove, Iteration: 1, Cost: 43, Routes: 2}, got[0])
}
