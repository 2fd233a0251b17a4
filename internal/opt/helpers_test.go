package opt

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// farFuture is a deadline no test reaches.
var farFuture = time.Now().Add(time.Hour)

// randomInstance builds n customers on a 100x100 grid. Every customer is
// reachable alone from the depot, so with vehicles >= n construction succeeds.
func randomInstance(seed int64, n, vehicles, capacity int) *Instance {
	rng := rand.New(rand.NewSource(seed))
	sites := []Site{{X: 50, Y: 50, Due: 2000}}
	for i := 0; i < n; i++ {
		x, y := float64(rng.Intn(101)), float64(rng.Intn(101))
		ready := rng.Intn(300)
		sites = append(sites, Site{
			X: x, Y: y,
			Demand:  1 + rng.Intn(10),
			Ready:   ready,
			Due:     ready + 100 + rng.Intn(150),
			Service: 5,
		})
	}
	return NewEuclidean("random", vehicles, capacity, sites)
}

// lineInstance is the three-customer scenario with one tight window.
func lineInstance() *Instance {
	return NewEuclidean("line", 1, 100, []Site{
		{X: 0, Y: 0},
		{X: 1, Y: 0, Demand: 5, Due: 100},
		{X: 2, Y: 0, Demand: 5, Due: 2},
		{X: 3, Y: 0, Demand: 5, Due: 100},
	})
}

// requireComplete asserts coverage, capacity, windows, fleet and cache
// coherence of a finished solution.
func requireComplete(t *testing.T, sol *Solution) {
	t.Helper()
	inst := sol.Instance()
	seen := map[int]int{}
	for _, r := range sol.Routes {
		require.NotEmpty(t, r.Customers, "empty route kept")
		require.LessOrEqual(t, r.Load, inst.Capacity)
		for i, c := range r.Customers {
			seen[c]++
			require.LessOrEqual(t, r.Arrivals[i], inst.Due[c], "customer %d late", c)
		}
		require.LessOrEqual(t, r.Return, inst.Due[inst.Depot])
		require.True(t, r.Feasible)
	}
	require.Len(t, seen, len(inst.Customers()))
	for c, n := range seen {
		require.Equal(t, 1, n, "customer %d visited %d times", c, n)
	}
	require.LessOrEqual(t, sol.RoutesUsed(), inst.Vehicles)
	require.NoError(t, sol.CheckCoherence())
	require.True(t, sol.Validate().Valid)
}
