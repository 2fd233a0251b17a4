package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()
	families, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
	assert.True(t, names["solve_runs_in_flight"])
}

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(SolveRuns.WithLabelValues("failed"))
	ObserveRun("failed", 1.5, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(SolveRuns.WithLabelValues("failed")))

	done := testutil.ToFloat64(SolveRuns.WithLabelValues("done"))
	ObserveRun("done", 2, 12.5)
	assert.Equal(t, done+1, testutil.ToFloat64(SolveRuns.WithLabelValues("done")))
	assert.Equal(t, 1, testutil.CollectAndCount(SolveImprovement))
}
