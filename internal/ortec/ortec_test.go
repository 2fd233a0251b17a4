package ortec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrptw/internal/opt"
)

const coordInstance = `# small Solomon-like instance
NAME : tiny
VEHICLES : 2
CAPACITY : 50
NODE_COORD_SECTION
1 0 0
2 3 4
3 6 8
DEMAND_SECTION
1 0
2 10
3 20
SERVICE_TIME_SECTION
2 5
3 5
TIME_WINDOW_SECTION
1 0 1000
2 0 50
EOF
`

func TestParseCoordinates(t *testing.T) {
	inst, err := Parse(strings.NewReader(coordInstance), "fallback")
	require.NoError(t, err)
	assert.Equal(t, "tiny", inst.Name)
	assert.Equal(t, 2, inst.Vehicles)
	assert.Equal(t, 50, inst.Capacity)
	assert.Equal(t, 0, inst.Depot)
	assert.Equal(t, []int{0, 10, 20}, inst.Demand)
	assert.Equal(t, []int{0, 5, 5}, inst.Service)
	assert.Equal(t, []int{0, 0, 0}, inst.Ready)
	assert.Equal(t, []int{1000, 50, opt.DefaultDue}, inst.Due)
	assert.Equal(t, [][]int{
		{0, 5, 10},
		{5, 0, 5},
		{10, 5, 0},
	}, inst.Travel)
}

const matrixInstance = `NAME: asym
EDGE_WEIGHT_TYPE: EXPLICIT
VEHICLES: 1
CAPACITY: 10
DIMENSION: 3
EDGE_WEIGHT_SECTION
0 4 7
5 0 2
8 3 0
DEMAND_SECTION
1 0
2 1
3 1
DEPOT_SECTION
1
-1
EOF
trailing junk is never read
`

func TestParseExplicitMatrix(t *testing.T) {
	inst, err := Parse(strings.NewReader(matrixInstance), "")
	require.NoError(t, err)
	assert.Equal(t, "asym", inst.Name)
	assert.Equal(t, [][]int{{0, 4, 7}, {5, 0, 2}, {8, 3, 0}}, inst.Travel)
	assert.Equal(t, []int{opt.DefaultDue, opt.DefaultDue, opt.DefaultDue}, inst.Due)

	res, err := opt.Solve(inst, 0, opt.Options{})
	require.NoError(t, err)
	assert.True(t, res.Report.Valid)
}

func TestParseDepotFallsBackToLowestID(t *testing.T) {
	src := "VEHICLES : 1\nCAPACITY : 5\nDEMAND_SECTION\n3 1\n0 0\n7 2\n"
	inst, err := Parse(strings.NewReader(src), "x")
	require.NoError(t, err)
	assert.Equal(t, 0, inst.Depot)
	assert.Equal(t, []int{0, 1, 2}, inst.Demand)
	assert.Equal(t, "x", inst.Name)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"missing vehicles": "CAPACITY : 5\nDEMAND_SECTION\n1 0\n",
		"no nodes":         "VEHICLES : 1\nCAPACITY : 5\n",
		"bad demand":       "VEHICLES : 1\nCAPACITY : 5\nDEMAND_SECTION\n1 zero\n",
		"short window":     "VEHICLES : 1\nCAPACITY : 5\nTIME_WINDOW_SECTION\n1 0\n",
		"inverted window":  "VEHICLES : 1\nCAPACITY : 5\nTIME_WINDOW_SECTION\n1 0 10\n2 9 3\n",
		"depot demand":     "VEHICLES : 1\nCAPACITY : 5\nDEMAND_SECTION\n1 4\n2 1\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(src), name)
			require.Error(t, err)
			assert.ErrorIs(t, err, opt.ErrMalformedInstance)
		})
	}
}

func TestLoadUsesFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ORTEC-n3.txt")
	src := strings.Replace(coordInstance, "NAME : tiny\n", "", 1)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	inst, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ORTEC-n3", inst.Name)

	_, err = Load(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
