package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lineInstance = `NAME : line
VEHICLES : 2
CAPACITY : 10
NODE_COORD_SECTION
1 0 0
2 1 0
3 2 0
4 3 0
DEMAND_SECTION
1 0
2 5
3 5
4 5
TIME_WINDOW_SECTION
3 0 2
EOF
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSolveThenValidate(t *testing.T) {
	dir := t.TempDir()
	inst := writeFile(t, dir, "line.txt", lineInstance)
	solPath := filepath.Join(dir, "sol.json")

	out, err := run(t, "solve", inst, "--budget", "200ms", "--json", "--out", solPath)
	require.NoError(t, err)
	var printed solutionFile
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, "line", printed.Instance)
	assert.True(t, printed.Valid)

	saved, err := readSolution(solPath)
	require.NoError(t, err)
	assert.Equal(t, printed, saved)

	out, err = run(t, "validate", inst, solPath)
	require.NoError(t, err)
	assert.Contains(t, out, "solution VALID")
}

func TestSolveSummary(t *testing.T) {
	inst := writeFile(t, t.TempDir(), "line.txt", lineInstance)
	out, err := run(t, "solve", inst, "--budget", "100ms", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "Instance:     line (4 nodes, 2 vehicles, capacity 10)")
	assert.Contains(t, out, "Valid:        YES")
	assert.Contains(t, out, "route 0:")

	_, err = run(t, "solve", inst, "--budget", "0s")
	assert.Error(t, err)
	_, err = run(t, "solve", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestValidateRejectsBrokenSolution(t *testing.T) {
	dir := t.TempDir()
	inst := writeFile(t, dir, "line.txt", lineInstance)
	// customer 3 is missing and customer 2 is served twice
	sol := writeFile(t, dir, "bad.json", `{"routes": [[1, 2], [2]]}`)

	out, err := run(t, "validate", inst, sol)
	assert.ErrorIs(t, err, errInvalidSolution)
	assert.Contains(t, out, "solution INVALID")
	assert.Contains(t, out, "unrouted: [3]")
	assert.Contains(t, out, "duplicates: [2]")

	out, err = run(t, "validate", inst, sol, "--json")
	assert.ErrorIs(t, err, errInvalidSolution)
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, false, rep["valid"])
}

func TestBenchWritesReport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ORTEC-VRPTW-line-a.txt", lineInstance)
	writeFile(t, dir, "ORTEC-VRPTW-line-b.txt", lineInstance)
	writeFile(t, dir, "notes.txt", "not an instance")
	report := filepath.Join(dir, "out", "results.csv")

	out, err := run(t, "bench", "--instances", dir, "--budgets", "50ms,100ms", "--parallel", "2", "-o", report)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 instances")
	assert.Contains(t, out, "Time budgets: 50ms, 100ms")
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = run(t, "bench", "--instances", dir, "-o", filepath.Join(dir, "results.pdf"))
	assert.Error(t, err)
	_, err = run(t, "bench", "--instances", t.TempDir())
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	_, err = run(t, "--log", "loud", "version")
	assert.Error(t, err)
}
