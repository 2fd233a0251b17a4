package opt

import (
	"fmt"
	"math"
)

// DefaultDue is the latest time bound given to nodes whose file omits a window.
const DefaultDue = 99999

// Instance is an immutable VRPTW problem description. Node 0..Nodes()-1 index
// every per-node slice and both dimensions of Travel; Depot is one of them.
type Instance struct {
	Name     string    `json:"name,omitempty"`
	Vehicles int       `json:"vehicles"`
	Capacity int       `json:"capacity"`
	Depot    int       `json:"depot"`
	Travel   [][]int   `json:"travel"` // travel time == travel cost
	Demand   []int     `json:"demand"`
	Ready    []int     `json:"ready"`
	Due      []int     `json:"due"`
	Service  []int     `json:"service"`
	X        []float64 `json:"x,omitempty"`
	Y        []float64 `json:"y,omitempty"`
}

// Nodes returns the number of locations including the depot.
func (inst *Instance) Nodes() int { return len(inst.Demand) }

// Customers returns all customer indices in ascending order.
func (inst *Instance) Customers() []int {
	out := make([]int, 0, inst.Nodes())
	for i := 0; i < inst.Nodes(); i++ {
		if i != inst.Depot {
			out = append(out, i)
		}
	}
	return out
}

// IsCustomer reports whether idx names a customer of this instance.
func (inst *Instance) IsCustomer(idx int) bool {
	return idx >= 0 && idx < inst.Nodes() && idx != inst.Depot
}

// Validate checks the structural invariants the solver relies on.
func (inst *Instance) Validate() error {
	if inst == nil {
		return &MalformedInstanceError{Field: "instance", Reason: "nil"}
	}
	n := inst.Nodes()
	if n < 1 {
		return &MalformedInstanceError{Field: "demand", Reason: "no nodes"}
	}
	if inst.Vehicles < 0 {
		return &MalformedInstanceError{Field: "vehicles", Reason: fmt.Sprintf("must be >= 0 (got %d)", inst.Vehicles)}
	}
	if inst.Capacity < 0 {
		return &MalformedInstanceError{Field: "capacity", Reason: fmt.Sprintf("must be >= 0 (got %d)", inst.Capacity)}
	}
	if inst.Depot < 0 || inst.Depot >= n {
		return &MalformedInstanceError{Field: "depot", Reason: fmt.Sprintf("index %d out of range [0,%d)", inst.Depot, n)}
	}
	for _, col := range []struct {
		name string
		vals []int
	}{{"ready", inst.Ready}, {"due", inst.Due}, {"service", inst.Service}} {
		if len(col.vals) != n {
			return &MalformedInstanceError{Field: col.name, Reason: fmt.Sprintf("length %d, want %d", len(col.vals), n)}
		}
	}
	if len(inst.Travel) != n {
		return &MalformedInstanceError{Field: "travel", Reason: fmt.Sprintf("%d rows, want %d", len(inst.Travel), n)}
	}
	for i := 0; i < n; i++ {
		if len(inst.Travel[i]) != n {
			return &MalformedInstanceError{Field: "travel", Reason: fmt.Sprintf("row %d has %d columns, want %d", i, len(inst.Travel[i]), n)}
		}
		if inst.Travel[i][i] != 0 {
			return &MalformedInstanceError{Field: "travel", Reason: fmt.Sprintf("non-zero diagonal at %d", i)}
		}
		for j := 0; j < n; j++ {
			if inst.Travel[i][j] < 0 {
				return &MalformedInstanceError{Field: "travel", Reason: fmt.Sprintf("negative entry at (%d,%d)", i, j)}
			}
		}
		if inst.Demand[i] < 0 {
			return &MalformedInstanceError{Field: "demand", Reason: fmt.Sprintf("node %d has negative demand", i)}
		}
		if inst.Service[i] < 0 {
			return &MalformedInstanceError{Field: "service", Reason: fmt.Sprintf("node %d has negative service time", i)}
		}
		if inst.Ready[i] < 0 || inst.Ready[i] > inst.Due[i] {
			return &MalformedInstanceError{Field: "window", Reason: fmt.Sprintf("node %d has window [%d,%d]", i, inst.Ready[i], inst.Due[i])}
		}
	}
	if inst.Demand[inst.Depot] != 0 {
		return &MalformedInstanceError{Field: "demand", Reason: "depot demand must be 0"}
	}
	return nil
}

// EuclideanMatrix returns the rounded Euclidean distance matrix of the points.
func EuclideanMatrix(xs, ys []float64) [][]int {
	n := len(xs)
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
		for j := 0; j < n; j++ {
			if i != j {
				m[i][j] = int(math.Round(math.Hypot(xs[i]-xs[j], ys[i]-ys[j])))
			}
		}
	}
	return m
}

// Site describes one location for NewEuclidean. Due == 0 means DefaultDue.
type Site struct {
	X, Y    float64
	Demand  int
	Ready   int
	Due     int
	Service int
}

// NewEuclidean builds an instance whose first site is the depot and whose
// travel matrix is the rounded Euclidean distance between sites.
func NewEuclidean(name string, vehicles, capacity int, sites []Site) *Instance {
	n := len(sites)
	inst := &Instance{
		Name:     name,
		Vehicles: vehicles,
		Capacity: capacity,
		Demand:   make([]int, n),
		Ready:    make([]int, n),
		Due:      make([]int, n),
		Service:  make([]int, n),
		X:        make([]float64, n),
		Y:        make([]float64, n),
	}
	for i, s := range sites {
		inst.X[i], inst.Y[i] = s.X, s.Y
		inst.Demand[i] = s.Demand
		inst.Ready[i] = s.Ready
		inst.Due[i] = s.Due
		if s.Due == 0 {
			inst.Due[i] = DefaultDue
		}
		inst.Service[i] = s.Service
	}
	inst.Travel = EuclideanMatrix(inst.X, inst.Y)
	return inst
}
