package opt

import (
	"fmt"
	"slices"
)

// Route is one vehicle tour. The depot is implicit at both ends. Load, Cost,
// Arrivals, Starts, Return and Feasible are derived from Customers and are
// recomputed by every mutating method.
type Route struct {
	Customers []int `json:"customers"`
	Load      int   `json:"load"`
	Cost      int   `json:"cost"`
	Arrivals  []int `json:"arrivals"`
	Starts    []int `json:"starts"`
	Return    int   `json:"return"`
	Feasible  bool  `json:"feasible"`

	inst *Instance
}

// NewRoute builds a route over customers. The slice is copied.
func NewRoute(inst *Instance, customers []int) *Route {
	r := &Route{inst: inst, Customers: slices.Clone(customers)}
	if r.Customers == nil {
		r.Customers = []int{}
	}
	r.refresh()
	return r
}

func (r *Route) refresh() {
	s := r.inst.Evaluate(r.Customers)
	r.Load, r.Cost = s.Load, s.Cost
	r.Arrivals, r.Starts = s.Arrivals, s.Starts
	r.Return = s.Return
	r.Feasible = s.Feasible()
}

// Len returns the number of visits.
func (r *Route) Len() int { return len(r.Customers) }

// Insert places customer c before position pos (pos == Len appends).
func (r *Route) Insert(pos, c int) {
	r.Customers = slices.Insert(r.Customers, pos, c)
	r.refresh()
}

// RemoveAt removes and returns the customer at pos.
func (r *Route) RemoveAt(pos int) int {
	c := r.Customers[pos]
	r.Customers = slices.Delete(r.Customers, pos, pos+1)
	r.refresh()
	return c
}

// Replace puts c at pos and returns the customer it displaced.
func (r *Route) Replace(pos, c int) int {
	old := r.Customers[pos]
	r.Customers[pos] = c
	r.refresh()
	return old
}

// Swap exchanges the visits at positions i and j.
func (r *Route) Swap(i, j int) {
	r.Customers[i], r.Customers[j] = r.Customers[j], r.Customers[i]
	r.refresh()
}

func (r *Route) clone() *Route {
	return &Route{
		Customers: slices.Clone(r.Customers),
		Load:      r.Load,
		Cost:      r.Cost,
		Arrivals:  slices.Clone(r.Arrivals),
		Starts:    slices.Clone(r.Starts),
		Return:    r.Return,
		Feasible:  r.Feasible,
		inst:      r.inst,
	}
}

// neighbours returns the nodes on either side of gap pos, depot included.
func (r *Route) neighbours(pos int) (prev, next int) {
	prev, next = r.inst.Depot, r.inst.Depot
	if pos > 0 {
		prev = r.Customers[pos-1]
	}
	if pos < len(r.Customers) {
		next = r.Customers[pos]
	}
	return prev, next
}

// insertDelta is the travel cost change of inserting c into gap pos.
func (r *Route) insertDelta(pos, c int) int {
	t := r.inst.Travel
	prev, next := r.neighbours(pos)
	return t[prev][c] + t[c][next] - t[prev][next]
}

// replaceDelta is the travel cost change of putting c at pos instead of the
// current visit.
func (r *Route) replaceDelta(pos, c int) int {
	t := r.inst.Travel
	old := r.Customers[pos]
	prev, next := r.neighbours(pos)
	next = r.inst.Depot
	if pos+1 < len(r.Customers) {
		next = r.Customers[pos+1]
	}
	return t[prev][c] + t[c][next] - t[prev][old] - t[old][next]
}

// departAt is the time the vehicle leaves the node before gap pos.
func (r *Route) departAt(pos int) (node, t int) {
	inst := r.inst
	if pos == 0 {
		return inst.Depot, inst.depart()
	}
	node = r.Customers[pos-1]
	return node, r.Starts[pos-1] + inst.Service[node]
}

// propagateFrom pushes a vehicle that leaves prev at time t through
// Customers[from:] and back to the depot. When the route is feasible and a
// visit starts no later than its cached start, everything after it is
// unchanged or earlier, so the check stops there.
func (r *Route) propagateFrom(prev, t, from int) bool {
	inst := r.inst
	for i := from; i < len(r.Customers); i++ {
		node := r.Customers[i]
		arr, start := inst.arrive(prev, t, node)
		if inst.late(node, arr) {
			return false
		}
		if r.Feasible && start <= r.Starts[i] {
			return true
		}
		prev, t = node, start+inst.Service[node]
	}
	arr, _ := inst.arrive(prev, t, inst.Depot)
	return !inst.late(inst.Depot, arr)
}

// canInsert reports whether inserting c into gap pos keeps the route feasible.
// It reads the cached schedule and does not allocate.
func (r *Route) canInsert(pos, c int) bool {
	inst := r.inst
	if r.Load+inst.Demand[c] > inst.Capacity {
		return false
	}
	prev, t := r.departAt(pos)
	arr, start := inst.arrive(prev, t, c)
	if inst.late(c, arr) {
		return false
	}
	return r.propagateFrom(c, start+inst.Service[c], pos)
}

// canReplace reports whether putting c at pos instead of the current visit
// keeps the route feasible.
func (r *Route) canReplace(pos, c int) bool {
	inst := r.inst
	if r.Load-inst.Demand[r.Customers[pos]]+inst.Demand[c] > inst.Capacity {
		return false
	}
	prev, t := r.departAt(pos)
	arr, start := inst.arrive(prev, t, c)
	if inst.late(c, arr) {
		return false
	}
	return r.propagateFrom(c, start+inst.Service[c], pos+1)
}

// Solution is an ordered set of routes over one instance.
type Solution struct {
	Routes []*Route `json:"routes"`

	inst *Instance
}

// NewSolution returns an empty solution for inst.
func NewSolution(inst *Instance) *Solution {
	return &Solution{inst: inst, Routes: []*Route{}}
}

// FromSequences builds a solution from customer sequences. Empty sequences
// are skipped. Sequences are not checked; use Validate for that.
func FromSequences(inst *Instance, seqs [][]int) *Solution {
	s := NewSolution(inst)
	for _, seq := range seqs {
		if len(seq) > 0 {
			s.Routes = append(s.Routes, NewRoute(inst, seq))
		}
	}
	return s
}

// Instance returns the instance the solution was built for.
func (s *Solution) Instance() *Instance { return s.inst }

// Cost is the sum of route costs.
func (s *Solution) Cost() int {
	total := 0
	for _, r := range s.Routes {
		total += r.Cost
	}
	return total
}

// RoutesUsed counts non-empty routes.
func (s *Solution) RoutesUsed() int {
	n := 0
	for _, r := range s.Routes {
		if r.Len() > 0 {
			n++
		}
	}
	return n
}

// NumCustomers counts visits across all routes.
func (s *Solution) NumCustomers() int {
	n := 0
	for _, r := range s.Routes {
		n += r.Len()
	}
	return n
}

// Feasible reports whether every cached route schedule is feasible and the
// fleet bound holds. It does not check coverage.
func (s *Solution) Feasible() bool {
	if s.RoutesUsed() > s.inst.Vehicles {
		return false
	}
	for _, r := range s.Routes {
		if !r.Feasible {
			return false
		}
	}
	return true
}

// Sequences returns a copy of every route's customer order.
func (s *Solution) Sequences() [][]int {
	out := make([][]int, len(s.Routes))
	for i, r := range s.Routes {
		out[i] = slices.Clone(r.Customers)
	}
	return out
}

// Clone returns a deep copy; no route is shared with s.
func (s *Solution) Clone() *Solution {
	c := &Solution{inst: s.inst, Routes: make([]*Route, len(s.Routes))}
	for i, r := range s.Routes {
		c.Routes[i] = r.clone()
	}
	return c
}

// Validate runs the full validator over the solution's sequences.
func (s *Solution) Validate() Report { return Validate(s.inst, s.Sequences()) }

// CheckCoherence recomputes every route from scratch and reports the first
// cached field that differs.
func (s *Solution) CheckCoherence() error {
	for i, r := range s.Routes {
		fresh := s.inst.Evaluate(r.Customers)
		switch {
		case r.Load != fresh.Load:
			return fmt.Errorf("route %d: cached load %d, computed %d", i, r.Load, fresh.Load)
		case r.Cost != fresh.Cost:
			return fmt.Errorf("route %d: cached cost %d, computed %d", i, r.Cost, fresh.Cost)
		case r.Return != fresh.Return:
			return fmt.Errorf("route %d: cached return %d, computed %d", i, r.Return, fresh.Return)
		case r.Feasible != fresh.Feasible():
			return fmt.Errorf("route %d: cached feasible %t, computed %t", i, r.Feasible, fresh.Feasible())
		case !slices.Equal(r.Arrivals, fresh.Arrivals):
			return fmt.Errorf("route %d: cached arrivals %v, computed %v", i, r.Arrivals, fresh.Arrivals)
		case !slices.Equal(r.Starts, fresh.Starts):
			return fmt.Errorf("route %d: cached starts %v, computed %v", i, r.Starts, fresh.Starts)
		}
	}
	return nil
}

func (s *Solution) openRoute(c int) *Route {
	r := NewRoute(s.inst, []int{c})
	s.Routes = append(s.Routes, r)
	return r
}

// compact drops empty routes, keeping the order of the rest.
func (s *Solution) compact() {
	s.Routes = slices.DeleteFunc(s.Routes, func(r *Route) bool { return r.Len() == 0 })
}
