package opt

import (
	"fmt"
	"slices"
	"strings"
)

// ViolationKind classifies a single constraint breach.
type ViolationKind string

const (
	ViolationCapacity    ViolationKind = "capacity"
	ViolationLateArrival ViolationKind = "late arrival"
	ViolationLateReturn  ViolationKind = "late depot return"
	ViolationUnknownNode ViolationKind = "unknown node"
)

// Violation is one breach found on a route. Position is -1 for route-level
// breaches (capacity, depot return).
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Position int           `json:"position"`
	Node     int           `json:"node"`
	Value    int           `json:"value"` // load or arrival time
	Limit    int           `json:"limit"` // capacity or due time
}

func (v Violation) String() string {
	switch v.Kind {
	case ViolationCapacity:
		return fmt.Sprintf("capacity exceeded: load %d > %d", v.Value, v.Limit)
	case ViolationLateArrival:
		return fmt.Sprintf("customer %d at position %d: arrival %d > due %d", v.Node, v.Position, v.Value, v.Limit)
	case ViolationLateReturn:
		return fmt.Sprintf("depot return %d > due %d", v.Value, v.Limit)
	default:
		return fmt.Sprintf("position %d: node %d is not a customer", v.Position, v.Node)
	}
}

// Visit is one stop of a validated route timeline.
type Visit struct {
	Customer  int `json:"customer"`
	Arrival   int `json:"arrival"`
	Start     int `json:"start"`
	Departure int `json:"departure"`
	Ready     int `json:"ready"`
	Due       int `json:"due"`
}

// RouteReport is the single-route verdict.
type RouteReport struct {
	Index      int         `json:"index"`
	Customers  []int       `json:"customers"`
	Load       int         `json:"load"`
	Capacity   int         `json:"capacity"`
	Cost       int         `json:"cost"`
	Visits     []Visit     `json:"visits"`
	Return     int         `json:"return"`
	Violations []Violation `json:"violations,omitempty"`
	Feasible   bool        `json:"feasible"`
}

// Report is the whole-solution verdict.
type Report struct {
	Valid               bool          `json:"valid"`
	Routes              []RouteReport `json:"routes"`
	TotalCustomers      int           `json:"totalCustomers"`
	Routed              int           `json:"routed"`
	Unrouted            []int         `json:"unrouted,omitempty"`
	Duplicates          []int         `json:"duplicates,omitempty"`
	RoutesUsed          int           `json:"routesUsed"`
	FleetSize           int           `json:"fleetSize"`
	FleetOK             bool          `json:"fleetOk"`
	TotalCost           int           `json:"totalCost"`
	TotalViolations     int           `json:"totalViolations"`
	CapacityUtilization float64       `json:"capacityUtilization"` // total load / (routes used * capacity)
}

// ValidateRoute checks one route in isolation. Nodes that are not customers
// of inst are reported and skipped when propagating the schedule.
func ValidateRoute(inst *Instance, seq []int, idx int) RouteReport {
	rr := RouteReport{
		Index:     idx,
		Customers: slices.Clone(seq),
		Capacity:  inst.Capacity,
	}
	known := make([]int, 0, len(seq))
	pos := make([]int, 0, len(seq))
	for i, node := range seq {
		if !inst.IsCustomer(node) {
			rr.Violations = append(rr.Violations, Violation{Kind: ViolationUnknownNode, Position: i, Node: node})
			continue
		}
		known = append(known, node)
		pos = append(pos, i)
	}
	s := inst.Evaluate(known)
	rr.Load, rr.Cost, rr.Return = s.Load, s.Cost, s.Return
	rr.Visits = make([]Visit, len(known))
	for i, node := range known {
		rr.Visits[i] = Visit{
			Customer:  node,
			Arrival:   s.Arrivals[i],
			Start:     s.Starts[i],
			Departure: s.Starts[i] + inst.Service[node],
			Ready:     inst.Ready[node],
			Due:       inst.Due[node],
		}
	}
	if !s.CapacityOK {
		rr.Violations = append(rr.Violations, Violation{Kind: ViolationCapacity, Position: -1, Node: -1, Value: s.Load, Limit: inst.Capacity})
	}
	for _, at := range s.LateAt {
		if at == len(known) {
			rr.Violations = append(rr.Violations, Violation{Kind: ViolationLateReturn, Position: -1, Node: inst.Depot, Value: s.Return, Limit: inst.Due[inst.Depot]})
			continue
		}
		rr.Violations = append(rr.Violations, Violation{Kind: ViolationLateArrival, Position: pos[at], Node: known[at], Value: s.Arrivals[at], Limit: inst.Due[known[at]]})
	}
	rr.Feasible = len(rr.Violations) == 0
	return rr
}

// Validate certifies a complete solution given as customer sequences. It is
// pure and never fails; breaches are reported as data.
func Validate(inst *Instance, routes [][]int) Report {
	rep := Report{
		Routes:         make([]RouteReport, len(routes)),
		TotalCustomers: len(inst.Customers()),
		FleetSize:      inst.Vehicles,
	}
	seen := make([]int, inst.Nodes())
	load := 0
	allFeasible := true
	for i, seq := range routes {
		rr := ValidateRoute(inst, seq, i)
		rep.Routes[i] = rr
		rep.TotalViolations += len(rr.Violations)
		rep.TotalCost += rr.Cost
		allFeasible = allFeasible && rr.Feasible
		if len(seq) > 0 {
			rep.RoutesUsed++
		}
		load += rr.Load
		for _, node := range seq {
			if inst.IsCustomer(node) {
				seen[node]++
			}
		}
	}
	for _, c := range inst.Customers() {
		switch n := seen[c]; {
		case n == 0:
			rep.Unrouted = append(rep.Unrouted, c)
		case n > 1:
			rep.Duplicates = append(rep.Duplicates, c)
			rep.Routed++
		default:
			rep.Routed++
		}
	}
	rep.FleetOK = rep.RoutesUsed <= inst.Vehicles
	if rep.RoutesUsed > 0 && inst.Capacity > 0 {
		rep.CapacityUtilization = float64(load) / float64(rep.RoutesUsed*inst.Capacity)
	}
	rep.Valid = allFeasible && rep.FleetOK && len(rep.Unrouted) == 0 && len(rep.Duplicates) == 0
	return rep
}

// Summary renders the report for logs and the CLI.
func (r Report) Summary() string {
	var b strings.Builder
	verdict := "VALID"
	if !r.Valid {
		verdict = "INVALID"
	}
	fmt.Fprintf(&b, "solution %s: cost %d, %d/%d routes, %d/%d customers routed, capacity utilization %.1f%%\n",
		verdict, r.TotalCost, r.RoutesUsed, r.FleetSize, r.Routed, r.TotalCustomers, 100*r.CapacityUtilization)
	if !r.FleetOK {
		fmt.Fprintf(&b, "  fleet exceeded: %d routes > %d vehicles\n", r.RoutesUsed, r.FleetSize)
	}
	if len(r.Unrouted) > 0 {
		fmt.Fprintf(&b, "  unrouted: %v\n", r.Unrouted)
	}
	if len(r.Duplicates) > 0 {
		fmt.Fprintf(&b, "  duplicates: %v\n", r.Duplicates)
	}
	for _, rr := range r.Routes {
		if rr.Feasible {
			continue
		}
		fmt.Fprintf(&b, "  route %d %v (load %d/%d):\n", rr.Index, rr.Customers, rr.Load, rr.Capacity)
		for _, v := range rr.Violations {
			fmt.Fprintf(&b, "    %s\n", v)
		}
	}
	return b.String()
}
