package opt

// Every feasibility decision in this package goes through arrive and late.
// The constructor, local search, route refresh and the validator all share
// them, so they cannot disagree on what a feasible visit is.

// depart is the time every vehicle leaves the depot.
func (inst *Instance) depart() int { return inst.Ready[inst.Depot] }

// arrive propagates a vehicle that leaves prev at time t to node. The vehicle
// waits when it arrives before the window opens.
func (inst *Instance) arrive(prev, t, node int) (arrival, start int) {
	arrival = t + inst.Travel[prev][node]
	start = arrival
	if start < inst.Ready[node] {
		start = inst.Ready[node]
	}
	return arrival, start
}

// late reports whether arriving at node at the given time misses its window.
func (inst *Instance) late(node, arrival int) bool { return arrival > inst.Due[node] }

// Schedule is the fully propagated timeline of one route.
type Schedule struct {
	Load       int
	Cost       int
	Arrivals   []int // arrival at each visit, before waiting
	Starts     []int // service start at each visit
	Return     int   // arrival back at the depot
	CapacityOK bool
	TimeOK     bool
	LateAt     []int // positions whose arrival exceeds Due; len(seq) is the depot return
}

// Feasible reports whether the schedule respects capacity and every window.
func (s Schedule) Feasible() bool { return s.CapacityOK && s.TimeOK }

// Evaluate propagates seq from the depot and back, recording every violation.
// seq must only contain customer indices of inst.
func (inst *Instance) Evaluate(seq []int) Schedule {
	s := Schedule{
		Arrivals: make([]int, len(seq)),
		Starts:   make([]int, len(seq)),
		TimeOK:   true,
	}
	prev, t := inst.Depot, inst.depart()
	for i, node := range seq {
		s.Load += inst.Demand[node]
		s.Cost += inst.Travel[prev][node]
		arr, start := inst.arrive(prev, t, node)
		s.Arrivals[i], s.Starts[i] = arr, start
		if inst.late(node, arr) {
			s.TimeOK = false
			s.LateAt = append(s.LateAt, i)
		}
		prev, t = node, start+inst.Service[node]
	}
	if len(seq) > 0 {
		s.Cost += inst.Travel[prev][inst.Depot]
		s.Return, _ = inst.arrive(prev, t, inst.Depot)
		if inst.late(inst.Depot, s.Return) {
			s.TimeOK = false
			s.LateAt = append(s.LateAt, len(seq))
		}
	} else {
		s.Return = t
	}
	s.CapacityOK = s.Load <= inst.Capacity
	return s
}

// SequenceFeasible is the allocation-free form of Evaluate(seq).Feasible().
func (inst *Instance) SequenceFeasible(seq []int) bool {
	load := 0
	prev, t := inst.Depot, inst.depart()
	for _, node := range seq {
		load += inst.Demand[node]
		if load > inst.Capacity {
			return false
		}
		arr, start := inst.arrive(prev, t, node)
		if inst.late(node, arr) {
			return false
		}
		prev, t = node, start+inst.Service[node]
	}
	if len(seq) == 0 {
		return true
	}
	arr, _ := inst.arrive(prev, t, inst.Depot)
	return !inst.late(inst.Depot, arr)
}

// SequenceCost is the travel cost of depot -> seq... -> depot.
func (inst *Instance) SequenceCost(seq []int) int {
	if len(seq) == 0 {
		return 0
	}
	cost := inst.Travel[inst.Depot][seq[0]]
	for i := 1; i < len(seq); i++ {
		cost += inst.Travel[seq[i-1]][seq[i]]
	}
	return cost + inst.Travel[seq[len(seq)-1]][inst.Depot]
}
