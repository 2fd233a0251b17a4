package opt

import (
	"time"

	"github.com/sirupsen/logrus"
)

// evalCheckMask sets how often the deadline is polled inside a scan.
const evalCheckMask = 1023

// StopReason says why Improve returned.
type StopReason string

const (
	StopLocalOptimum  StopReason = "local optimum"
	StopDeadline      StopReason = "deadline"
	StopMaxIterations StopReason = "iteration limit"
)

// Metrics summarises one Improve call.
type Metrics struct {
	Iterations  int        `json:"iterations"`
	Evaluations int        `json:"evaluations"`
	Relocates   int        `json:"relocates"`
	Swaps       int        `json:"swaps"`
	InitialCost int        `json:"initialCost"`
	FinalCost   int        `json:"finalCost"`
	StoppedBy   StopReason `json:"stoppedBy"`
}

type moveKind uint8

const (
	moveNone moveKind = iota
	moveRelocate
	moveSwap
)

// move is a candidate neighbour. For relocate, the customer at from[i] goes
// to gap j of route to (to == from means j indexes the route after removal,
// to == -1 opens a route). For swap, from[i] and to[j] trade places.
type move struct {
	kind  moveKind
	from  int
	i     int
	to    int
	j     int
	delta int
}

type search struct {
	sol      *Solution
	inst     *Instance
	deadline time.Time
	now      func() time.Time
	evals    int
	expired  bool
	best     move
	scratch  []int
	removeOK []int8 // per position of the route being scanned: 0 unknown, 1 ok, -1 infeasible
}

// tick counts one evaluation and polls the clock every evalCheckMask+1 calls.
func (s *search) tick() bool {
	s.evals++
	if s.evals&evalCheckMask == 0 && !s.now().Before(s.deadline) {
		s.expired = true
	}
	return s.expired
}

func (s *search) consider(m move) {
	if m.delta < s.best.delta {
		s.best = m
	}
}

// removalFeasible reports whether route r stays feasible without position i.
// Removing a visit can make a later one late when travel times break the
// triangle inequality, so it is checked, once per position.
func (s *search) removalFeasible(r *Route, i int) bool {
	if s.removeOK[i] == 0 {
		s.scratch = append(append(s.scratch[:0], r.Customers[:i]...), r.Customers[i+1:]...)
		s.removeOK[i] = -1
		if s.inst.SequenceFeasible(s.scratch) {
			s.removeOK[i] = 1
		}
	}
	return s.removeOK[i] == 1
}

func (s *search) removeDelta(r *Route, i int) int {
	t := s.inst.Travel
	c := r.Customers[i]
	prev, _ := r.neighbours(i)
	next := s.inst.Depot
	if i+1 < r.Len() {
		next = r.Customers[i+1]
	}
	return t[prev][next] - t[prev][c] - t[c][next]
}

// scanRelocate evaluates every relocation of every customer.
func (s *search) scanRelocate() {
	inst := s.inst
	routes := s.sol.Routes
	canOpen := s.sol.RoutesUsed() < inst.Vehicles
	for a, ra := range routes {
		if cap(s.removeOK) < ra.Len() {
			s.removeOK = make([]int8, ra.Len())
		}
		s.removeOK = s.removeOK[:ra.Len()]
		clear(s.removeOK)
		for i, c := range ra.Customers {
			out := s.removeDelta(ra, i)
			for b, rb := range routes {
				if b == a {
					s.relocateIntra(a, ra, i, c)
				} else {
					for j := 0; j <= rb.Len(); j++ {
						if s.tick() {
							return
						}
						m := move{kind: moveRelocate, from: a, i: i, to: b, j: j, delta: out + rb.insertDelta(j, c)}
						if m.delta < s.best.delta && rb.canInsert(j, c) && s.removalFeasible(ra, i) {
							s.consider(m)
						}
					}
				}
				if s.expired {
					return
				}
			}
			if canOpen && ra.Len() > 1 {
				if s.tick() {
					return
				}
				m := move{kind: moveRelocate, from: a, i: i, to: -1, delta: out + inst.Travel[inst.Depot][c] + inst.Travel[c][inst.Depot]}
				if m.delta < s.best.delta && s.removalFeasible(ra, i) && inst.SequenceFeasible([]int{c}) {
					s.consider(m)
				}
			}
		}
	}
}

// relocateIntra evaluates moving position i of route a to every other gap of
// the same route. j indexes the route after removal.
func (s *search) relocateIntra(a int, r *Route, i, c int) {
	for j := 0; j < r.Len(); j++ {
		if j == i {
			continue
		}
		if s.tick() {
			return
		}
		seq := s.scratch[:0]
		seq = append(seq, r.Customers[:i]...)
		seq = append(seq, r.Customers[i+1:]...)
		seq = append(seq, 0)
		copy(seq[j+1:], seq[j:len(seq)-1])
		seq[j] = c
		s.scratch = seq
		m := move{kind: moveRelocate, from: a, i: i, to: a, j: j, delta: s.inst.SequenceCost(seq) - r.Cost}
		if m.delta < s.best.delta && s.inst.SequenceFeasible(seq) {
			s.consider(m)
		}
	}
}

// scanSwap evaluates every exchange of two customers.
func (s *search) scanSwap() {
	routes := s.sol.Routes
	for a, ra := range routes {
		for i, ci := range ra.Customers {
			for j := i + 1; j < ra.Len(); j++ {
				if s.tick() {
					return
				}
				seq := append(s.scratch[:0], ra.Customers...)
				seq[i], seq[j] = seq[j], seq[i]
				s.scratch = seq
				m := move{kind: moveSwap, from: a, i: i, to: a, j: j, delta: s.inst.SequenceCost(seq) - ra.Cost}
				if m.delta < s.best.delta && s.inst.SequenceFeasible(seq) {
					s.consider(m)
				}
			}
			for b := a + 1; b < len(routes); b++ {
				rb := routes[b]
				for j, cj := range rb.Customers {
					if s.tick() {
						return
					}
					m := move{kind: moveSwap, from: a, i: i, to: b, j: j, delta: ra.replaceDelta(i, cj) + rb.replaceDelta(j, ci)}
					if m.delta < s.best.delta && ra.canReplace(i, cj) && rb.canReplace(j, ci) {
						s.consider(m)
					}
				}
			}
		}
	}
}

// apply commits m; only the routes it touches are recomputed.
func (s *search) apply(m move) {
	ra := s.sol.Routes[m.from]
	switch m.kind {
	case moveRelocate:
		c := ra.RemoveAt(m.i)
		switch {
		case m.to < 0:
			s.sol.openRoute(c)
		default:
			s.sol.Routes[m.to].Insert(m.j, c)
		}
	case moveSwap:
		if m.to == m.from {
			ra.Swap(m.i, m.j)
			return
		}
		rb := s.sol.Routes[m.to]
		ci := ra.Customers[m.i]
		ra.Replace(m.i, rb.Replace(m.j, ci))
	}
	s.sol.compact()
}

// Improve runs best-improvement local search over relocate and swap moves
// until no improving move exists, the deadline passes or opts.MaxIterations
// scans have run. It takes ownership of sol and returns it; cost never
// increases and feasibility of the input is preserved.
func Improve(sol *Solution, deadline time.Time, opts Options) (*Solution, Metrics) {
	opts = opts.normalize()
	s := &search{sol: sol, inst: sol.inst, deadline: deadline, now: opts.Now}
	met := Metrics{InitialCost: sol.Cost()}
	sol.compact()
	for {
		if opts.MaxIterations > 0 && met.Iterations >= opts.MaxIterations {
			met.StoppedBy = StopMaxIterations
			break
		}
		if !s.now().Before(deadline) {
			met.StoppedBy = StopDeadline
			break
		}
		met.Iterations++
		s.best = move{}
		s.scanRelocate()
		if !s.expired {
			s.scanSwap()
		}
		if s.expired {
			met.StoppedBy = StopDeadline
			break
		}
		if s.best.kind == moveNone {
			met.StoppedBy = StopLocalOptimum
			break
		}
		s.apply(s.best)
		if s.best.kind == moveRelocate {
			met.Relocates++
		} else {
			met.Swaps++
		}
		opts.Logger.WithFields(logrus.Fields{
			"iteration": met.Iterations, "delta": s.best.delta, "cost": sol.Cost(),
		}).Trace("local search move")
		opts.report(Progress{Phase: PhaseImprove, Iteration: met.Iterations, Cost: sol.Cost(), Routes: sol.RoutesUsed()})
	}
	met.Evaluations = s.evals
	met.FinalCost = sol.Cost()
	return sol, met
}
