package opt

import (
	"math"
	"slices"

	"github.com/sirupsen/logrus"
)

// infRegret marks a customer with fewer than k feasible options; it must be
// placed before its last option disappears.
const infRegret = math.MaxInt

// insertion is one feasible placement of a customer. route == -1 opens a new
// route.
type insertion struct {
	delta int
	route int
	pos   int
}

// before orders insertions by delta, then route index, then position.
func (a insertion) before(b insertion) bool {
	if a.delta != b.delta {
		return a.delta < b.delta
	}
	if a.route != b.route {
		return a.route < b.route
	}
	return a.pos < b.pos
}

// routeOptions caches what one route offers one customer: the count of
// feasible gaps, the best of them and the k cheapest deltas.
type routeOptions struct {
	n    int
	best insertion
	top  []int
}

// constructor holds the regret-k state. Routes are only ever appended and
// only the route touched by the previous insertion changes, so refreshing
// that single column of opts yields exactly what a full recomputation would.
type constructor struct {
	inst     *Instance
	k        int
	sol      *Solution
	unrouted []int            // ascending customer ids
	opts     [][]routeOptions // opts[c][r]
	merged   []int            // scratch for the k cheapest deltas
}

func newConstructor(inst *Instance, k int) *constructor {
	return &constructor{
		inst:     inst,
		k:        k,
		sol:      NewSolution(inst),
		unrouted: inst.Customers(),
		opts:     make([][]routeOptions, inst.Nodes()),
		merged:   make([]int, 0, k),
	}
}

// pushTop inserts d into the ascending list top, keeping at most k entries.
func pushTop(top []int, d, k int) []int {
	i, _ := slices.BinarySearch(top, d)
	if i >= k {
		return top
	}
	if len(top) < k {
		top = append(top, 0)
	}
	copy(top[i+1:], top[i:len(top)-1])
	top[i] = d
	return top
}

// scan evaluates every gap of route ri for customer c.
func (b *constructor) scan(c, ri int) routeOptions {
	r := b.sol.Routes[ri]
	ro := routeOptions{top: make([]int, 0, b.k)}
	for pos := 0; pos <= r.Len(); pos++ {
		if !r.canInsert(pos, c) {
			continue
		}
		ins := insertion{delta: r.insertDelta(pos, c), route: ri, pos: pos}
		if ro.n == 0 || ins.before(ro.best) {
			ro.best = ins
		}
		ro.n++
		ro.top = pushTop(ro.top, ins.delta, b.k)
	}
	return ro
}

// refresh recomputes the options of c on route touched (-1 for none).
func (b *constructor) refresh(c, touched int) {
	if touched < 0 {
		return
	}
	if touched == len(b.opts[c]) {
		b.opts[c] = append(b.opts[c], b.scan(c, touched))
		return
	}
	b.opts[c][touched] = b.scan(c, touched)
}

// assess returns c's best insertion and its regret. ok is false when c has
// no feasible option at all.
func (b *constructor) assess(c int) (best insertion, regret int, ok bool) {
	n := 0
	b.merged = b.merged[:0]
	for _, ro := range b.opts[c] {
		if ro.n == 0 {
			continue
		}
		if n == 0 || ro.best.before(best) {
			best = ro.best
		}
		n += ro.n
		for _, d := range ro.top {
			b.merged = pushTop(b.merged, d, b.k)
		}
	}
	if n == 0 {
		if len(b.sol.Routes) >= b.inst.Vehicles || !b.inst.SequenceFeasible([]int{c}) {
			return insertion{}, 0, false
		}
		t := b.inst.Travel
		return insertion{delta: t[b.inst.Depot][c] + t[c][b.inst.Depot], route: -1}, infRegret, true
	}
	if n < b.k {
		return best, infRegret, true
	}
	return best, b.merged[b.k-1] - b.merged[0], true
}

// Construct builds a feasible solution by regret-k insertion. Every step
// inserts the unrouted customer with the largest regret (ties to the lowest
// id) at its cheapest feasible position. A new route is only offered to a
// customer that fits nowhere else while a vehicle is still free.
func Construct(inst *Instance, opts Options) (*Solution, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalize()
	b := newConstructor(inst, opts.Regret)
	touched := -1
	for step := 0; len(b.unrouted) > 0; step++ {
		pick, pickIdx, pickRegret := insertion{}, -1, 0
		for i, c := range b.unrouted {
			b.refresh(c, touched)
			best, regret, ok := b.assess(c)
			if !ok {
				continue
			}
			if pickIdx < 0 || regret > pickRegret {
				pick, pickIdx, pickRegret = best, i, regret
			}
		}
		if pickIdx < 0 {
			return nil, &InfeasibleInstanceError{Customer: b.unrouted[0], Vehicles: inst.Vehicles, Unrouted: len(b.unrouted)}
		}
		c := b.unrouted[pickIdx]
		if pick.route < 0 {
			b.sol.openRoute(c)
			touched = len(b.sol.Routes) - 1
		} else {
			b.sol.Routes[pick.route].Insert(pick.pos, c)
			touched = pick.route
		}
		b.unrouted = slices.Delete(b.unrouted, pickIdx, pickIdx+1)
		b.opts[c] = nil
		opts.Logger.WithFields(logrus.Fields{
			"step": step, "customer": c, "route": touched, "regret": regretField(pickRegret),
		}).Trace("regret insertion")
	}
	return b.sol, nil
}

func regretField(r int) any {
	if r == infRegret {
		return "inf"
	}
	return r
}
