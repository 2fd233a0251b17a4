package opt

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRegret is the k of regret-k insertion.
const DefaultRegret = 2

// Phase names a stage of a solve.
type Phase string

const (
	PhaseConstruct Phase = "construct"
	PhaseImprove   Phase = "improve"
	PhaseValidate  Phase = "validate"
)

// Progress is delivered to Options.Progress as the solve advances.
type Progress struct {
	Phase     Phase `json:"phase"`
	Iteration int   `json:"iteration,omitempty"`
	Cost      int   `json:"cost"`
	Routes    int   `json:"routes"`
}

// Options tunes Construct, Improve and Solve. The zero value is usable.
type Options struct {
	// Regret is k for regret-k insertion; values below 2 mean DefaultRegret.
	Regret int
	// MaxIterations caps local search scans; 0 means no cap.
	MaxIterations int
	// Now is the clock used for deadlines. Defaults to time.Now.
	Now func() time.Time
	// Logger receives diagnostics. Defaults to a discarding logger.
	Logger logrus.FieldLogger
	// Progress, if set, is called synchronously from the solving goroutine.
	Progress func(Progress)
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (o Options) normalize() Options {
	if o.Regret < 2 {
		o.Regret = DefaultRegret
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = discard
	}
	return o
}

func (o Options) report(p Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

// Result is everything a reporter needs from one solve.
type Result struct {
	Solution    *Solution     `json:"solution"`
	Report      Report        `json:"report"`
	InitialCost int           `json:"initialCost"`
	FinalCost   int           `json:"finalCost"`
	Elapsed     time.Duration `json:"elapsed"`
	RoutesUsed  int           `json:"routesUsed"`
	Metrics     Metrics       `json:"metrics"`
}

// Improvement is the relative cost reduction in percent.
func (r Result) Improvement() float64 {
	if r.InitialCost <= 0 {
		return 0
	}
	return float64(r.InitialCost-r.FinalCost) / float64(r.InitialCost) * 100
}

// Solve constructs, improves until start+budget and certifies a solution.
// An infeasible or malformed instance is returned as an error with no
// solution. ErrFeasibilityMismatch is returned together with the result when
// the validator rejects a solution the search believed feasible.
func Solve(inst *Instance, budget time.Duration, opts Options) (Result, error) {
	opts = opts.normalize()
	start := opts.Now()
	deadline := start.Add(budget)
	log := opts.Logger.WithFields(logrus.Fields{"instance": inst.Name, "budget": budget})

	sol, err := Construct(inst, opts)
	if err != nil {
		return Result{}, fmt.Errorf("construct: %w", err)
	}
	res := Result{InitialCost: sol.Cost()}
	log.WithFields(logrus.Fields{"cost": res.InitialCost, "routes": sol.RoutesUsed()}).Debug("construction done")
	opts.report(Progress{Phase: PhaseConstruct, Cost: res.InitialCost, Routes: sol.RoutesUsed()})

	sol, res.Metrics = Improve(sol, deadline, opts)
	res.Solution = sol
	res.FinalCost = sol.Cost()
	res.RoutesUsed = sol.RoutesUsed()
	log.WithFields(logrus.Fields{
		"cost": res.FinalCost, "iterations": res.Metrics.Iterations, "stop": res.Metrics.StoppedBy,
	}).Debug("local search done")

	res.Report = sol.Validate()
	res.Elapsed = opts.Now().Sub(start)
	opts.report(Progress{Phase: PhaseValidate, Cost: res.FinalCost, Routes: res.RoutesUsed})

	believed := sol.Feasible() && sol.NumCustomers() == len(inst.Customers())
	if believed != res.Report.Valid {
		log.WithField("report", res.Report.Summary()).Error("validator disagrees with solver")
		return res, fmt.Errorf("%w: solver feasible=%t, validator valid=%t", ErrFeasibilityMismatch, believed, res.Report.Valid)
	}
	if !res.Report.Valid {
		log.Warn(res.Report.Summary())
	}
	return res, nil
}
