// Package bench runs the solver over many instances and time budgets and
// collects one report row per run.
package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vrptw/internal/opt"
	"vrptw/internal/ortec"
	"vrptw/internal/report"
)

// Config controls a benchmark batch.
type Config struct {
	Budgets []time.Duration
	Regret  int
	// Parallel is the number of runs in flight; each run is single-threaded.
	// Values below 1 mean 1.
	Parallel int
	Logger   logrus.FieldLogger
	// OnRow is called after every run, from the goroutine that ran it.
	OnRow func(report.Row)
}

// Loader produces the instance behind a path.
type Loader func(path string) (*opt.Instance, error)

// Runner executes batches.
type Runner struct {
	cfg  Config
	load Loader
	now  func() time.Time
}

// New returns a Runner that reads ORTEC files.
func New(cfg Config) *Runner {
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Runner{cfg: cfg, load: ortec.Load, now: time.Now}
}

// WithLoader replaces how paths are turned into instances.
func (r *Runner) WithLoader(l Loader) *Runner {
	r.load = l
	return r
}

// Run loads every path and solves it once per budget. Rows come back ordered
// by path, then budget, whatever Parallel is. A load failure aborts the batch;
// a failed solve is recorded in its row.
func (r *Runner) Run(ctx context.Context, paths []string) ([]report.Row, error) {
	if len(r.cfg.Budgets) == 0 {
		return nil, fmt.Errorf("bench: no time budgets")
	}
	insts := make([]*opt.Instance, len(paths))
	for i, p := range paths {
		inst, err := r.load(p)
		if err != nil {
			return nil, fmt.Errorf("bench: load %s: %w", p, err)
		}
		insts[i] = inst
		r.cfg.Logger.WithFields(logrus.Fields{
			"instance": inst.Name, "nodes": inst.Nodes(), "vehicles": inst.Vehicles, "capacity": inst.Capacity,
		}).Info("instance loaded")
	}

	nb := len(r.cfg.Budgets)
	rows := make([]report.Row, len(insts)*nb)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallel)
	for i, inst := range insts {
		for j, budget := range r.cfg.Budgets {
			inst, budget := inst, budget
			slot := i*nb + j
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				rows[slot] = r.runOne(inst, budget)
				if r.cfg.OnRow != nil {
					r.cfg.OnRow(rows[slot])
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Runner) runOne(inst *opt.Instance, budget time.Duration) report.Row {
	log := r.cfg.Logger.WithFields(logrus.Fields{"instance": inst.Name, "budget": report.BudgetLabel(budget)})
	start := r.now()
	res, err := opt.Solve(inst, budget, opt.Options{Regret: r.cfg.Regret, Logger: log})
	row := report.NewRow(inst, budget, res, r.now().Sub(start), err)
	entry := log.WithFields(logrus.Fields{
		"initial": row.InitialCost, "final": row.FinalCost,
		"improvement": fmt.Sprintf("%.2f%%", row.Improvement), "routes": row.RoutesUsed,
		"wall": row.WallTime.Round(time.Millisecond), "valid": row.Valid,
	})
	switch {
	case err != nil:
		entry.WithError(err).Error("run failed")
	case !row.Valid:
		entry.WithField("violations", row.Violations).Warn("run produced an invalid solution")
	default:
		entry.Info("run done")
	}
	return row
}
