package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vrptw/internal/bench"
	"vrptw/internal/opt"
	"vrptw/internal/report"
)

const instancePattern = "ORTEC-VRPTW-*.txt"

var errInvalidRuns = errors.New("benchmark produced invalid solutions")

func newBenchCmd(log logrus.FieldLogger) *cobra.Command {
	var (
		budgets  []time.Duration
		dir      string
		output   string
		regret   int
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "bench [instance...]",
		Short: "Solve many instances under several budgets and write a report",
		Long: "Solve every instance once per budget. Without arguments the instances are the " +
			instancePattern + " files of --instances. The report format follows the --output extension (.xlsx or .csv).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(budgets) == 0 {
				return fmt.Errorf("--budgets must name at least one budget")
			}
			for _, b := range budgets {
				if b <= 0 {
					return fmt.Errorf("--budgets: %s is not positive", b)
				}
			}
			if _, err := report.ForPath(output); err != nil {
				return err
			}
			paths := args
			if len(paths) == 0 {
				var err error
				if paths, err = findInstances(dir); err != nil {
					return err
				}
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Found %d instances\nTime budgets: %s\nOutput: %s\n", len(paths), budgetList(budgets), output)

			runner := bench.New(bench.Config{
				Budgets:  budgets,
				Regret:   regret,
				Parallel: parallel,
				Logger:   log,
				OnRow: func(r report.Row) {
					log.WithFields(logrus.Fields{
						"instance": r.Instance, "budget": r.Budget, "cost": r.FinalCost, "valid": r.Valid,
					}).Info("run done")
				},
			})
			rows, err := runner.Run(cmd.Context(), paths)
			if err != nil {
				return err
			}
			if parent := filepath.Dir(output); parent != "." {
				if err := os.MkdirAll(parent, 0o755); err != nil {
					return err
				}
			}
			if err := report.WriteFile(output, rows, budgets); err != nil {
				return err
			}
			printSummary(w, rows, budgets)
			if !report.AllValid(rows) {
				return errInvalidRuns
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.DurationSliceVar(&budgets, "budgets", []time.Duration{300 * time.Second, 600 * time.Second}, "Time budgets per run")
	f.StringVar(&dir, "instances", "instances", "Directory searched for "+instancePattern+" when no files are given")
	f.StringVarP(&output, "output", "o", "results/benchmark_results.xlsx", "Report file (.xlsx or .csv)")
	f.IntVar(&regret, "regret", opt.DefaultRegret, "k of regret-k insertion")
	f.IntVar(&parallel, "parallel", 1, "Runs in flight at once")
	return cmd
}

func findInstances(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, instancePattern))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no %s files in %s", instancePattern, dir)
	}
	sort.Strings(paths)
	return paths, nil
}

func budgetList(budgets []time.Duration) string {
	labels := make([]string, len(budgets))
	for i, b := range budgets {
		labels[i] = report.BudgetLabel(b)
	}
	return strings.Join(labels, ", ")
}

func printSummary(w io.Writer, rows []report.Row, budgets []time.Duration) {
	fmt.Fprintf(w, "\n%-8s %6s %6s %12s %12s\n", "budget", "runs", "valid", "improvement", "capacity")
	for _, s := range report.Summarize(rows, budgets) {
		fmt.Fprintf(w, "%-8s %6d %6d %11.2f%% %11.1f%%\n",
			report.BudgetLabel(s.Budget), s.Runs, s.Valid, s.AvgImprovement, s.AvgCapacityUtil)
	}
	for _, r := range rows {
		if r.Error != "" {
			fmt.Fprintf(w, "FAILED %s @ %s: %s\n", r.Instance, report.BudgetLabel(r.Budget), r.Error)
		}
	}
}
