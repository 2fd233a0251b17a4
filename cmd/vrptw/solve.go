package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vrptw/internal/opt"
	"vrptw/internal/ortec"
)

// solutionFile is the JSON written by solve --out and read by validate.
type solutionFile struct {
	Instance string  `json:"instance"`
	Cost     int     `json:"cost"`
	Valid    bool    `json:"valid"`
	Routes   [][]int `json:"routes"`
}

func newSolveCmd(log logrus.FieldLogger) *cobra.Command {
	var (
		budget  time.Duration
		regret  int
		maxIter int
		out     string
		asJSON  bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "solve <instance>",
		Short: "Solve one ORTEC instance within a time budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if budget <= 0 {
				return fmt.Errorf("--budget must be positive")
			}
			inst, err := ortec.Load(args[0])
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"instance": inst.Name, "nodes": inst.Nodes(), "budget": budget}).Info("solving")
			res, err := opt.Solve(inst, budget, opt.Options{Regret: regret, MaxIterations: maxIter, Logger: log})
			if err != nil {
				return err
			}
			sol := solutionFile{Instance: inst.Name, Cost: res.FinalCost, Valid: res.Report.Valid, Routes: res.Solution.Sequences()}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(sol); err != nil {
					return err
				}
			} else {
				printResult(w, inst, res, verbose)
			}
			if out != "" {
				return writeSolution(out, sol)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.DurationVar(&budget, "budget", 10*time.Second, "Wall-clock budget for the whole solve")
	f.IntVar(&regret, "regret", opt.DefaultRegret, "k of regret-k insertion")
	f.IntVar(&maxIter, "max-iterations", 0, "Cap on local search scans (0 = none)")
	f.StringVar(&out, "out", "", "Write the solution as JSON to this file")
	f.BoolVar(&asJSON, "json", false, "Print the solution as JSON instead of a summary")
	f.BoolVarP(&verbose, "verbose", "v", false, "Print every route and the full validation report")
	return cmd
}

func printResult(w io.Writer, inst *opt.Instance, res opt.Result, verbose bool) {
	verdict := "YES"
	if !res.Report.Valid {
		verdict = "NO"
	}
	fmt.Fprintf(w, "Instance:     %s (%d nodes, %d vehicles, capacity %d)\n", inst.Name, inst.Nodes(), inst.Vehicles, inst.Capacity)
	fmt.Fprintf(w, "Initial cost: %d\n", res.InitialCost)
	fmt.Fprintf(w, "Final cost:   %d\n", res.FinalCost)
	fmt.Fprintf(w, "Improvement:  %.2f%%\n", res.Improvement())
	fmt.Fprintf(w, "Routes used:  %d/%d\n", res.RoutesUsed, inst.Vehicles)
	fmt.Fprintf(w, "Search:       %d iterations, %d relocates, %d swaps, stopped by %s\n",
		res.Metrics.Iterations, res.Metrics.Relocates, res.Metrics.Swaps, res.Metrics.StoppedBy)
	fmt.Fprintf(w, "Wall time:    %s\n", res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Valid:        %s\n", verdict)
	if verbose {
		for i, seq := range res.Solution.Sequences() {
			fmt.Fprintf(w, "  route %d: %v\n", i, seq)
		}
		fmt.Fprint(w, res.Report.Summary())
	}
}

func writeSolution(path string, sol solutionFile) error {
	data, err := json.MarshalIndent(sol, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write solution: %w", err)
	}
	return nil
}

func readSolution(path string) (solutionFile, error) {
	var sol solutionFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sol, fmt.Errorf("read solution: %w", err)
	}
	if err := json.Unmarshal(data, &sol); err != nil {
		return sol, fmt.Errorf("parse solution %s: %w", path, err)
	}
	return sol, nil
}
