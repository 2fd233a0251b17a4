// Package report turns solver results into benchmark tables and writes them
// as XLSX workbooks or CSV files.
package report

import (
	"fmt"
	"slices"
	"time"

	"vrptw/internal/opt"
)

// Row is one (instance, budget) run.
type Row struct {
	Instance        string        `json:"instance"`
	Nodes           int           `json:"nodes"`
	Vehicles        int           `json:"vehicles"`
	Capacity        int           `json:"capacity"`
	Budget          time.Duration `json:"budget"`
	InitialCost     int           `json:"initialCost"`
	FinalCost       int           `json:"finalCost"`
	Improvement     float64       `json:"improvement"` // percent
	RoutesUsed      int           `json:"routesUsed"`
	CustomersServed int           `json:"customersServed"`
	CapacityUtil    float64       `json:"capacityUtil"` // percent
	WallTime        time.Duration `json:"wallTime"`
	Valid           bool          `json:"valid"`
	Violations      int           `json:"violations"`
	Unrouted        int           `json:"unrouted"`
	Duplicates      int           `json:"duplicates"`
	Error           string        `json:"error,omitempty"`
}

// NewRow summarises a finished solve. err is the error Solve returned, if
// any; a failed run keeps whatever partial data res carries.
func NewRow(inst *opt.Instance, budget time.Duration, res opt.Result, wall time.Duration, err error) Row {
	row := Row{
		Instance:    inst.Name,
		Nodes:       inst.Nodes(),
		Vehicles:    inst.Vehicles,
		Capacity:    inst.Capacity,
		Budget:      budget,
		InitialCost: res.InitialCost,
		FinalCost:   res.FinalCost,
		Improvement: res.Improvement(),
		RoutesUsed:  res.RoutesUsed,
		WallTime:    wall,
	}
	if res.Solution != nil {
		row.CustomersServed = res.Solution.NumCustomers()
		rep := res.Report
		row.Valid = rep.Valid
		row.Violations = rep.TotalViolations
		row.Unrouted = len(rep.Unrouted)
		row.Duplicates = len(rep.Duplicates)
		row.CapacityUtil = 100 * rep.CapacityUtilization
	} else {
		row.Unrouted = len(inst.Customers())
	}
	if err != nil {
		row.Valid = false
		row.Error = err.Error()
	}
	return row
}

// BudgetLabel renders a budget the way sheet names and logs show it.
func BudgetLabel(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int64(d/time.Second))
	}
	return d.String()
}

// Budgets returns the distinct budgets of rows in first-seen order.
func Budgets(rows []Row) []time.Duration {
	var out []time.Duration
	for _, r := range rows {
		if !slices.Contains(out, r.Budget) {
			out = append(out, r.Budget)
		}
	}
	return out
}

// BudgetSummary aggregates every run of one budget.
type BudgetSummary struct {
	Budget          time.Duration `json:"budget"`
	Runs            int           `json:"runs"`
	Valid           int           `json:"valid"`
	Violations      int           `json:"violations"`
	Unrouted        int           `json:"unrouted"`
	Duplicates      int           `json:"duplicates"`
	AvgCapacityUtil float64       `json:"avgCapacityUtil"`
	AvgImprovement  float64       `json:"avgImprovement"`
}

// Summarize groups rows by budget, in the order given.
func Summarize(rows []Row, budgets []time.Duration) []BudgetSummary {
	out := make([]BudgetSummary, 0, len(budgets))
	for _, b := range budgets {
		s := BudgetSummary{Budget: b}
		for _, r := range rows {
			if r.Budget != b {
				continue
			}
			s.Runs++
			if r.Valid {
				s.Valid++
			}
			s.Violations += r.Violations
			s.Unrouted += r.Unrouted
			s.Duplicates += r.Duplicates
			s.AvgCapacityUtil += r.CapacityUtil
			s.AvgImprovement += r.Improvement
		}
		if s.Runs > 0 {
			s.AvgCapacityUtil /= float64(s.Runs)
			s.AvgImprovement /= float64(s.Runs)
		}
		out = append(out, s)
	}
	return out
}

// AllValid reports whether every run produced a valid solution.
func AllValid(rows []Row) bool {
	for _, r := range rows {
		if !r.Valid {
			return false
		}
	}
	return true
}

// Instances counts distinct instance names.
func Instances(rows []Row) int {
	seen := map[string]struct{}{}
	for _, r := range rows {
		seen[r.Instance] = struct{}{}
	}
	return len(seen)
}
