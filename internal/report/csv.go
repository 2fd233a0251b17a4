package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// Columns is the header shared by every per-run table.
var Columns = []string{
	"Instance", "Nodes", "Vehicles", "Capacity", "Budget",
	"Initial Cost", "Final Cost", "Improvement %",
	"Routes Used", "Customers Served", "Capacity Util %",
	"Wall Time (s)", "Valid", "Violations", "Unrouted", "Duplicates", "Error",
}

// record renders r in Columns order.
func (r Row) record() []string {
	return []string{
		r.Instance,
		strconv.Itoa(r.Nodes),
		strconv.Itoa(r.Vehicles),
		strconv.Itoa(r.Capacity),
		BudgetLabel(r.Budget),
		strconv.Itoa(r.InitialCost),
		strconv.Itoa(r.FinalCost),
		strconv.FormatFloat(r.Improvement, 'f', 2, 64),
		strconv.Itoa(r.RoutesUsed),
		strconv.Itoa(r.CustomersServed),
		strconv.FormatFloat(r.CapacityUtil, 'f', 1, 64),
		strconv.FormatFloat(r.WallTime.Seconds(), 'f', 2, 64),
		strconv.FormatBool(r.Valid),
		strconv.Itoa(r.Violations),
		strconv.Itoa(r.Unrouted),
		strconv.Itoa(r.Duplicates),
		r.Error,
	}
}

// CSV writes one flat table of every run whose budget is listed.
type CSV struct{}

func (CSV) Name() string      { return "csv" }
func (CSV) Extension() string { return ".csv" }

func (CSV) Write(w io.Writer, rows []Row, budgets []time.Duration) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, b := range budgets {
		for _, r := range rows {
			if r.Budget != b {
				continue
			}
			if err := cw.Write(r.record()); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
