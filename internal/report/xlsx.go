package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	SheetValidation  = "Validation Summary"
	SheetPerformance = "Performance Summary"
)

// ResultsSheet names the per-budget sheet.
func ResultsSheet(budget time.Duration) string { return BudgetLabel(budget) + " Results" }

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// XLSX writes a workbook with a validation summary, a performance summary
// and one results sheet per budget.
type XLSX struct{}

func (XLSX) Name() string      { return "xlsx" }
func (XLSX) Extension() string { return ".xlsx" }

type styles struct {
	header, title, bold, bad, good int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}},
		{&s.bold, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&s.bad, &excelize.Style{Font: &excelize.Font{Bold: true, Color: "FF0000"}}},
		{&s.good, &excelize.Style{Font: &excelize.Font{Bold: true, Color: "00B050"}}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return s, fmt.Errorf("style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}

// sheet wraps cell writes on one sheet and keeps the first error.
type sheet struct {
	f    *excelize.File
	name string
	err  error
}

func (s *sheet) set(col, row int, v any) {
	s.setStyled(col, row, v, 0)
}

func (s *sheet) setStyled(col, row int, v any, style int) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		s.err = err
		return
	}
	if s.err = s.f.SetCellValue(s.name, cell, v); s.err != nil {
		return
	}
	if style != 0 {
		s.err = s.f.SetCellStyle(s.name, cell, cell, style)
	}
}

func (XLSX) Write(w io.Writer, rows []Row, budgets []time.Duration) error {
	f := excelize.NewFile()
	defer f.Close()
	st, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := f.SetSheetName("Sheet1", SheetValidation); err != nil {
		return err
	}
	summaries := Summarize(rows, budgets)
	if err := writeValidation(f, st, rows, summaries); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetPerformance); err != nil {
		return err
	}
	if err := writePerformance(f, st, rows, budgets, summaries); err != nil {
		return err
	}
	for _, b := range budgets {
		name := ResultsSheet(b)
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := writeResults(f, st, name, rows, b); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeValidation(f *excelize.File, st styles, rows []Row, sums []BudgetSummary) error {
	s := &sheet{f: f, name: SheetValidation}
	s.setStyled(1, 1, "VALIDATION SUMMARY", st.title)
	s.setStyled(1, 3, "Overall Validation Status", st.bold)
	s.set(1, 4, "All Solutions Valid:")
	if AllValid(rows) {
		s.setStyled(2, 4, "✓ YES", st.good)
	} else {
		s.setStyled(2, 4, "✗ NO", st.bad)
	}
	s.setStyled(1, 6, "Validation Metrics by Budget", st.bold)
	row := 7
	flag := func(n int) int {
		if n > 0 {
			return st.bad
		}
		return 0
	}
	for _, sum := range sums {
		s.setStyled(1, row, BudgetLabel(sum.Budget)+" Budget:", st.bold)
		s.set(1, row+1, "  Valid Solutions:")
		s.set(2, row+1, fmt.Sprintf("%d/%d", sum.Valid, sum.Runs))
		s.set(1, row+2, "  Total Violations:")
		s.setStyled(2, row+2, sum.Violations, flag(sum.Violations))
		s.set(1, row+3, "  Unrouted Customers:")
		s.setStyled(2, row+3, sum.Unrouted, flag(sum.Unrouted))
		s.set(1, row+4, "  Duplicate Customers:")
		s.setStyled(2, row+4, sum.Duplicates, flag(sum.Duplicates))
		s.set(1, row+5, "  Avg Capacity Utilization:")
		s.set(2, row+5, fmt.Sprintf("%.1f%%", sum.AvgCapacityUtil))
		row += 7
	}
	if s.err != nil {
		return s.err
	}
	return f.SetColWidth(SheetValidation, "A", "B", 28)
}

func writePerformance(f *excelize.File, st styles, rows []Row, budgets []time.Duration, sums []BudgetSummary) error {
	s := &sheet{f: f, name: SheetPerformance}
	labels := make([]string, len(budgets))
	for i, b := range budgets {
		labels[i] = BudgetLabel(b)
	}
	s.setStyled(1, 1, "BENCHMARK SUMMARY", st.title)
	s.set(1, 3, "Time Budgets:")
	s.set(2, 3, strings.Join(labels, ", "))
	s.set(1, 4, "Instances:")
	s.set(2, 4, Instances(rows))
	s.set(1, 5, "Total Runs:")
	s.set(2, 5, len(rows))
	s.setStyled(1, 7, "Average Improvement by Budget:", st.bold)
	for i, sum := range sums {
		s.set(1, 8+i, BudgetLabel(sum.Budget)+":")
		s.set(2, 8+i, fmt.Sprintf("%.2f%%", sum.AvgImprovement))
	}
	if s.err != nil {
		return s.err
	}
	return f.SetColWidth(SheetPerformance, "A", "B", 32)
}

func writeResults(f *excelize.File, st styles, name string, rows []Row, budget time.Duration) error {
	s := &sheet{f: f, name: name}
	for i, h := range Columns {
		s.setStyled(i+1, 1, h, st.header)
	}
	line := 2
	for _, r := range rows {
		if r.Budget != budget {
			continue
		}
		flag := func(bad bool) int {
			if bad {
				return st.bad
			}
			return 0
		}
		vals := []any{
			r.Instance, r.Nodes, r.Vehicles, r.Capacity, BudgetLabel(r.Budget),
			r.InitialCost, r.FinalCost, round(r.Improvement, 2),
			r.RoutesUsed, r.CustomersServed, round(r.CapacityUtil, 1),
			round(r.WallTime.Seconds(), 2),
		}
		for i, v := range vals {
			s.set(i+1, line, v)
		}
		col := len(vals) + 1
		s.setStyled(col, line, mark(r.Valid), flag(!r.Valid))
		s.setStyled(col+1, line, r.Violations, flag(r.Violations > 0))
		s.setStyled(col+2, line, r.Unrouted, flag(r.Unrouted > 0))
		s.setStyled(col+3, line, r.Duplicates, flag(r.Duplicates > 0))
		s.set(col+4, line, r.Error)
		line++
	}
	if s.err != nil {
		return s.err
	}
	last, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}
	return f.SetColWidth(name, "A", last, 15)
}
