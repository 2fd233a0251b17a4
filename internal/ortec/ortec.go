// Package ortec reads VRPTW instances in the ORTEC/TSPLIB-style text format:
// "KEY : value" headers followed by *_SECTION blocks and an optional EOF.
//
// Recognised headers are NAME, VEHICLES, CAPACITY and DIMENSION. Recognised
// sections are EDGE_WEIGHT_SECTION (a full row-major matrix),
// NODE_COORD_SECTION ("id x y"), DEMAND_SECTION ("id demand"),
// SERVICE_TIME_SECTION ("id duration") and TIME_WINDOW_SECTION
// ("id ready due"). Lines starting with '#' are comments. Unknown headers and
// sections are skipped.
//
// Node ids are sorted and renumbered from 0. The depot is id 1 when present,
// otherwise the lowest id. Without a usable EDGE_WEIGHT_SECTION the travel
// matrix is the rounded Euclidean distance between coordinates. Nodes without
// a window get [0, opt.DefaultDue].
package ortec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"vrptw/internal/opt"
)

type point struct{ x, y float64 }

type window struct{ ready, due int }

type parser struct {
	name     string
	headers  map[string]int
	section  string
	weights  []int
	coords   map[int]point
	demands  map[int]int
	services map[int]int
	windows  map[int]window
	lineNo   int
}

func malformed(field, format string, args ...any) error {
	return &opt.MalformedInstanceError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Load reads and parses the instance file at path. The instance name is the
// NAME header or, failing that, the file's base name without extension.
func Load(path string) (*opt.Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instance: %w", err)
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	inst, err := Parse(f, name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return inst, nil
}

// Parse reads an instance from r. defaultName is used when the text has no
// NAME header. Structural problems are reported as *opt.MalformedInstanceError.
func Parse(r io.Reader, defaultName string) (*opt.Instance, error) {
	p := &parser{
		name:     defaultName,
		headers:  map[string]int{},
		coords:   map[int]point{},
		demands:  map[int]int{},
		services: map[int]int{},
		windows:  map[int]window{},
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		p.lineNo++
		done, err := p.line(strings.TrimSpace(sc.Text()))
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read instance: %w", err)
	}
	return p.build()
}

func (p *parser) line(ln string) (bool, error) {
	if ln == "" || strings.HasPrefix(ln, "#") {
		return false, nil
	}
	upper := strings.ToUpper(ln)
	if upper == "EOF" {
		return true, nil
	}
	if strings.HasSuffix(upper, "_SECTION") || strings.HasSuffix(upper, "_SECTION:") {
		p.section = strings.TrimSuffix(upper, ":")
		return false, nil
	}
	if key, val, ok := strings.Cut(ln, ":"); ok && !isNumeric(strings.Fields(ln)[0]) {
		p.header(strings.ToUpper(strings.TrimSpace(key)), strings.TrimSpace(val))
		p.section = ""
		return false, nil
	}
	return false, p.row(strings.Fields(ln))
}

func isNumeric(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func (p *parser) header(key, val string) {
	switch key {
	case "NAME":
		if val != "" {
			p.name = val
		}
	case "VEHICLES", "CAPACITY", "DIMENSION":
		if n, err := strconv.Atoi(val); err == nil {
			p.headers[key] = n
		}
	}
}

func (p *parser) ints(toks []string, want int) ([]int, error) {
	if len(toks) < want {
		return nil, malformed(strings.ToLower(p.section), "line %d: want %d fields, got %d", p.lineNo, want, len(toks))
	}
	out := make([]int, want)
	for i := 0; i < want; i++ {
		n, err := strconv.Atoi(toks[i])
		if err != nil {
			return nil, malformed(strings.ToLower(p.section), "line %d: %q is not an integer", p.lineNo, toks[i])
		}
		out[i] = n
	}
	return out, nil
}

func (p *parser) row(toks []string) error {
	switch p.section {
	case "EDGE_WEIGHT_SECTION":
		vals, err := p.ints(toks, len(toks))
		if err != nil {
			return err
		}
		p.weights = append(p.weights, vals...)
	case "NODE_COORD_SECTION":
		if len(toks) < 3 {
			return malformed("node_coord_section", "line %d: want id x y", p.lineNo)
		}
		id, err := strconv.Atoi(toks[0])
		if err != nil {
			return malformed("node_coord_section", "line %d: bad id %q", p.lineNo, toks[0])
		}
		x, errX := strconv.ParseFloat(toks[1], 64)
		y, errY := strconv.ParseFloat(toks[2], 64)
		if errX != nil || errY != nil {
			return malformed("node_coord_section", "line %d: bad coordinates", p.lineNo)
		}
		p.coords[id] = point{x, y}
	case "DEMAND_SECTION":
		vals, err := p.ints(toks, 2)
		if err != nil {
			return err
		}
		p.demands[vals[0]] = vals[1]
	case "SERVICE_TIME_SECTION":
		vals, err := p.ints(toks, 2)
		if err != nil {
			return err
		}
		p.services[vals[0]] = vals[1]
	case "TIME_WINDOW_SECTION":
		vals, err := p.ints(toks, 3)
		if err != nil {
			return err
		}
		p.windows[vals[0]] = window{vals[1], vals[2]}
	}
	return nil
}

func (p *parser) build() (*opt.Instance, error) {
	for _, key := range []string{"VEHICLES", "CAPACITY"} {
		if _, ok := p.headers[key]; !ok {
			return nil, malformed(strings.ToLower(key), "missing %s header", key)
		}
	}
	idSet := map[int]struct{}{}
	for id := range p.coords {
		idSet[id] = struct{}{}
	}
	for id := range p.demands {
		idSet[id] = struct{}{}
	}
	for id := range p.windows {
		idSet[id] = struct{}{}
	}
	if len(idSet) == 0 {
		return nil, malformed("nodes", "no node data")
	}
	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	n := len(ids)

	inst := &opt.Instance{
		Name:     p.name,
		Vehicles: p.headers["VEHICLES"],
		Capacity: p.headers["CAPACITY"],
		Demand:   make([]int, n),
		Ready:    make([]int, n),
		Due:      make([]int, n),
		Service:  make([]int, n),
		X:        make([]float64, n),
		Y:        make([]float64, n),
	}
	depotID := ids[0]
	if _, ok := idSet[1]; ok {
		depotID = 1
	}
	for i, id := range ids {
		if id == depotID {
			inst.Depot = i
		}
		pt := p.coords[id]
		inst.X[i], inst.Y[i] = pt.x, pt.y
		inst.Demand[i] = p.demands[id]
		inst.Service[i] = p.services[id]
		inst.Ready[i], inst.Due[i] = 0, opt.DefaultDue
		if w, ok := p.windows[id]; ok {
			inst.Ready[i], inst.Due[i] = w.ready, w.due
		}
	}

	dim := p.headers["DIMENSION"]
	if dim == n && len(p.weights) >= n*n {
		inst.Travel = make([][]int, n)
		for i := range inst.Travel {
			inst.Travel[i] = slices.Clone(p.weights[i*n : (i+1)*n])
		}
	} else {
		inst.Travel = opt.EuclideanMatrix(inst.X, inst.Y)
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}
