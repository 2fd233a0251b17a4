package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"vrptw/internal/model"
	"vrptw/internal/opt"
	"vrptw/internal/ortec"
)

func (s *Server) validateSolveRequest(req *model.SolveRequest) error {
	if (req.Instance == nil) == (strings.TrimSpace(req.ORTEC) == "") {
		return errors.New("exactly one of instance and ortec must be set")
	}
	if req.BudgetMs < 0 {
		return fmt.Errorf("budgetMs must be >= 0")
	}
	if max := s.Cfg.Solver.MaxBudget; time.Duration(req.BudgetMs)*time.Millisecond > max {
		return fmt.Errorf("budgetMs must be <= %d", max.Milliseconds())
	}
	if req.Regret != 0 && req.Regret < 2 {
		return fmt.Errorf("regret must be >= 2")
	}
	if req.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	return nil
}

// budget is the request's time budget, or the configured default.
func (s *Server) budget(req *model.SolveRequest) time.Duration {
	if req.BudgetMs == 0 {
		return s.Cfg.Solver.DefaultBudget
	}
	return time.Duration(req.BudgetMs) * time.Millisecond
}

// instanceFrom builds and validates the problem carried by req.
func instanceFrom(req *model.SolveRequest) (*opt.Instance, error) {
	if req.Instance == nil {
		return ortec.Parse(strings.NewReader(req.ORTEC), "request")
	}
	in := req.Instance
	name := in.Name
	if name == "" {
		name = "request"
	}
	if len(in.Sites) > 0 {
		if in.Travel != nil || in.Demand != nil {
			return nil, errors.New("sites cannot be combined with travel or demand")
		}
		sites := make([]opt.Site, len(in.Sites))
		for i, st := range in.Sites {
			sites[i] = opt.Site{X: st.X, Y: st.Y, Demand: st.Demand, Ready: st.Ready, Due: st.Due, Service: st.Service}
		}
		inst := opt.NewEuclidean(name, in.Vehicles, in.Capacity, sites)
		return inst, inst.Validate()
	}
	n := len(in.Demand)
	inst := &opt.Instance{
		Name:     name,
		Vehicles: in.Vehicles,
		Capacity: in.Capacity,
		Travel:   in.Travel,
		Demand:   in.Demand,
		Ready:    orFill(in.Ready, n, 0),
		Due:      orFill(in.Due, n, opt.DefaultDue),
		Service:  orFill(in.Service, n, 0),
	}
	return inst, inst.Validate()
}

func orFill(vals []int, n, v int) []int {
	if vals != nil {
		return vals
	}
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
