package api

import (
    "context"
    "errors"
    "time"

    "github.com/sirupsen/logrus"
    "golang.org/x/time/rate"

    "vrptw/internal/metrics"
    "vrptw/internal/model"
    "vrptw/internal/opt"
)

// progressInterval throttles improve-phase events; local search reports
// every applied move.
const progressInterval = 250 * time.Millisecond

var errShuttingDown = errors.New("server shutting down")

type runParams struct {
    budget        time.Duration
    regret        int
    maxIterations int
}

// submit records a queued run and starts it in the background.
func (s *Server) submit(ctx context.Context, tenant string, inst *opt.Instance, p runParams) (model.Run, error) {
    run, err := s.Store.CreateRun(ctx, model.Run{
        TenantID:  tenant,
        Status:    model.RunQueued,
        Instance:  inst.Name,
        Nodes:     inst.Nodes(),
        Vehicles:  inst.Vehicles,
        Capacity:  inst.Capacity,
        BudgetMs:  int(p.budget.Milliseconds()),
        Regret:    p.regret,
        CreatedAt: s.now().UTC(),
    })
    if err != nil {
        return model.Run{}, err
    }
    s.runs.Add(1)
    go func() {
        defer s.runs.Done()
        s.execute(run, inst, p)
    }()
    return run, nil
}

func (s *Server) execute(run model.Run, inst *opt.Instance, p runParams) {
    log := s.Log.WithFields(logrus.Fields{"run": run.ID, "tenant": run.TenantID, "instance": run.Instance})
    select {
    case s.slots <- struct{}{}:
        defer func() { <-s.slots }()
    case <-s.ctx.Done():
        s.finish(log, run, opt.Result{}, errShuttingDown)
        return
    }
    metrics.RunsInFlight.Inc()
    defer metrics.RunsInFlight.Dec()

    started := s.now().UTC()
    run.Status = model.RunRunning
    run.StartedAt = &started
    s.save(log, run)
    s.Broker.Publish(run.ID, model.RunEvent{Type: model.EventProgress, RunID: run.ID, Status: run.Status, TS: started})

    throttle := rate.Sometimes{Interval: progressInterval}
    progress := func(pr opt.Progress) {
        evt := model.RunEvent{
            Type: model.EventProgress, RunID: run.ID, Phase: string(pr.Phase), Iteration: pr.Iteration,
            Cost: pr.Cost, Routes: pr.Routes, Status: model.RunRunning, TS: s.now().UTC(),
        }
        if pr.Phase != opt.PhaseImprove {
            s.Broker.Publish(run.ID, evt)
            return
        }
        throttle.Do(func() { s.Broker.Publish(run.ID, evt) })
    }
    log.WithField("budget", p.budget).Info("run started")
    res, err := opt.Solve(inst, p.budget, opt.Options{
        Regret:        p.regret,
        MaxIterations: p.maxIterations,
        Logger:        log,
        Progress:      progress,
    })
    s.finish(log, run, res, err)
}

// finish persists the outcome and notifies subscribers and the webhook.
func (s *Server) finish(log logrus.FieldLogger, run model.Run, res opt.Result, err error) {
    now := s.now().UTC()
    run.FinishedAt = &now
    run.Status = model.RunDone
    if err != nil {
        run.Status = model.RunFailed
        run.Error = err.Error()
    }
    if res.Solution != nil {
        run.Result = resultOf(res)
    }
    s.save(log, run)

    elapsed := 0.0
    if run.StartedAt != nil {
        elapsed = now.Sub(*run.StartedAt).Seconds()
    }
    metrics.ObserveRun(string(run.Status), elapsed, res.Improvement())

    evt := model.RunEvent{Type: model.EventCompleted, RunID: run.ID, Status: run.Status, TS: now}
    if run.Result != nil {
        evt.Cost, evt.Routes = run.Result.FinalCost, run.Result.RoutesUsed
    }
    if run.Status == model.RunFailed {
        evt.Type = model.EventFailed
        log.WithError(err).Warn("run failed")
    } else {
        log.WithFields(logrus.Fields{"cost": evt.Cost, "routes": evt.Routes, "valid": run.Result.Valid}).Info("run done")
    }
    s.Broker.Publish(run.ID, evt)

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if _, err := s.Pub.Emit(ctx, run.TenantID, evt.Type, run); err != nil {
        log.WithError(err).Warn("enqueue webhook")
    }
}

func (s *Server) save(log logrus.FieldLogger, run model.Run) {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := s.Store.UpdateRun(ctx, run); err != nil {
        log.WithError(err).Error("persist run")
    }
}

func resultOf(res opt.Result) *model.RunResult {
    rep := res.Report
    return &model.RunResult{
        InitialCost: res.InitialCost,
        FinalCost:   res.FinalCost,
        Improvement: res.Improvement(),
        RoutesUsed:  res.RoutesUsed,
        Customers:   rep.Routed,
        ElapsedMs:   res.Elapsed.Milliseconds(),
        Iterations:  res.Metrics.Iterations,
        Evaluations: res.Metrics.Evaluations,
        StoppedBy:   string(res.Metrics.StoppedBy),
        Valid:       rep.Valid,
        Violations:  rep.TotalViolations,
        Unrouted:    rep.Unrouted,
        Routes:      res.Solution.Sequences(),
    }
}
