package api

import (
    "context"
    "encoding/json"
    "errors"
    "io"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/gorilla/websocket"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "vrptw/internal/auth"
    "vrptw/internal/metrics"
    "vrptw/internal/model"
    "vrptw/internal/store"
)

const maxBodyBytes = 32 << 20

// Handler returns the service's routes wrapped in request logging and metrics.
func (s *Server) Handler() http.Handler {
    mux := http.NewServeMux()

    // Solving
    mux.HandleFunc("/v1/solve", s.SolveHandler)
    mux.HandleFunc("/v1/runs", s.RunsHandler)
    mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /ws

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/debug", s.DebugJSON)

    // Docs
    mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
    mux.HandleFunc("/docs", s.DocsHandler)

    // Health and metrics
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    return instrument(s.Log, mux)
}

// SolveHandler accepts a problem and queues a run. JSON bodies carry a
// SolveRequest; text/plain bodies carry an ORTEC file with budgetMs, regret
// and maxIterations in the query string.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.Header().Set("Allow", http.MethodPost)
        writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
        return
    }
    p, ok := s.principal(w, r)
    if !ok { return }
    if !p.CanSolve() {
        writeProblem(w, http.StatusForbidden, "Forbidden", "solver or admin role required", r.URL.Path)
        return
    }
    if s.limited(w, r, p.Tenant) { return }

    req, err := decodeSolveRequest(w, r)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid request body", err.Error(), r.URL.Path)
        return
    }
    if err := s.validateSolveRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
        return
    }
    inst, err := instanceFrom(&req)
    if err != nil {
        writeProblem(w, http.StatusUnprocessableEntity, "Malformed instance", err.Error(), r.URL.Path)
        return
    }
    regret := req.Regret
    if regret == 0 { regret = s.Cfg.Solver.Regret }
    run, err := s.submit(r.Context(), p.Tenant, inst, runParams{budget: s.budget(&req), regret: regret, maxIterations: req.MaxIterations})
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
        return
    }
    w.Header().Set("Location", "/v1/runs/"+run.ID)
    writeJSON(w, http.StatusAccepted, run)
}

func decodeSolveRequest(w http.ResponseWriter, r *http.Request) (model.SolveRequest, error) {
    var req model.SolveRequest
    body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
    if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
        text, err := io.ReadAll(body)
        if err != nil { return req, err }
        req.ORTEC = string(text)
        q := r.URL.Query()
        for _, f := range []struct {
            key string
            dst *int
        }{{"budgetMs", &req.BudgetMs}, {"regret", &req.Regret}, {"maxIterations", &req.MaxIterations}} {
            if v := q.Get(f.key); v != "" {
                n, err := strconv.Atoi(v)
                if err != nil { return req, errors.New(f.key + " must be an integer") }
                *f.dst = n
            }
        }
        return req, nil
    }
    dec := json.NewDecoder(body)
    dec.DisallowUnknownFields()
    err := dec.Decode(&req)
    return req, err
}

// RunsHandler lists the caller's runs: GET /v1/runs?status=&cursor=&limit=
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p, ok := s.principal(w, r)
    if !ok { return }
    q := r.URL.Query()
    status := model.RunStatus(q.Get("status"))
    switch status {
    case "", model.RunQueued, model.RunRunning, model.RunDone, model.RunFailed:
    default:
        writeProblem(w, http.StatusBadRequest, "Invalid status", string(status), r.URL.Path)
        return
    }
    limit, _ := strconv.Atoi(q.Get("limit"))
    items, next, err := s.Store.ListRuns(r.Context(), p.Tenant, status, q.Get("cursor"), limit)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
        return
    }
    resp := map[string]any{"items": items}
    if next != "" { resp["nextCursor"] = next }
    writeJSON(w, http.StatusOK, resp)
}

// RunByIDHandler serves GET /v1/runs/{id} and GET /v1/runs/{id}/ws.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
    id, sub, _ := strings.Cut(rest, "/")
    if id == "" || (sub != "" && sub != "ws") {
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
        return
    }
    p, ok := s.principal(w, r)
    if !ok { return }
    if sub == "ws" {
        s.streamRun(w, r, p, id)
        return
    }
    run, err := s.Store.GetRun(r.Context(), p.Tenant, id)
    if errors.Is(err, store.ErrNotFound) {
        writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
        return
    }
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, run)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
    wsPingEvery  = 20 * time.Second
    wsWriteLimit = 5 * time.Second
)

// streamRun pushes the run's current state, then its events, over a
// WebSocket until the run finishes or the client goes away.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, p auth.Principal, id string) {
    // Subscribe before reading the run so no event between the two is lost.
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    run, err := s.Store.GetRun(r.Context(), p.Tenant, id)
    if errors.Is(err, store.ErrNotFound) {
        writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
        return
    }
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
        return
    }
    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        return
    }
    defer func() { _ = conn.Close() }()

    // Reader: only to notice the client closing.
    gone := make(chan struct{})
    go func() {
        defer close(gone)
        for {
            if _, _, err := conn.ReadMessage(); err != nil {
                return
            }
        }
    }()
    write := func(v any) error {
        _ = conn.SetWriteDeadline(time.Now().Add(wsWriteLimit))
        return conn.WriteJSON(v)
    }
    closeWith := func(text string) {
        msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, text)
        _ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteLimit))
    }

    if err := write(s.snapshot(run)); err != nil || run.Status.Finished() {
        closeWith(string(run.Status))
        return
    }

    ping := time.NewTicker(wsPingEvery)
    defer ping.Stop()
    for {
        select {
        case <-gone:
            return
        case <-s.ctx.Done():
            closeWith(errShuttingDown.Error())
            return
        case <-ping.C:
            if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteLimit)); err != nil {
                return
            }
            // A full subscriber buffer can drop the final event; the store
            // still has it.
            if cur, err := s.Store.GetRun(r.Context(), p.Tenant, id); err == nil && cur.Status.Finished() {
                _ = write(s.snapshot(cur))
                closeWith(string(cur.Status))
                return
            }
        case evt, ok := <-ch:
            if !ok {
                return
            }
            if err := write(evt); err != nil {
                return
            }
            if evt.Status.Finished() {
                closeWith(string(evt.Status))
                return
            }
        }
    }
}

// snapshot describes run as the event a subscriber would last have seen.
func (s *Server) snapshot(run model.Run) model.RunEvent {
    evt := model.RunEvent{Type: model.EventProgress, RunID: run.ID, Status: run.Status, TS: s.now().UTC()}
    switch run.Status {
    case model.RunDone:
        evt.Type = model.EventCompleted
    case model.RunFailed:
        evt.Type = model.EventFailed
    }
    if run.Result != nil {
        evt.Cost, evt.Routes = run.Result.FinalCost, run.Result.RoutesUsed
    }
    return evt
}

// WebhookDeliveriesHandler lists the tenant's notification deliveries (admin).
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p, ok := s.principal(w, r)
    if !ok { return }
    if p.Role != auth.RoleAdmin {
        writeProblem(w, http.StatusForbidden, "Forbidden", "admin role required", r.URL.Path)
        return
    }
    limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
    items, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, r.URL.Query().Get("status"), limit)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler checks the store and broker connections when they support it.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    type pinger interface{ Ping(ctx context.Context) error }
    ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
    defer cancel()
    for name, dep := range map[string]any{"store": s.Store, "broker": s.Broker} {
        if pg, ok := dep.(pinger); ok {
            if err := pg.Ping(ctx); err != nil {
                writeProblem(w, http.StatusServiceUnavailable, "Not Ready", name+": "+err.Error(), r.URL.Path)
                return
            }
        }
    }
    if s.ctx.Err() != nil {
        writeProblem(w, http.StatusServiceUnavailable, "Not Ready", errShuttingDown.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
