package model

import "time"

// Wire types for the solver service.

// InstanceIn describes a problem inline. Either Travel (explicit matrix, node
// 0 is the depot) or Sites (coordinates, first site is the depot) must be set.
type InstanceIn struct {
    Name     string   `json:"name,omitempty"`
    Vehicles int      `json:"vehicles"`
    Capacity int      `json:"capacity"`
    Travel   [][]int  `json:"travel,omitempty"`
    Demand   []int    `json:"demand,omitempty"`
    Ready    []int    `json:"ready,omitempty"`
    Due      []int    `json:"due,omitempty"`
    Service  []int    `json:"service,omitempty"`
    Sites    []SiteIn `json:"sites,omitempty"`
}

type SiteIn struct {
    X       float64 `json:"x"`
    Y       float64 `json:"y"`
    Demand  int     `json:"demand,omitempty"`
    Ready   int     `json:"ready,omitempty"`
    Due     int     `json:"due,omitempty"`
    Service int     `json:"service,omitempty"`
}

// SolveRequest is the body of POST /v1/solve. Exactly one of Instance and
// ORTEC is set; ORTEC carries the text of an ORTEC instance file.
type SolveRequest struct {
    Instance      *InstanceIn `json:"instance,omitempty"`
    ORTEC         string      `json:"ortec,omitempty"`
    BudgetMs      int         `json:"budgetMs,omitempty"`
    Regret        int         `json:"regret,omitempty"`
    MaxIterations int         `json:"maxIterations,omitempty"`
}

type RunStatus string

const (
    RunQueued  RunStatus = "queued"
    RunRunning RunStatus = "running"
    RunDone    RunStatus = "done"
    RunFailed  RunStatus = "failed"
)

// Finished reports whether the run will not change again.
func (s RunStatus) Finished() bool { return s == RunDone || s == RunFailed }

type Run struct {
    ID         string     `json:"id"`
    TenantID   string     `json:"tenantId"`
    Status     RunStatus  `json:"status"`
    Instance   string     `json:"instance"`
    Nodes      int        `json:"nodes"`
    Vehicles   int        `json:"vehicles"`
    Capacity   int        `json:"capacity"`
    BudgetMs   int        `json:"budgetMs"`
    Regret     int        `json:"regret"`
    CreatedAt  time.Time  `json:"createdAt"`
    StartedAt  *time.Time `json:"startedAt,omitempty"`
    FinishedAt *time.Time `json:"finishedAt,omitempty"`
    Result     *RunResult `json:"result,omitempty"`
    Error      string     `json:"error,omitempty"`
}

// RunResult is the persisted outcome of a finished solve.
type RunResult struct {
    InitialCost  int     `json:"initialCost"`
    FinalCost    int     `json:"finalCost"`
    Improvement  float64 `json:"improvement"`
    RoutesUsed   int     `json:"routesUsed"`
    Customers    int     `json:"customers"`
    ElapsedMs    int64   `json:"elapsedMs"`
    Iterations   int     `json:"iterations"`
    Evaluations  int     `json:"evaluations"`
    StoppedBy    string  `json:"stoppedBy"`
    Valid        bool    `json:"valid"`
    Violations   int     `json:"violations"`
    Unrouted     []int   `json:"unrouted,omitempty"`
    Routes       [][]int `json:"routes"`
}

// RunEvent is pushed to run subscribers while a solve is in flight.
type RunEvent struct {
    Type      string    `json:"type"`
    RunID     string    `json:"runId"`
    Phase     string    `json:"phase,omitempty"`
    Iteration int       `json:"iteration,omitempty"`
    Cost      int       `json:"cost,omitempty"`
    Routes    int       `json:"routes,omitempty"`
    Status    RunStatus `json:"status,omitempty"`
    TS        time.Time `json:"ts"`
}

const (
    EventProgress  = "run.progress"
    EventCompleted = "run.completed"
    EventFailed    = "run.failed"
)
