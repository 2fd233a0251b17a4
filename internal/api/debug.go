package api

import (
    "net/http"
    "time"

    "vrptw/internal/auth"
    "vrptw/internal/buildinfo"
)

// DebugJSON reports build stamps and the effective, secret-free configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    p, ok := s.principal(w, r)
    if !ok { return }
    if p.Role != auth.RoleAdmin {
        writeProblem(w, http.StatusForbidden, "Forbidden", "admin role required", r.URL.Path)
        return
    }
    c := s.Cfg
    writeJSON(w, http.StatusOK, map[string]any{
        "build": buildinfo.Info(),
        "time":  s.now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "port":            c.Port,
            "logLevel":        c.LogLevel,
            "authMode":        c.Auth.Mode,
            "rateRps":         c.Rate.RPS,
            "rateBurst":       c.Rate.Burst,
            "webhookEnabled":  c.Webhook.URL != "",
            "webhookAttempts": c.Webhook.MaxAttempts,
            "defaultBudget":   c.Solver.DefaultBudget.String(),
            "maxBudget":       c.Solver.MaxBudget.String(),
            "regret":          c.Solver.Regret,
            "maxRuns":         c.Solver.MaxRuns,
            "hasDatabaseUrl":  c.DatabaseURL != "",
            "hasRedisUrl":     c.RedisURL != "",
        },
        "runsInFlight": len(s.slots),
    })
}
