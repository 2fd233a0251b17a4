package api

import (
    "errors"
    "net/http"
    "strings"

    "vrptw/internal/auth"
)

const defaultTenant = "t_demo"

var errUnauthenticated = errors.New("bearer token required")

// getPrincipal extracts tenant and role from the request.
// - If Authorization: Bearer is present, uses the configured verifier.
// - In dev mode, falls back to X-Tenant-Id / X-Role headers.
func (s *Server) getPrincipal(r *http.Request) (auth.Principal, error) {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
        return s.Auth.Verify(strings.TrimSpace(authz[len("Bearer "):]))
    }
    if s.Auth.Mode != "dev" {
        return auth.Principal{}, errUnauthenticated
    }
    tenant := r.Header.Get("X-Tenant-Id")
    role := strings.ToLower(r.Header.Get("X-Role"))
    if tenant == "" {
        tenant = defaultTenant
    }
    if role == "" {
        role = auth.RoleAdmin
    }
    return auth.Principal{Tenant: tenant, Role: role}, nil
}

// principal writes a 401 and returns false when the caller is not known.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
    p, err := s.getPrincipal(r)
    if err != nil {
        w.Header().Set("WWW-Authenticate", `Bearer realm="vrptw"`)
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return p, false
    }
    return p, true
}
