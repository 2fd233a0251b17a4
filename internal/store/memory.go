package store

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    "vrptw/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu    sync.Mutex
    runs  map[string]model.Run // id -> run
    byTen map[string][]string  // tenant -> run ids, oldest first
    // Webhooks queue state
    deliveries         map[string]*WebhookDelivery // id -> delivery state
    deliveryOrder      []string
    deliveriesByTenant map[string][]string // tenant -> delivery ids
    now                func() time.Time
}

func NewMemory() *Memory {
    return &Memory{
        runs:               map[string]model.Run{},
        byTen:              map[string][]string{},
        deliveries:         map[string]*WebhookDelivery{},
        deliveriesByTenant: map[string][]string{},
        now:                time.Now,
    }
}

func cloneRun(r model.Run) model.Run {
    if r.Result != nil {
        res := *r.Result
        r.Result = &res
    }
    return r
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if run.ID == "" {
        run.ID = uuid.New().String()
    }
    if _, dup := m.runs[run.ID]; dup {
        return model.Run{}, fmt.Errorf("run %s already exists", run.ID)
    }
    if run.CreatedAt.IsZero() {
        run.CreatedAt = m.now().UTC()
    }
    if run.Status == "" {
        run.Status = model.RunQueued
    }
    m.runs[run.ID] = cloneRun(run)
    m.byTen[run.TenantID] = append(m.byTen[run.TenantID], run.ID)
    return run, nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[id]
    if !ok || r.TenantID != tenantID {
        return model.Run{}, ErrNotFound
    }
    return cloneRun(r), nil
}

func (m *Memory) ListRuns(ctx context.Context, tenantID string, status model.RunStatus, cursor string, limit int) ([]model.Run, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.byTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    limit = clampLimit(limit)
    out := []model.Run{}
    var next string
    for _, id := range ids[start:] {
        r := m.runs[id]
        if status != "" && r.Status != status {
            continue
        }
        if len(out) == limit {
            next = out[len(out)-1].ID
            break
        }
        out = append(out, cloneRun(r))
    }
    return out, next, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.Run) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cur, ok := m.runs[run.ID]
    if !ok || cur.TenantID != run.TenantID {
        return ErrNotFound
    }
    m.runs[run.ID] = cloneRun(run)
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    m.deliveries[id] = &WebhookDelivery{
        ID: id, TenantID: tenantID, EventType: eventType, URL: url, Secret: secret,
        Payload: payload, Status: DeliveryPending, NextAttemptAt: m.now(),
    }
    m.deliveryOrder = append(m.deliveryOrder, id)
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := m.now()
    out := []WebhookDelivery{}
    for _, id := range m.deliveryOrder {
        d := m.deliveries[id]
        if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
            out = append(out, *d)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = DeliveryDelivered
        now := m.now()
        d.DeliveredAt = &now
        return nil
    }
    d.Status = DeliveryRetry
    d.LastError = lastError
    if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = m.now().Add(time.Minute) }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.Status = DeliveryFailed
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status string, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    limit = clampLimit(limit)
    out := []WebhookDelivery{}
    for _, id := range m.deliveriesByTenant[tenantID] {
        d := m.deliveries[id]
        if status == "" || d.Status == status {
            out = append(out, *d)
            if len(out) == limit { break }
        }
    }
    return out, nil
}
