package store

import (
    "context"
    "errors"
    "time"

    "vrptw/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Runs
    CreateRun(ctx context.Context, run model.Run) (model.Run, error)
    GetRun(ctx context.Context, tenantID, id string) (model.Run, error)
    ListRuns(ctx context.Context, tenantID string, status model.RunStatus, cursor string, limit int) (items []model.Run, nextCursor string, err error)
    UpdateRun(ctx context.Context, run model.Run) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status string, limit int) ([]WebhookDelivery, error)
}

var ErrNotFound = errors.New("not found")

const (
    defaultLimit = 100
    maxLimit     = 500
)

func clampLimit(limit int) int {
    if limit <= 0 || limit > maxLimit {
        return defaultLimit
    }
    return limit
}
