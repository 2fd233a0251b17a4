package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"vrptw/internal/store"
)

// Publisher queues run notifications for the worker to deliver.
type Publisher struct {
	Store  store.Store
	URL    string
	Secret string
}

func NewPublisher(s store.Store, url, secret string) *Publisher {
	return &Publisher{Store: s, URL: url, Secret: secret}
}

// Enabled reports whether a target URL is configured.
func (p *Publisher) Enabled() bool { return p != nil && p.URL != "" }

// Emit enqueues one delivery of data under eventType. It is a no-op when no
// URL is configured.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) (string, error) {
	if !p.Enabled() {
		return "", nil
	}
	payload := map[string]any{
		"id":       "evt_" + uuid.New().String(),
		"type":     eventType,
		"tenantId": tenantID,
		"data":     data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return p.Store.EnqueueWebhook(ctx, tenantID, eventType, p.URL, p.Secret, body)
}
