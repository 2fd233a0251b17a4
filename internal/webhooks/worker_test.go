package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrptw/internal/model"
	"vrptw/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var (
		verified bool
		gotType  string
		gotBody  map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok, err := VerifyRequest(r, "secret")
		assert.NoError(t, err)
		verified = ok
		gotType = r.Header.Get("X-Event-Type")
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	pub := NewPublisher(rs, srv.URL, "secret")
	id, err := pub.Emit(context.Background(), "t1", model.EventCompleted, map[string]any{"runId": "r1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	w := NewWorker(rs, 3, time.Second, quiet())
	w.HTTP = srv.Client()
	w.processOnce(context.Background())

	assert.True(t, verified)
	assert.Equal(t, model.EventCompleted, gotType)
	assert.Equal(t, "t1", gotBody["tenantId"])
	require.Len(t, rs.marks, 1)
	assert.True(t, rs.marks[0].Success)
	assert.Equal(t, 200, rs.marks[0].Code)
}

func TestWorkerProcessOnce_RetryThenFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	_, err := rs.EnqueueWebhook(context.Background(), "t1", model.EventFailed, srv.URL, "", []byte(`{}`))
	require.NoError(t, err)

	w := NewWorker(rs, 2, time.Second, quiet())
	w.HTTP = srv.Client()
	w.processOnce(context.Background())
	require.Len(t, rs.marks, 1)
	assert.False(t, rs.marks[0].Success)
	assert.Equal(t, "status 500", rs.marks[0].LastErr)
	assert.Empty(t, rs.fails)

	// the retry is not due yet; hand the second attempt to deliver directly
	due, err := rs.FetchDueWebhookDeliveries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	w.deliver(context.Background(), store.WebhookDelivery{ID: rs.marks[0].ID, EventType: model.EventFailed, URL: srv.URL, Attempts: 1})
	require.Len(t, rs.fails, 1)
	assert.Equal(t, 500, rs.fails[0].Code)
}

func TestPublisherDisabled(t *testing.T) {
	rs := store.NewMemory()
	id, err := NewPublisher(rs, "", "").Emit(context.Background(), "t1", model.EventCompleted, nil)
	require.NoError(t, err)
	assert.Empty(t, id)
	var nilPub *Publisher
	assert.False(t, nilPub.Enabled())
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(-1))
	assert.Equal(t, 8*time.Second, nextBackoff(3))
	assert.Equal(t, 1024*time.Second, nextBackoff(40))
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"id":"evt"}`)
	sig := SignHMAC("k", body)
	assert.True(t, VerifyHMAC("k", body, sig))
	assert.False(t, VerifyHMAC("other", body, sig))
	assert.False(t, VerifyHMAC("k", body, "zz"))
}
