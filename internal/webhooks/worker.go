package webhooks

import (
    "bytes"
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/sirupsen/logrus"

    "vrptw/internal/metrics"
    "vrptw/internal/store"
)

const batchSize = 50

type Worker struct {
    Store       store.Store
    HTTP        *http.Client
    MaxAttempts int
    Interval    time.Duration
    Log         logrus.FieldLogger
    now         func() time.Time
}

func NewWorker(s store.Store, maxAttempts int, timeout time.Duration, log logrus.FieldLogger) *Worker {
    if maxAttempts < 1 { maxAttempts = 1 }
    if log == nil { log = logrus.StandardLogger() }
    return &Worker{
        Store: s, HTTP: &http.Client{Timeout: timeout}, MaxAttempts: maxAttempts,
        Interval: time.Second, Log: log.WithField("component", "webhooks"), now: time.Now,
    }
}

// Run polls for due deliveries until ctx is done.
func (w *Worker) Run(ctx context.Context) {
    ticker := time.NewTicker(w.Interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            w.processOnce(ctx)
        }
    }
}

func (w *Worker) processOnce(ctx context.Context) {
    ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchDueWebhookDeliveries(ctx, batchSize)
    if err != nil {
        w.Log.WithError(err).Warn("fetch due deliveries")
        return
    }
    for _, it := range items {
        w.deliver(ctx, it)
    }
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
    log := w.Log.WithFields(logrus.Fields{"delivery": it.ID, "event": it.EventType, "attempt": it.Attempts + 1})
    start := w.now()
    code, err := w.post(ctx, it)
    latency := int(w.now().Sub(start).Milliseconds())
    success := err == nil && code >= 200 && code < 300

    status := "ok"
    if !success { status = "error" }
    metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
    metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))

    lastErr := ""
    switch {
    case err != nil:
        lastErr = err.Error()
    case !success:
        lastErr = "status " + strconv.Itoa(code)
    }
    if !success && it.Attempts+1 >= w.MaxAttempts {
        log.WithField("error", lastErr).Error("delivery failed permanently")
        if err := w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency); err != nil {
            log.WithError(err).Warn("record failed delivery")
        }
        return
    }
    next := w.now().Add(nextBackoff(it.Attempts))
    if !success {
        log.WithFields(logrus.Fields{"error": lastErr, "next": next}).Warn("delivery failed; will retry")
    }
    if err := w.Store.MarkWebhookDelivery(ctx, it.ID, success, &next, lastErr, code, latency); err != nil {
        log.WithError(err).Warn("record delivery")
    }
}

func (w *Worker) post(ctx context.Context, it store.WebhookDelivery) (int, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
    if err != nil { return 0, err }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Event-Type", it.EventType)
    if it.Secret != "" {
        req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload))
    }
    resp, err := w.HTTP.Do(req)
    if err != nil { return 0, err }
    _ = resp.Body.Close()
    return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 10 { attempts = 10 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}
