// Package api implements the HTTP surface of the VRPTW solver service.
package api

import (
    "context"
    "fmt"
    "io"
    "strings"
    "sync"
    "time"

    "github.com/sirupsen/logrus"

    "vrptw/internal/auth"
    "vrptw/internal/config"
    "vrptw/internal/store"
    "vrptw/internal/webhooks"
)

type Server struct {
    Cfg    config.Config
    Store  store.Store
    Pub    *webhooks.Publisher
    Auth   *auth.Verifier
    Broker EventBroker
    Log    logrus.FieldLogger

    limits  *tenantLimiter
    slots   chan struct{}
    runs    sync.WaitGroup
    ctx     context.Context
    cancel  context.CancelFunc
    closers []io.Closer
    now     func() time.Time
}

// NewServer wires the store and broker named by cfg. Without DATABASE_URL it
// uses the in-memory store; without REDIS_URL the in-process broker.
func NewServer(cfg config.Config, log logrus.FieldLogger) (*Server, error) {
    var s store.Store
    var closers []io.Closer
    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, fmt.Errorf("connect postgres: %w", err)
        }
        if cfg.DBMigrate {
            ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
            err := sp.Migrate(ctx)
            cancel()
            if err != nil {
                _ = sp.Close()
                return nil, err
            }
        }
        s = sp
        closers = append(closers, sp)
    }
    var broker EventBroker
    if cfg.RedisURL != "" {
        rb, err := NewRedisBroker(cfg.RedisURL)
        if err != nil {
            return nil, fmt.Errorf("redis broker: %w", err)
        }
        broker = rb
        closers = append(closers, rb)
    } else {
        broker = NewBroker()
    }
    srv := New(cfg, s, broker, log)
    srv.closers = closers
    return srv, nil
}

// New assembles a Server from ready-made parts.
func New(cfg config.Config, s store.Store, broker EventBroker, log logrus.FieldLogger) *Server {
    if log == nil {
        log = logrus.StandardLogger()
    }
    ctx, cancel := context.WithCancel(context.Background())
    return &Server{
        Cfg:    cfg,
        Store:  s,
        Pub:    webhooks.NewPublisher(s, cfg.Webhook.URL, cfg.Webhook.Secret),
        Auth:   auth.NewVerifier(cfg.Auth),
        Broker: broker,
        Log:    log,
        limits: newTenantLimiter(cfg.Rate.RPS, cfg.Rate.Burst),
        slots:  make(chan struct{}, cfg.Solver.MaxRuns),
        ctx:    ctx,
        cancel: cancel,
        now:    time.Now,
    }
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Cfg.Webhook.MaxAttempts, s.Cfg.Webhook.Timeout, s.Log)
}

// Shutdown stops queued runs from starting, waits for running ones to finish
// or ctx to expire, then releases connections.
func (s *Server) Shutdown(ctx context.Context) error {
    s.cancel()
    done := make(chan struct{})
    go func() { s.runs.Wait(); close(done) }()
    var err error
    select {
    case <-done:
    case <-ctx.Done():
        err = fmt.Errorf("runs still in flight: %w", ctx.Err())
    }
    for _, c := range s.closers {
        if cerr := c.Close(); cerr != nil && err == nil {
            err = cerr
        }
    }
    return err
}
