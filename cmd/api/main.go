package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/sirupsen/logrus"

    "vrptw/internal/api"
    "vrptw/internal/buildinfo"
    "vrptw/internal/config"
    "vrptw/internal/metrics"
)

func main() {
    log := logrus.New()
    log.SetFormatter(&logrus.JSONFormatter{})

    // .env is optional; real environment variables win.
    _ = godotenv.Load()

    cfg, err := loadConfig()
    if err != nil {
        log.WithError(err).Fatal("load config")
    }
    level, _ := logrus.ParseLevel(cfg.LogLevel)
    log.SetLevel(level)
    metrics.RegisterDefault()

    srv, err := api.NewServer(cfg, log)
    if err != nil {
        log.WithError(err).Fatal("failed to init server")
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if srv.Pub.Enabled() {
        worker := srv.NewWebhookWorker()
        go worker.Run(ctx)
    }

    httpSrv := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           srv.Handler(),
        ReadHeaderTimeout: 5 * time.Second,
    }
    go func() {
        log.WithFields(logrus.Fields{"addr": httpSrv.Addr, "version": buildinfo.String()}).Info("API listening")
        if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.WithError(err).Fatal("server error")
        }
    }()

    <-ctx.Done()
    log.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Solver.MaxBudget+10*time.Second)
    defer cancel()
    if err := httpSrv.Shutdown(shutdownCtx); err != nil {
        log.WithError(err).Warn("http shutdown")
    }
    if err := srv.Shutdown(shutdownCtx); err != nil {
        log.WithError(err).Warn("run shutdown")
    }
}

// loadConfig reads CONFIG_PATH when set, then applies environment overrides.
func loadConfig() (config.Config, error) {
    cfg := config.Default()
    if path := os.Getenv("CONFIG_PATH"); path != "" {
        c, err := config.Load(path)
        if err != nil {
            return cfg, err
        }
        cfg = c
    }
    if err := cfg.ApplyEnv(os.Getenv); err != nil {
        return cfg, err
    }
    return cfg, cfg.Validate()
}
