package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    _ "embed"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "vrptw/internal/model"
)

//go:embed schema.sql
var schema string

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        _ = db.Close()
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the tables the store needs. It is safe to run repeatedly.
func (p *Postgres) Migrate(ctx context.Context) error {
    for _, stmt := range splitStatements(schema) {
        if _, err := p.db.ExecContext(ctx, stmt); err != nil {
            return fmt.Errorf("migrate: %w", err)
        }
    }
    return nil
}

func splitStatements(sqlText string) []string {
    var out []string
    for _, s := range strings.Split(sqlText, ";") {
        if s = strings.TrimSpace(s); s != "" {
            out = append(out, s)
        }
    }
    return out
}

const runColumns = `id::text, tenant_id, status, instance, nodes, vehicles, capacity, budget_ms, regret, created_at, started_at, finished_at, result, COALESCE(error,'')`

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(sc rowScanner) (model.Run, error) {
    var r model.Run
    var status string
    var started, finished sql.NullTime
    var result []byte
    if err := sc.Scan(&r.ID, &r.TenantID, &status, &r.Instance, &r.Nodes, &r.Vehicles, &r.Capacity,
        &r.BudgetMs, &r.Regret, &r.CreatedAt, &started, &finished, &result, &r.Error); err != nil {
        return model.Run{}, err
    }
    r.Status = model.RunStatus(status)
    if started.Valid { t := started.Time; r.StartedAt = &t }
    if finished.Valid { t := finished.Time; r.FinishedAt = &t }
    if len(result) > 0 {
        var res model.RunResult
        if err := json.Unmarshal(result, &res); err != nil {
            return model.Run{}, fmt.Errorf("decode result of run %s: %w", r.ID, err)
        }
        r.Result = &res
    }
    return r, nil
}

func encodeResult(res *model.RunResult) (any, error) {
    if res == nil { return nil, nil }
    b, err := json.Marshal(res)
    if err != nil { return nil, err }
    return b, nil
}

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.CreatedAt.IsZero() { run.CreatedAt = time.Now().UTC() }
    if run.Status == "" { run.Status = model.RunQueued }
    res, err := encodeResult(run.Result)
    if err != nil { return model.Run{}, err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, tenant_id, status, instance, nodes, vehicles, capacity, budget_ms, regret, created_at, started_at, finished_at, result, error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
        run.ID, run.TenantID, string(run.Status), run.Instance, run.Nodes, run.Vehicles, run.Capacity,
        run.BudgetMs, run.Regret, run.CreatedAt, run.StartedAt, run.FinishedAt, res, nullIfEmpty(run.Error))
    if err != nil { return model.Run{}, err }
    return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
    if _, err := uuid.Parse(id); err != nil { return model.Run{}, ErrNotFound }
    r, err := scanRun(p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE tenant_id=$1 AND id=$2`, tenantID, id))
    if errors.Is(err, sql.ErrNoRows) { return model.Run{}, ErrNotFound }
    return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID string, status model.RunStatus, cursor string, limit int) ([]model.Run, string, error) {
    limit = clampLimit(limit)
    q := `SELECT ` + runColumns + ` FROM runs WHERE tenant_id=$1`
    args := []any{tenantID}
    if status != "" {
        args = append(args, string(status))
        q += fmt.Sprintf(` AND status=$%d`, len(args))
    }
    if cursor != "" {
        if _, err := uuid.Parse(cursor); err != nil { return nil, "", fmt.Errorf("bad cursor %q", cursor) }
        args = append(args, cursor)
        q += fmt.Sprintf(` AND (created_at, id) > (SELECT created_at, id FROM runs WHERE id=$%d)`, len(args))
    }
    args = append(args, limit+1)
    q += fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, len(args))
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Run{}
    for rows.Next() {
        r, err := scanRun(rows)
        if err != nil { return nil, "", err }
        out = append(out, r)
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    var next string
    if len(out) > limit {
        out = out[:limit]
        next = out[limit-1].ID
    }
    return out, next, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
    res, err := encodeResult(run.Result)
    if err != nil { return err }
    tag, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$3, started_at=$4, finished_at=$5, result=$6, error=$7 WHERE tenant_id=$1 AND id=$2`,
        run.TenantID, run.ID, string(run.Status), run.StartedAt, run.FinishedAt, res, nullIfEmpty(run.Error))
    if err != nil { return err }
    if n, _ := tag.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now(),$7)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

const deliveryColumns = `id::text, tenant_id, event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0), delivered_at`

func scanDelivery(sc rowScanner) (WebhookDelivery, error) {
    var d WebhookDelivery
    var delivered sql.NullTime
    if err := sc.Scan(&d.ID, &d.TenantID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts,
        &d.NextAttemptAt, &d.LastError, &d.ResponseCode, &d.LatencyMs, &delivered); err != nil {
        return WebhookDelivery{}, err
    }
    if delivered.Valid { t := delivered.Time; d.DeliveredAt = &t }
    return d, nil
}

func (p *Postgres) queryDeliveries(ctx context.Context, q string, args ...any) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        d, err := scanDelivery(rows)
        if err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    return p.queryDeliveries(ctx, `SELECT `+deliveryColumns+`
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, clampLimit(limit))
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if success {
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
        return err
    }
    if nextAttemptAt == nil { t := time.Now().Add(time.Minute); nextAttemptAt = &t }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
        id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
        id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status string, limit int) ([]WebhookDelivery, error) {
    if status != "" {
        return p.queryDeliveries(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE tenant_id=$1 AND status=$2 ORDER BY created_at LIMIT $3`, tenantID, status, clampLimit(limit))
    }
    return p.queryDeliveries(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE tenant_id=$1 ORDER BY created_at LIMIT $2`, tenantID, clampLimit(limit))
}

func computeDedupKey(payload []byte) string {
    // try to parse JSON and use id
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
