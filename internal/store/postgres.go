package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"crewroute/internal/model"
	"crewroute/internal/sysinfo"
	"crewroute/internal/vrp"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          uuid PRIMARY KEY,
		seq         bigserial UNIQUE,
		instance    text NOT NULL,
		state       text NOT NULL,
		status      text,
		objective   bigint,
		error       text,
		plan        jsonb,
		host        jsonb,
		created_at  timestamptz NOT NULL DEFAULT now(),
		started_at  timestamptz,
		finished_at timestamptz
	)`,
	`CREATE INDEX IF NOT EXISTS runs_state_seq ON runs (state, seq)`,
	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id              uuid PRIMARY KEY,
		event_type      text NOT NULL,
		url             text NOT NULL,
		secret          text,
		payload         bytea NOT NULL,
		dedup_key       text NOT NULL,
		status          text NOT NULL,
		attempts        int NOT NULL DEFAULT 0,
		next_attempt_at timestamptz NOT NULL DEFAULT now(),
		last_error      text,
		response_code   int,
		latency_ms      int,
		delivered_at    timestamptz,
		created_at      timestamptz NOT NULL DEFAULT now(),
		updated_at      timestamptz NOT NULL DEFAULT now(),
		UNIQUE (event_type, url, dedup_key)
	)`,
	`CREATE INDEX IF NOT EXISTS webhook_deliveries_due ON webhook_deliveries (status, next_attempt_at)`,
}

// Migrate creates the tables if they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	plan, host, err := runBlobs(run)
	if err != nil {
		return model.Run{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, instance, state, status, objective, error, plan, host, created_at, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		run.ID, run.Instance, string(run.State), nullIfEmpty(run.Status), run.Objective, nullIfEmpty(run.Error),
		plan, host, run.CreatedAt, run.StartedAt, run.FinishedAt)
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (p *Postgres) SaveRun(ctx context.Context, run model.Run) error {
	plan, host, err := runBlobs(run)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET state=$2, status=$3, objective=$4, error=$5, plan=$6, host=$7, started_at=$8, finished_at=$9 WHERE id=$1`,
		run.ID, string(run.State), nullIfEmpty(run.Status), run.Objective, nullIfEmpty(run.Error), plan, host, run.StartedAt, run.FinishedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

const runColumns = `id::text, instance, state, COALESCE(status,''), objective, COALESCE(error,''), plan, host, created_at, started_at, finished_at`

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	r, err := scanRun(p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns pages in creation order. The cursor is the id of the last run of
// the previous page; plans are not loaded.
func (p *Postgres) ListRuns(ctx context.Context, state model.RunState, cursor string, limit int) ([]model.Run, string, error) {
	limit = pageSize(limit)
	after := int64(0)
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			return nil, "", fmt.Errorf("cursor %s: %w", cursor, ErrNotFound)
		}
		if err := p.db.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id=$1`, cursor).Scan(&after); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, "", fmt.Errorf("cursor %s: %w", cursor, ErrNotFound)
			}
			return nil, "", err
		}
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
		WHERE seq > $1 AND ($2 = '' OR state = $2) ORDER BY seq LIMIT $3`, after, string(state), limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows, false)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.NewString()
	dk := computeDedupKey(payload)
	err := p.db.QueryRowContext(ctx, `INSERT INTO webhook_deliveries (id, event_type, url, secret, payload, dedup_key, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')
		ON CONFLICT (event_type, url, dedup_key) DO UPDATE SET updated_at = webhook_deliveries.updated_at
		RETURNING id::text`, id, eventType, url, nullIfEmpty(secret), payload, dk).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`,
			id, responseCode, latencyMs)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, nullIfEmpty(lastError), next, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner, withPlan bool) (model.Run, error) {
	var (
		r                 model.Run
		state             string
		objective         sql.NullInt64
		plan, host        []byte
		started, finished sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.Instance, &state, &r.Status, &objective, &r.Error, &plan, &host, &r.CreatedAt, &started, &finished); err != nil {
		return r, err
	}
	r.State = model.RunState(state)
	if objective.Valid {
		r.Objective = &objective.Int64
	}
	if started.Valid {
		r.StartedAt = &started.Time
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	if withPlan && len(plan) > 0 {
		r.Plan = &vrp.Plan{}
		if err := json.Unmarshal(plan, r.Plan); err != nil {
			return r, fmt.Errorf("store: decode plan of run %s: %w", r.ID, err)
		}
	}
	if len(host) > 0 {
		r.Host = &sysinfo.Host{}
		if err := json.Unmarshal(host, r.Host); err != nil {
			return r, fmt.Errorf("store: decode host of run %s: %w", r.ID, err)
		}
	}
	return r, nil
}

// runBlobs encodes the jsonb columns; absent values stay SQL NULL.
func runBlobs(run model.Run) (plan, host any, err error) {
	if run.Plan != nil {
		b, err := json.Marshal(run.Plan)
		if err != nil {
			return nil, nil, fmt.Errorf("store: encode plan: %w", err)
		}
		plan = string(b)
	}
	if run.Host != nil {
		b, err := json.Marshal(run.Host)
		if err != nil {
			return nil, nil, fmt.Errorf("store: encode host: %w", err)
		}
		host = string(b)
	}
	return plan, host, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
