package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores keys in the client_storage table, one namespace per
// browser session. A zero ttl keeps rows until ClearAll.
type Postgres struct {
	pool      *pgxpool.Pool
	namespace string
	ttl       time.Duration
}

type PostgresFactory struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewPostgresFactory(pool *pgxpool.Pool, ttl time.Duration) *PostgresFactory {
	return &PostgresFactory{pool: pool, ttl: ttl}
}

func (f *PostgresFactory) Scoped(namespace string) Store {
	return &Postgres{pool: f.pool, namespace: namespace, ttl: f.ttl}
}

func (p *Postgres) Read(ctx context.Context, key string) (string, bool) {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM client_storage
		 WHERE namespace = $1 AND key = $2
		   AND (expires_at IS NULL OR expires_at > now())`,
		p.namespace, key).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", false
	}
	if err != nil {
		slog.Warn("token store read failed", "component", "tokenstore", "backend", "postgres", "key", key, "error", err)
		return "", false
	}
	return value, true
}

func (p *Postgres) Write(ctx context.Context, key string, value string) error {
	var expiresAt *time.Time
	if p.ttl > 0 {
		t := time.Now().UTC().Add(p.ttl)
		expiresAt = &t
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO client_storage (namespace, key, value, updated_at, expires_at)
		 VALUES ($1, $2, $3, now(), $4)
		 ON CONFLICT (namespace, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now(), expires_at = EXCLUDED.expires_at`,
		p.namespace, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM client_storage WHERE namespace = $1 AND key = $2`, p.namespace, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) DeleteIf(ctx context.Context, key string, expected string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM client_storage WHERE namespace = $1 AND key = $2 AND value = $3`,
		p.namespace, key, expected)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) ClearAll(ctx context.Context) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM client_storage WHERE namespace = $1 AND key = ANY($2)`, p.namespace, Keys)
	if err != nil {
		return fmt.Errorf("clear namespace: %w", err)
	}
	return nil
}

func (f *PostgresFactory) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := f.pool.Exec(ctx, `DELETE FROM client_storage WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired client storage: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StartCleanupTicker deletes expired rows every interval until ctx is done.
func (f *PostgresFactory) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := f.CleanExpired(ctx)
			if err != nil {
				slog.Error("client storage cleanup failed", "component", "tokenstore", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("client storage cleanup", "component", "tokenstore", "removed", removed)
			}
		}
	}
}
