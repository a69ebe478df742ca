package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tutorhub-portal/internal/model"
)

// PostgresSink stores entries in the audit_entries table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Append(ctx context.Context, e Entry) error {
	occurredAt, err := parseTime(e.OccurredAt)
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_entries (action, occurred_at, scope, user_id, email, user_type)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Action, occurredAt, e.Scope, e.UserID, e.Email, e.UserType)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

func (s *PostgresSink) Query(ctx context.Context, q Query) ([]Entry, model.Meta, error) {
	q.normalize()

	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if action := strings.TrimSpace(q.Action); action != "" {
		where = append(where, fmt.Sprintf("lower(action) = lower($%d)", argIdx))
		args = append(args, action)
		argIdx++
	}
	if q.UserID != 0 {
		where = append(where, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, q.UserID)
		argIdx++
	}
	if email := strings.TrimSpace(q.Email); email != "" {
		where = append(where, fmt.Sprintf("lower(email) = lower($%d)", argIdx))
		args = append(args, email)
		argIdx++
	}
	if from := strings.TrimSpace(q.From); from != "" {
		where = append(where, fmt.Sprintf("occurred_at >= $%d::timestamptz", argIdx))
		args = append(args, from)
		argIdx++
	}
	if to := strings.TrimSpace(q.To); to != "" {
		where = append(where, fmt.Sprintf("occurred_at <= $%d::timestamptz", argIdx))
		args = append(args, to)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM audit_entries %s", whereClause), args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}

	dataQuery := fmt.Sprintf(
		`SELECT action, occurred_at, scope, user_id, email, user_type
		 FROM audit_entries %s
		 ORDER BY occurred_at DESC
		 LIMIT $%d OFFSET $%d`, whereClause, argIdx, argIdx+1)
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var occurredAt time.Time
		if err := rows.Scan(&e.Action, &occurredAt, &e.Scope, &e.UserID, &e.Email, &e.UserType); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan audit entry: %w", err)
		}
		e.OccurredAt = occurredAt.UTC().Format(time.RFC3339Nano)
		entries = append(entries, e)
	}

	return entries, pageMeta(q, total), rows.Err()
}
