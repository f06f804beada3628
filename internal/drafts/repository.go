package drafts

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotewizard/internal/platform/db"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const draftColumns = `id, COALESCE(session_id, ''), COALESCE(request_id, ''), payload, fingerprint, status, created_at, updated_at, submitted_at`

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the tables when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("drafts: migrate: %w", err)
	}
	return nil
}

// InsertDraft inserts d. A unique violation on session_id means a retried
// create; the draft already stored for that session is returned.
func (r *Repository) InsertDraft(ctx context.Context, d Draft) (Draft, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO drafts (id, session_id, request_id, payload, fingerprint, status, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8)
		RETURNING `+draftColumns,
		d.ID, d.SessionID, d.RequestID, d.Payload, d.Fingerprint, d.Status, d.CreatedAt, d.UpdatedAt)
	stored, err := scanDraft(row)
	if err == nil {
		return stored, nil
	}
	var pgErr *pgconn.PgError
	if d.SessionID != "" && errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		row := r.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM drafts WHERE session_id = $1`, d.SessionID)
		return scanDraft(row)
	}
	return Draft{}, fmt.Errorf("drafts: insert draft: %w", err)
}

// UpdateDraft locks the row so a concurrent submit cannot interleave.
func (r *Repository) UpdateDraft(ctx context.Context, u DraftUpdate) (Draft, error) {
	var updated Draft
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status Status
		err := tx.QueryRow(ctx, `SELECT status FROM drafts WHERE id = $1 FOR UPDATE`, u.ID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if status == StatusSubmitted {
			return ErrDraftSubmitted
		}
		row := tx.QueryRow(ctx, `
			UPDATE drafts
			SET payload = $2, fingerprint = $3, request_id = COALESCE(NULLIF($4, ''), request_id), updated_at = $5
			WHERE id = $1
			RETURNING `+draftColumns,
			u.ID, u.Payload, u.Fingerprint, u.RequestID, u.At)
		updated, err = scanDraft(row)
		return err
	})
	if err != nil {
		return Draft{}, err
	}
	return updated, nil
}

func (r *Repository) GetDraft(ctx context.Context, id string) (Draft, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id)
	return scanDraft(row)
}

func (r *Repository) MarkSubmitted(ctx context.Context, id string, at time.Time) (Draft, error) {
	var submitted Draft
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status Status
		err := tx.QueryRow(ctx, `SELECT status FROM drafts WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if status == StatusSubmitted {
			return ErrDraftSubmitted
		}
		row := tx.QueryRow(ctx, `
			UPDATE drafts SET status = $2, submitted_at = $3, updated_at = $3
			WHERE id = $1
			RETURNING `+draftColumns, id, StatusSubmitted, at)
		submitted, err = scanDraft(row)
		return err
	})
	if err != nil {
		return Draft{}, err
	}
	return submitted, nil
}

func (r *Repository) PurgeOpen(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		DELETE FROM drafts WHERE status = $1 AND updated_at < $2
		RETURNING id`, StatusOpen, before)
	if err != nil {
		return nil, fmt.Errorf("drafts: purge: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("drafts: purge: %w", err)
	}
	return ids, nil
}

func (r *Repository) PutRequest(ctx context.Context, req Request) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quote_requests (id, payload, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		req.ID, req.Payload, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("drafts: put request: %w", err)
	}
	return nil
}

func (r *Repository) GetRequest(ctx context.Context, id string) (Request, error) {
	var req Request
	err := r.pool.QueryRow(ctx, `SELECT id, payload, created_at FROM quote_requests WHERE id = $1`, id).
		Scan(&req.ID, &req.Payload, &req.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("drafts: get request: %w", err)
	}
	return req, nil
}

func scanDraft(row pgx.Row) (Draft, error) {
	var d Draft
	err := row.Scan(&d.ID, &d.SessionID, &d.RequestID, &d.Payload, &d.Fingerprint, &d.Status,
		&d.CreatedAt, &d.UpdatedAt, &d.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	return d, nil
}
