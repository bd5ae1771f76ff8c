package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	branchmetrics "branchrate/internal/branch/metrics"
	"branchrate/internal/branch/models"
	"branchrate/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS branches (
	seq       BIGSERIAL,
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	type      TEXT NOT NULL CHECK (type IN ('parent', 'child')),
	parent_id TEXT NULL,
	rate      NUMERIC NOT NULL CHECK (rate >= 0)
);
CREATE INDEX IF NOT EXISTS branches_parent_id_idx ON branches (parent_id);
`

// pgPool is the subset of *pgxpool.Pool the store uses.
type pgPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres persists branches in PostgreSQL. parent_id carries no foreign key
// so orphaned rows can be imported and surfaced by the directory.
type Postgres struct {
	pool    pgPool
	metrics *branchmetrics.Metrics
}

func NewPostgres(pool pgPool, opts ...Option) *Postgres {
	o := applyOptions(opts)
	return &Postgres{pool: pool, metrics: o.metrics}
}

// EnsureSchema creates the branches table if it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure branches schema: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, b *models.Branch) error {
	var parentID *string
	if b.ParentID != nil {
		p := b.ParentID.String()
		parentID = &p
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO branches (id, name, type, parent_id, rate) VALUES ($1, $2, $3, $4, $5::numeric)`,
		b.ID.String(), b.Name, string(b.Type), parentID, b.Rate.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create branch: %w", err)
	}
	return nil
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM branches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count branches: %w", err)
	}
	return n, nil
}

// ListBranches returns every branch in insertion order.
func (s *Postgres) ListBranches(ctx context.Context) ([]models.Branch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, type, COALESCE(parent_id, ''), rate::text FROM branches ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var out []models.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return out, nil
}

func (s *Postgres) FindByID(ctx context.Context, id models.BranchID) (*models.Branch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, type, COALESCE(parent_id, ''), rate::text FROM branches WHERE id = $1`,
		id.String())
	b, err := scanBranch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// SetRate updates id and its whole subtree in one transaction and returns
// the updated ids in insertion order. UNION keeps the recursion finite on
// cyclic parent links.
func (s *Postgres) SetRate(ctx context.Context, id models.BranchID, rate models.Rate) (_ []models.BranchID, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin set rate: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM branches WHERE id = $1
			UNION
			SELECT b.id FROM branches b JOIN subtree s ON b.parent_id = s.id
		), updated AS (
			UPDATE branches SET rate = $2::numeric
			WHERE id IN (SELECT id FROM subtree)
			RETURNING id, seq
		)
		SELECT id FROM updated ORDER BY seq`,
		id.String(), rate.String())
	if err != nil {
		return nil, fmt.Errorf("set rate: %w", err)
	}
	var updated []models.BranchID
	for rows.Next() {
		var raw string
		if err = rows.Scan(&raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan updated id: %w", err)
		}
		updated = append(updated, models.BranchID(raw))
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("set rate: %w", err)
	}
	if len(updated) == 0 {
		s.metrics.IncrementRateWrite("not_found")
		err = sentinel.ErrNotFound
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit set rate: %w", err)
	}
	s.metrics.IncrementRateWrite("ok")
	return updated, nil
}

func (s *Postgres) WriteRate(ctx context.Context, id models.BranchID, rate models.Rate) error {
	_, err := s.SetRate(ctx, id, rate)
	return err
}

func scanBranch(row pgx.Row) (*models.Branch, error) {
	var id, name, branchType, parentID, rate string
	if err := row.Scan(&id, &name, &branchType, &parentID, &rate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan branch: %w", err)
	}
	r, err := models.ParseRate(rate)
	if err != nil {
		return nil, fmt.Errorf("branch %s: %w", id, err)
	}
	b := models.Branch{
		ID:   models.BranchID(id),
		Name: name,
		Type: models.BranchType(branchType),
		Rate: r,
	}
	if parentID != "" {
		b.ParentID = models.Ptr(models.BranchID(parentID))
	}
	return &b, nil
}
