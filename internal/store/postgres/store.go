// Package postgres persists the ledger in PostgreSQL. Uniqueness of
// (tenant_id, sequence) is enforced by the schema; the ledger's optimistic
// append relies on that constraint surfacing as domain.ErrConflict. Entry
// and checkpoint rows are insert-only — immutability is enforced by revoking
// UPDATE/DELETE from the service role, outside this package.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caretrail/caretrail/internal/domain"
	"github.com/caretrail/caretrail/internal/secrets"
)

type Store struct {
	pool        *pgxpool.Pool
	entries     *EntryRepo
	checkpoints *CheckpointRepo
	secrets     *SecretRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:        pool,
		entries:     NewEntryRepo(pool),
		checkpoints: NewCheckpointRepo(pool),
		secrets:     NewSecretRepo(pool),
	}, nil
}

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the ledger tables if they do not exist, including the
// (tenant_id, sequence) uniqueness constraint the optimistic append relies
// on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres.Store.EnsureSchema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Entries() domain.EntryRepository          { return s.entries }
func (s *Store) Checkpoints() domain.CheckpointRepository { return s.checkpoints }
func (s *Store) Secrets() secrets.SecretRepository        { return s.secrets }

// mapError translates driver errors to domain sentinels: unique violations
// (SQLSTATE 23505) become ErrConflict, missing rows become ErrNotFound.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrConflict
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
