package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caretrail/caretrail/internal/secrets"
)

type SecretRepo struct {
	pool *pgxpool.Pool
}

func NewSecretRepo(pool *pgxpool.Pool) *SecretRepo {
	return &SecretRepo{pool: pool}
}

func (r *SecretRepo) Create(ctx context.Context, s *secrets.Secret) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ledger_secrets (id, name, value, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Name, s.Value, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("secretRepo.Create: %w", mapError(err))
	}

	return nil
}

func (r *SecretRepo) GetByName(ctx context.Context, name string) (*secrets.Secret, error) {
	var s secrets.Secret
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, value, created_at, updated_at
		 FROM ledger_secrets WHERE name = $1`, name,
	).Scan(&s.ID, &s.Name, &s.Value, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("secretRepo.GetByName: %q: %w", name, secrets.ErrSecretNotFound)
		}
		return nil, fmt.Errorf("secretRepo.GetByName: %w", err)
	}

	return &s, nil
}

func (r *SecretRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM ledger_secrets WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("secretRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("secretRepo.Delete: %q: %w", name, secrets.ErrSecretNotFound)
	}

	return nil
}
