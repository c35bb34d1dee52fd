package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caretrail/caretrail/internal/domain"
)

const checkpointColumns = `id, tenant_id, from_sequence, to_sequence, entry_count,
	 merkle_root, ts, signature`

type CheckpointRepo struct {
	pool *pgxpool.Pool
}

func NewCheckpointRepo(pool *pgxpool.Pool) *CheckpointRepo {
	return &CheckpointRepo{pool: pool}
}

func (r *CheckpointRepo) Insert(ctx context.Context, cp *domain.Checkpoint) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_checkpoints (`+checkpointColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cp.ID, cp.TenantID, cp.FromSequence, cp.ToSequence,
		cp.EntryCount, cp.MerkleRoot, cp.Timestamp, cp.Signature,
	)
	if err != nil {
		if mapped := mapError(err); mapped != err {
			return fmt.Errorf("checkpointRepo.Insert: %w", mapped)
		}
		return fmt.Errorf("checkpointRepo.Insert: %w", err)
	}

	return nil
}

func (r *CheckpointRepo) LastByTenant(ctx context.Context, tenantID string) (*domain.Checkpoint, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+checkpointColumns+` FROM audit_checkpoints
		 WHERE tenant_id = $1
		 ORDER BY to_sequence DESC
		 LIMIT 1`, tenantID)

	cp, err := scanCheckpoint(row)
	if err != nil {
		return nil, fmt.Errorf("checkpointRepo.LastByTenant: %w", mapError(err))
	}
	return cp, nil
}

func (r *CheckpointRepo) Intersecting(ctx context.Context, tenantID string, from, to int64) ([]*domain.Checkpoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+checkpointColumns+` FROM audit_checkpoints
		 WHERE tenant_id = $1 AND from_sequence <= $3 AND to_sequence >= $2
		 ORDER BY from_sequence ASC`,
		tenantID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("checkpointRepo.Intersecting: %w", err)
	}
	defer rows.Close()

	checkpoints := make([]*domain.Checkpoint, 0)
	for rows.Next() {
		cp, scanErr := scanCheckpoint(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("checkpointRepo.Intersecting: scan: %w", scanErr)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checkpointRepo.Intersecting: rows: %w", err)
	}

	return checkpoints, nil
}

func (r *CheckpointRepo) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_checkpoints WHERE tenant_id = $1`, tenantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("checkpointRepo.CountByTenant: %w", err)
	}

	return count, nil
}

func scanCheckpoint(row pgx.Row) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := row.Scan(
		&cp.ID, &cp.TenantID, &cp.FromSequence, &cp.ToSequence,
		&cp.EntryCount, &cp.MerkleRoot, &cp.Timestamp, &cp.Signature,
	)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}
