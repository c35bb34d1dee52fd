package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caretrail/caretrail/internal/domain"
)

const entryColumns = `id, tenant_id, sequence, ts, actor, action, entity, entity_id,
	 details, request_id, ip_address, user_agent, prev_hash, entry_hash, signature`

type EntryRepo struct {
	pool *pgxpool.Pool
}

func NewEntryRepo(pool *pgxpool.Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

func (r *EntryRepo) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("entryRepo.Insert: marshal details: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_entries (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		entry.ID, entry.TenantID, entry.Sequence, entry.Timestamp,
		entry.Actor, entry.Action, entry.Entity, entry.EntityID,
		details, entry.RequestID, entry.IPAddress, entry.UserAgent,
		entry.PrevHash, entry.EntryHash, entry.Signature,
	)
	if err != nil {
		if mapped := mapError(err); mapped != err {
			return fmt.Errorf("entryRepo.Insert: %w", mapped)
		}
		return fmt.Errorf("entryRepo.Insert: %w", err)
	}

	return nil
}

func (r *EntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM audit_entries WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("entryRepo.GetByID: %w", mapError(err))
	}
	return entry, nil
}

func (r *EntryRepo) LastByTenant(ctx context.Context, tenantID string) (*domain.AuditEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM audit_entries
		 WHERE tenant_id = $1
		 ORDER BY sequence DESC
		 LIMIT 1`, tenantID)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("entryRepo.LastByTenant: %w", mapError(err))
	}
	return entry, nil
}

func (r *EntryRepo) Range(ctx context.Context, tenantID string, from, to int64, limit int) ([]*domain.AuditEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries
		 WHERE tenant_id = $1 AND sequence BETWEEN $2 AND $3
		 ORDER BY sequence ASC`
	args := []any{tenantID, from, to}

	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("entryRepo.Range: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows, "entryRepo.Range")
}

func (r *EntryRepo) ListAscending(ctx context.Context, tenantID string, limit int) ([]*domain.AuditEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries
		 WHERE tenant_id = $1
		 ORDER BY sequence ASC`
	args := []any{tenantID}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("entryRepo.ListAscending: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows, "entryRepo.ListAscending")
}

func (r *EntryRepo) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_entries WHERE tenant_id = $1`, tenantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("entryRepo.CountByTenant: %w", err)
	}

	return count, nil
}

func scanEntry(row pgx.Row) (*domain.AuditEntry, error) {
	var (
		e       domain.AuditEntry
		details []byte
	)

	err := row.Scan(
		&e.ID, &e.TenantID, &e.Sequence, &e.Timestamp,
		&e.Actor, &e.Action, &e.Entity, &e.EntityID,
		&details, &e.RequestID, &e.IPAddress, &e.UserAgent,
		&e.PrevHash, &e.EntryHash, &e.Signature,
	)
	if err != nil {
		return nil, err
	}

	// Decode with UseNumber so numeric literals survive the round trip
	// byte for byte; a float64 detour would re-render large integers in
	// exponent form and break hash recomputation.
	dec := json.NewDecoder(bytes.NewReader(details))
	dec.UseNumber()
	if err := dec.Decode(&e.Details); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}

	return &e, nil
}

func scanEntries(rows pgx.Rows, caller string) ([]*domain.AuditEntry, error) {
	entries := make([]*domain.AuditEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return entries, nil
}
