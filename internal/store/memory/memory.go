// Package memory implements the ledger repositories over in-process maps.
// It enforces the same uniqueness semantics as the Postgres store — Insert
// of a claimed (tenant, sequence) returns domain.ErrConflict — so the
// writer's optimistic retry path behaves identically in tests and dev mode.
//
// Returned records are shared, not copied: callers must treat them as
// immutable, exactly as they would rows owned by a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caretrail/caretrail/internal/domain"
	"github.com/caretrail/caretrail/internal/secrets"
)

// Store holds all in-memory repositories.
type Store struct {
	entries     *EntryRepo
	checkpoints *CheckpointRepo
	secrets     *SecretRepo
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entries:     &EntryRepo{byID: make(map[uuid.UUID]*domain.AuditEntry), byTenant: make(map[string][]*domain.AuditEntry)},
		checkpoints: &CheckpointRepo{byTenant: make(map[string][]*domain.Checkpoint)},
		secrets:     &SecretRepo{byName: make(map[string]*secrets.Secret)},
	}
}

func (s *Store) Entries() domain.EntryRepository         { return s.entries }
func (s *Store) Checkpoints() domain.CheckpointRepository { return s.checkpoints }
func (s *Store) Secrets() secrets.SecretRepository       { return s.secrets }

// EntryRepo is the in-memory domain.EntryRepository.
type EntryRepo struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*domain.AuditEntry
	byTenant map[string][]*domain.AuditEntry // sorted by Sequence ascending
}

func (r *EntryRepo) Insert(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[entry.ID]; ok {
		return domain.ErrConflict
	}

	chain := r.byTenant[entry.TenantID]
	idx := sort.Search(len(chain), func(i int) bool { return chain[i].Sequence >= entry.Sequence })
	if idx < len(chain) && chain[idx].Sequence == entry.Sequence {
		return domain.ErrConflict
	}

	chain = append(chain, nil)
	copy(chain[idx+1:], chain[idx:])
	chain[idx] = entry

	r.byTenant[entry.TenantID] = chain
	r.byID[entry.ID] = entry
	return nil
}

func (r *EntryRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entry, nil
}

func (r *EntryRepo) LastByTenant(_ context.Context, tenantID string) (*domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := r.byTenant[tenantID]
	if len(chain) == 0 {
		return nil, domain.ErrNotFound
	}
	return chain[len(chain)-1], nil
}

func (r *EntryRepo) Range(_ context.Context, tenantID string, from, to int64, limit int) ([]*domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := r.byTenant[tenantID]
	start := sort.Search(len(chain), func(i int) bool { return chain[i].Sequence >= from })

	out := make([]*domain.AuditEntry, 0)
	for i := start; i < len(chain) && chain[i].Sequence <= to; i++ {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, chain[i])
	}
	return out, nil
}

func (r *EntryRepo) ListAscending(_ context.Context, tenantID string, limit int) ([]*domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := r.byTenant[tenantID]
	n := len(chain)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]*domain.AuditEntry, n)
	copy(out, chain[:n])
	return out, nil
}

func (r *EntryRepo) CountByTenant(_ context.Context, tenantID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.byTenant[tenantID])), nil
}

// CheckpointRepo is the in-memory domain.CheckpointRepository.
type CheckpointRepo struct {
	mu       sync.RWMutex
	byTenant map[string][]*domain.Checkpoint // sorted by FromSequence ascending
}

func (r *CheckpointRepo) Insert(_ context.Context, cp *domain.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cps := r.byTenant[cp.TenantID]
	idx := sort.Search(len(cps), func(i int) bool { return cps[i].FromSequence >= cp.FromSequence })
	if idx < len(cps) && cps[idx].FromSequence == cp.FromSequence {
		return domain.ErrConflict
	}

	cps = append(cps, nil)
	copy(cps[idx+1:], cps[idx:])
	cps[idx] = cp

	r.byTenant[cp.TenantID] = cps
	return nil
}

func (r *CheckpointRepo) LastByTenant(_ context.Context, tenantID string) (*domain.Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cps := r.byTenant[tenantID]
	if len(cps) == 0 {
		return nil, domain.ErrNotFound
	}
	return cps[len(cps)-1], nil
}

func (r *CheckpointRepo) Intersecting(_ context.Context, tenantID string, from, to int64) ([]*domain.Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Checkpoint, 0)
	for _, cp := range r.byTenant[tenantID] {
		if cp.FromSequence <= to && cp.ToSequence >= from {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *CheckpointRepo) CountByTenant(_ context.Context, tenantID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.byTenant[tenantID])), nil
}

// SecretRepo is the in-memory secrets.SecretRepository.
type SecretRepo struct {
	mu     sync.RWMutex
	byName map[string]*secrets.Secret
}

func (r *SecretRepo) Create(_ context.Context, s *secrets.Secret) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[s.Name]; ok {
		return domain.ErrConflict
	}

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.UpdatedAt = s.CreatedAt

	r.byName[s.Name] = s
	return nil
}

func (r *SecretRepo) GetByName(_ context.Context, name string) (*secrets.Secret, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byName[name]
	if !ok {
		return nil, secrets.ErrSecretNotFound
	}
	return s, nil
}

func (r *SecretRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; !ok {
		return secrets.ErrSecretNotFound
	}
	delete(r.byName, name)
	return nil
}
