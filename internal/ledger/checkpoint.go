package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/caretrail/caretrail/internal/domain"
)

// CheckpointBuilder folds a contiguous range of entry hashes into a signed
// Merkle checkpoint. Builds for the same tenant are mutually exclusive so
// checkpoint ranges can neither overlap nor leave gaps; builds for different
// tenants run in parallel.
type CheckpointBuilder struct {
	entries     domain.EntryRepository
	checkpoints domain.CheckpointRepository
	sealer      Sealer
	now         func() time.Time

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

// NewCheckpointBuilder creates a CheckpointBuilder. now falls back to
// time.Now when nil.
func NewCheckpointBuilder(entries domain.EntryRepository, checkpoints domain.CheckpointRepository, sealer Sealer, now func() time.Time) *CheckpointBuilder {
	if now == nil {
		now = time.Now
	}

	return &CheckpointBuilder{
		entries:     entries,
		checkpoints: checkpoints,
		sealer:      sealer,
		now:         now,
		tenants:     make(map[string]*sync.Mutex),
	}
}

// Build creates the checkpoint covering (previous checkpoint's toSequence,
// upToSequence]. Every entry in the declared range is already durably
// persisted when Build runs — the writer only triggers it after its insert
// succeeded.
func (b *CheckpointBuilder) Build(ctx context.Context, tenantID string, upToSequence int64) (*domain.Checkpoint, error) {
	lock := b.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	from := int64(1)
	last, err := b.checkpoints.LastByTenant(ctx, tenantID)
	switch {
	case err == nil:
		from = last.ToSequence + 1
	case errors.Is(err, domain.ErrNotFound):
		// First checkpoint for this tenant.
	default:
		return nil, fmt.Errorf("ledger.CheckpointBuilder.Build: read last checkpoint: %w", err)
	}

	if from > upToSequence {
		// The range is already covered; a concurrent build won the boundary.
		return nil, fmt.Errorf("ledger.CheckpointBuilder.Build: range [%d,%d] already checkpointed: %w", from, upToSequence, domain.ErrConflict)
	}

	entries, err := b.entries.Range(ctx, tenantID, from, upToSequence, 0)
	if err != nil {
		return nil, fmt.Errorf("ledger.CheckpointBuilder.Build: fetch range [%d,%d]: %w", from, upToSequence, err)
	}

	leaves := make([]string, len(entries))
	for i, e := range entries {
		leaves[i] = e.EntryHash
	}

	cp := &domain.Checkpoint{
		ID:           uuid.New(),
		TenantID:     tenantID,
		FromSequence: from,
		ToSequence:   upToSequence,
		EntryCount:   len(entries),
		MerkleRoot:   MerkleRoot(leaves),
		Timestamp:    b.now().UTC().Truncate(time.Microsecond),
	}

	canonical, err := Canonicalize(checkpointContent(cp))
	if err != nil {
		return nil, fmt.Errorf("ledger.CheckpointBuilder.Build: canonicalize: %w", err)
	}
	cp.Signature = b.sealer.Sign(canonical)

	if err := b.checkpoints.Insert(ctx, cp); err != nil {
		return nil, fmt.Errorf("ledger.CheckpointBuilder.Build: persist: %w", err)
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int64("from_sequence", cp.FromSequence).
		Int64("to_sequence", cp.ToSequence).
		Int("entry_count", cp.EntryCount).
		Msg("checkpoint created")

	return cp, nil
}

func (b *CheckpointBuilder) tenantLock(tenantID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	lock, ok := b.tenants[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		b.tenants[tenantID] = lock
	}
	return lock
}
