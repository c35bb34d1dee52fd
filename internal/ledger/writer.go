package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/caretrail/caretrail/internal/domain"
)

const (
	// DefaultCheckpointInterval is the sequence cadence at which a signed
	// Merkle checkpoint is built.
	DefaultCheckpointInterval = 100
	// DefaultAppendRetries bounds how many times an append re-reads the
	// chain head after losing a sequence race.
	DefaultAppendRetries = 5
)

// AppendInput carries the caller-supplied content of one audit event.
// Optional fields are pointers: a nil value is recorded as an explicit null.
type AppendInput struct {
	TenantID  string
	Actor     string
	Action    string
	Entity    string
	EntityID  *string
	Details   map[string]any
	RequestID *string
	IPAddress *string
	UserAgent *string
}

func (in *AppendInput) validate() error {
	switch {
	case in.TenantID == "":
		return errors.New("tenantId is required")
	case in.Actor == "":
		return errors.New("actor is required")
	case in.Action == "":
		return errors.New("action is required")
	case in.Entity == "":
		return errors.New("entity is required")
	}
	return nil
}

// Writer appends sequenced, chained, sealed entries to the ledger. It owns
// sequence-number and prevHash assignment. Concurrency control is
// optimistic: the storage uniqueness constraint on (tenant, sequence)
// rejects the loser of a race, which re-reads the chain head and retries up
// to a bounded number of attempts. Appends for different tenants never
// contend.
type Writer struct {
	entries     domain.EntryRepository
	checkpoints *CheckpointBuilder
	sealer      Sealer
	interval    int64
	retries     int
	now         func() time.Time
}

// NewWriter creates a Writer. checkpointInterval and retries fall back to
// the package defaults when non-positive; now falls back to time.Now.
func NewWriter(entries domain.EntryRepository, checkpoints *CheckpointBuilder, sealer Sealer, checkpointInterval int64, retries int, now func() time.Time) *Writer {
	if checkpointInterval <= 0 {
		checkpointInterval = DefaultCheckpointInterval
	}
	if retries <= 0 {
		retries = DefaultAppendRetries
	}
	if now == nil {
		now = time.Now
	}

	return &Writer{
		entries:     entries,
		checkpoints: checkpoints,
		sealer:      sealer,
		interval:    checkpointInterval,
		retries:     retries,
		now:         now,
	}
}

// Append records one audit event and returns its entry ID. Every failure of
// the chain-head read, sealing, or persist propagates to the caller: an
// append that appears to succeed but did not persist is a compliance
// violation and must never occur.
func (w *Writer) Append(ctx context.Context, in AppendInput) (uuid.UUID, error) {
	if err := in.validate(); err != nil {
		return uuid.Nil, fmt.Errorf("ledger.Writer.Append: %w", err)
	}

	for attempt := 0; attempt <= w.retries; attempt++ {
		entry, err := w.buildEntry(ctx, in)
		if err != nil {
			return uuid.Nil, fmt.Errorf("ledger.Writer.Append: %w", err)
		}

		err = w.entries.Insert(ctx, entry)
		if errors.Is(err, domain.ErrConflict) {
			// Lost the sequence race; re-read the new chain head and retry.
			log.Debug().
				Str("tenant_id", in.TenantID).
				Int64("sequence", entry.Sequence).
				Int("attempt", attempt+1).
				Msg("append sequence conflict, retrying")
			continue
		}
		if err != nil {
			return uuid.Nil, fmt.Errorf("ledger.Writer.Append: persist entry: %w", err)
		}

		if entry.Sequence%w.interval == 0 {
			w.buildCheckpoint(ctx, in.TenantID, entry.Sequence)
		}

		return entry.ID, nil
	}

	return uuid.Nil, fmt.Errorf("ledger.Writer.Append: tenant %s: %w", in.TenantID, domain.ErrConcurrencyExhausted)
}

// buildEntry reads the tenant's chain head and assembles the next sealed
// entry: sequence = last+1 (or 1), prevHash = last entryHash (or the
// zero-hash sentinel).
func (w *Writer) buildEntry(ctx context.Context, in AppendInput) (*domain.AuditEntry, error) {
	var (
		sequence int64 = 1
		prevHash       = ZeroHash
	)

	last, err := w.entries.LastByTenant(ctx, in.TenantID)
	switch {
	case err == nil:
		sequence = last.Sequence + 1
		prevHash = last.EntryHash
	case errors.Is(err, domain.ErrNotFound):
		// First entry for this tenant.
	default:
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		TenantID:  in.TenantID,
		Sequence:  sequence,
		Timestamp: w.now().UTC().Truncate(time.Microsecond),
		Actor:     in.Actor,
		Action:    in.Action,
		Entity:    in.Entity,
		EntityID:  in.EntityID,
		Details:   in.Details,
		RequestID: in.RequestID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		PrevHash:  prevHash,
	}

	content, err := entryContent(entry)
	if err != nil {
		return nil, fmt.Errorf("canonicalize entry: %w", err)
	}

	canonical, err := Canonicalize(content)
	if err != nil {
		return nil, fmt.Errorf("canonicalize entry: %w", err)
	}

	entry.EntryHash = w.sealer.Hash(canonical)
	entry.Signature = w.sealer.SealEntry(canonical, entry.EntryHash)

	return entry, nil
}

// buildCheckpoint runs the synchronous checkpoint build at an interval
// boundary. A build failure does not fail the append — the entry is already
// durable, and the next boundary's build covers the widened range — but it
// is always logged.
func (w *Writer) buildCheckpoint(ctx context.Context, tenantID string, upTo int64) {
	if w.checkpoints == nil {
		return
	}

	if _, err := w.checkpoints.Build(ctx, tenantID, upTo); err != nil {
		log.Error().
			Err(err).
			Str("tenant_id", tenantID).
			Int64("up_to_sequence", upTo).
			Msg("checkpoint build failed")
	}
}
