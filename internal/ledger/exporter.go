package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/caretrail/caretrail/internal/domain"
)

// DefaultExportPageSize bounds how many entries an export fetches per
// storage round trip.
const DefaultExportPageSize = 500

// Exporter packages a sequence range plus its covering checkpoints into a
// signed archival bundle. It reads in pages so large ranges never
// materialize wholesale, and it never mutates the ledger.
type Exporter struct {
	entries     domain.EntryRepository
	checkpoints domain.CheckpointRepository
	sealer      Sealer
	pageSize    int
	now         func() time.Time
}

// NewExporter creates an Exporter. pageSize falls back to
// DefaultExportPageSize when non-positive; now falls back to time.Now.
func NewExporter(entries domain.EntryRepository, checkpoints domain.CheckpointRepository, sealer Sealer, pageSize int, now func() time.Time) *Exporter {
	if pageSize <= 0 {
		pageSize = DefaultExportPageSize
	}
	if now == nil {
		now = time.Now
	}

	return &Exporter{
		entries:     entries,
		checkpoints: checkpoints,
		sealer:      sealer,
		pageSize:    pageSize,
		now:         now,
	}
}

// Export returns the entries with from <= sequence <= to plus every
// checkpoint intersecting that range. to <= 0 means "through the end of the
// chain". A missing or empty range yields an explicit zero-entry package;
// entries are never fabricated or backfilled. The export signature covers
// {tenantId, fromSequence, toSequence, entryCount}, where toSequence is the
// last sequence actually exported.
func (ex *Exporter) Export(ctx context.Context, tenantID string, from, to int64) (*domain.ExportPackage, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("ledger.Exporter.Export: tenantId is required")
	}
	if from < 1 {
		from = 1
	}
	if to <= 0 {
		to = math.MaxInt64
	}

	entries, err := ex.fetchRange(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ledger.Exporter.Export: %w", err)
	}

	pkg := &domain.ExportPackage{
		TenantID:     tenantID,
		ExportedAt:   ex.now().UTC().Truncate(time.Microsecond),
		FromSequence: from,
		ToSequence:   from,
		EntryCount:   len(entries),
		Entries:      entries,
		Checkpoints:  []*domain.Checkpoint{},
	}
	if len(entries) > 0 {
		pkg.ToSequence = entries[len(entries)-1].Sequence
	}

	checkpoints, err := ex.checkpoints.Intersecting(ctx, tenantID, pkg.FromSequence, pkg.ToSequence)
	if err != nil {
		return nil, fmt.Errorf("ledger.Exporter.Export: fetch checkpoints: %w", err)
	}
	if checkpoints != nil {
		pkg.Checkpoints = checkpoints
	}

	canonical, err := Canonicalize(exportBoundary(pkg))
	if err != nil {
		return nil, fmt.Errorf("ledger.Exporter.Export: canonicalize boundary: %w", err)
	}
	pkg.ExportSignature = ex.sealer.Sign(canonical)

	return pkg, nil
}

// fetchRange pages through [from, to] in ascending order, advancing the
// cursor past the last sequence seen.
func (ex *Exporter) fetchRange(ctx context.Context, tenantID string, from, to int64) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry

	cursor := from
	for cursor <= to {
		page, err := ex.entries.Range(ctx, tenantID, cursor, to, ex.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page at sequence %d: %w", cursor, err)
		}
		if len(page) == 0 {
			break
		}

		entries = append(entries, page...)
		if len(page) < ex.pageSize {
			break
		}
		cursor = page[len(page)-1].Sequence + 1
	}

	return entries, nil
}
