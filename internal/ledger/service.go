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

// DefaultVerifySampleLimit bounds the chain sample used by Summary.
const DefaultVerifySampleLimit = 100

// Alerter receives chain-integrity findings for out-of-band notification.
// Alert delivery is best effort and never fails the triggering read.
type Alerter interface {
	ChainIntegrity(ctx context.Context, tenantID string, report *domain.VerificationReport) error
}

// Config carries the ledger's tuning knobs. Zero values select the package
// defaults.
type Config struct {
	CheckpointInterval int64
	AppendRetries      int
	ExportPageSize     int
	VerifySampleLimit  int
	Now                func() time.Time
}

// Service is the ledger facade exposed to callers: it wires the writer,
// checkpoint builder, verifier, and exporter over shared storage and a
// signing key resolved once at construction.
type Service struct {
	writer      *Writer
	builder     *CheckpointBuilder
	verifier    *Verifier
	exporter    *Exporter
	entries     domain.EntryRepository
	checkpoints domain.CheckpointRepository
	alerts      Alerter
	sampleLimit int
}

// NewService creates a Service over the given repositories and signing key.
// alerts may be nil, in which case integrity findings are only logged.
func NewService(entries domain.EntryRepository, checkpoints domain.CheckpointRepository, signingKey []byte, cfg Config, alerts Alerter) *Service {
	sealer := NewSealer(signingKey)
	builder := NewCheckpointBuilder(entries, checkpoints, sealer, cfg.Now)

	sampleLimit := cfg.VerifySampleLimit
	if sampleLimit <= 0 {
		sampleLimit = DefaultVerifySampleLimit
	}

	return &Service{
		writer:      NewWriter(entries, builder, sealer, cfg.CheckpointInterval, cfg.AppendRetries, cfg.Now),
		builder:     builder,
		verifier:    NewVerifier(entries, sealer),
		exporter:    NewExporter(entries, checkpoints, sealer, cfg.ExportPageSize, cfg.Now),
		entries:     entries,
		checkpoints: checkpoints,
		alerts:      alerts,
		sampleLimit: sampleLimit,
	}
}

// LogEvent appends one audit event and returns its entry ID.
func (s *Service) LogEvent(ctx context.Context, in AppendInput) (uuid.UUID, error) {
	return s.writer.Append(ctx, in)
}

// VerifyChain verifies up to limit entries of a tenant's chain and reports
// every finding. Findings additionally fan out to the configured Alerter.
func (s *Service) VerifyChain(ctx context.Context, tenantID string, limit int) (*domain.VerificationReport, error) {
	report, err := s.verifier.VerifyChain(ctx, tenantID, limit)
	if err != nil {
		return nil, err
	}

	if !report.Valid {
		s.alert(ctx, tenantID, report)
	}

	return report, nil
}

// VerifyEntry verifies a single entry in isolation.
func (s *Service) VerifyEntry(ctx context.Context, entryID uuid.UUID) (*domain.EntryReport, error) {
	return s.verifier.VerifyEntry(ctx, entryID)
}

// ExportForArchive packages a sequence range for archival.
func (s *Service) ExportForArchive(ctx context.Context, tenantID string, from, to int64) (*domain.ExportPackage, error) {
	return s.exporter.Export(ctx, tenantID, from, to)
}

// Summary reports ledger statistics for a tenant, including a bounded
// integrity sample over the head of the chain.
func (s *Service) Summary(ctx context.Context, tenantID string) (*domain.AuditSummary, error) {
	total, err := s.entries.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ledger.Service.Summary: count entries: %w", err)
	}

	summary := &domain.AuditSummary{
		TenantID:     tenantID,
		TotalEntries: total,
	}

	last, err := s.entries.LastByTenant(ctx, tenantID)
	switch {
	case err == nil:
		summary.LastSequence = last.Sequence
		ts := last.Timestamp
		summary.LastTimestamp = &ts
	case errors.Is(err, domain.ErrNotFound):
		// Empty ledger.
	default:
		return nil, fmt.Errorf("ledger.Service.Summary: read chain head: %w", err)
	}

	report, err := s.VerifyChain(ctx, tenantID, s.sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("ledger.Service.Summary: %w", err)
	}
	summary.ChainIntegrity = domain.ChainIntegrity{
		Verified:       report.Valid,
		SampledEntries: report.TotalVerified,
		Issues:         len(report.Issues),
	}

	count, err := s.checkpoints.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ledger.Service.Summary: count checkpoints: %w", err)
	}
	summary.CheckpointCount = count

	return summary, nil
}

func (s *Service) alert(ctx context.Context, tenantID string, report *domain.VerificationReport) {
	log.Warn().
		Str("tenant_id", tenantID).
		Int("issues", len(report.Issues)).
		Int("total_verified", report.TotalVerified).
		Msg("chain integrity issues detected")

	if s.alerts == nil {
		return
	}

	if err := s.alerts.ChainIntegrity(ctx, tenantID, report); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("integrity alert publish failed")
	}
}
