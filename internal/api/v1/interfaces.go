package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/caretrail/caretrail/internal/domain"
	"github.com/caretrail/caretrail/internal/ledger"
)

// Ledger is the audit facade the handlers call. *ledger.Service satisfies it;
// tests substitute mocks.
type Ledger interface {
	LogEvent(ctx context.Context, in ledger.AppendInput) (uuid.UUID, error)
	VerifyChain(ctx context.Context, tenantID string, limit int) (*domain.VerificationReport, error)
	VerifyEntry(ctx context.Context, entryID uuid.UUID) (*domain.EntryReport, error)
	ExportForArchive(ctx context.Context, tenantID string, from, to int64) (*domain.ExportPackage, error)
	Summary(ctx context.Context, tenantID string) (*domain.AuditSummary, error)
}
