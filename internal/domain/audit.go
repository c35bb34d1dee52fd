package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one immutable, tenant-scoped record in the ledger.
//
// Entries for a tenant form a singly linked hash chain ordered by Sequence:
// Sequence starts at 1 with no gaps, PrevHash carries the EntryHash of the
// preceding entry (or the zero-hash sentinel for the first), EntryHash is the
// SHA-256 of the entry's canonical content including PrevHash, and Signature
// is an HMAC-SHA256 seal over canonical content plus EntryHash.
type AuditEntry struct {
	ID        uuid.UUID      `json:"id"`
	TenantID  string         `json:"tenantId"`
	Sequence  int64          `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  *string        `json:"entityId"`
	Details   map[string]any `json:"details"`
	RequestID *string        `json:"requestId"`
	IPAddress *string        `json:"ipAddress"`
	UserAgent *string        `json:"userAgent"`
	PrevHash  string         `json:"prevHash"`
	EntryHash string         `json:"entryHash"`
	Signature string         `json:"signature"`
}

// Checkpoint is a signed Merkle attestation over a contiguous sequence range.
// Checkpoints for a tenant tile the sequence space without gaps or overlap.
type Checkpoint struct {
	ID           uuid.UUID `json:"id"`
	TenantID     string    `json:"tenantId"`
	FromSequence int64     `json:"fromSequence"`
	ToSequence   int64     `json:"toSequence"`
	EntryCount   int       `json:"entryCount"`
	MerkleRoot   string    `json:"merkleRoot"`
	Timestamp    time.Time `json:"timestamp"`
	Signature    string    `json:"signature"`
}

// ExportPackage is a bounded, signed snapshot of a sequence range plus the
// checkpoints intersecting it. ExportSignature covers the boundary metadata
// {tenantId, fromSequence, toSequence, entryCount} so later alteration of the
// bundle's declared range is independently detectable.
type ExportPackage struct {
	TenantID        string        `json:"tenantId"`
	ExportedAt      time.Time     `json:"exportedAt"`
	FromSequence    int64         `json:"fromSequence"`
	ToSequence      int64         `json:"toSequence"`
	EntryCount      int           `json:"entryCount"`
	Entries         []*AuditEntry `json:"entries"`
	Checkpoints     []*Checkpoint `json:"checkpoints"`
	ExportSignature string        `json:"exportSignature"`
}

// IssueType classifies a verification finding.
type IssueType string

const (
	// IssueChainBreak means an entry's PrevHash did not match the stored
	// EntryHash of its predecessor.
	IssueChainBreak IssueType = "chain_break"
	// IssueIntegrityFailure means an entry's recomputed hash or signature
	// did not match the stored value, i.e. its content was altered.
	IssueIntegrityFailure IssueType = "integrity_failure"
)

// Issue is a single verification finding. Issues are data, not errors:
// verification always runs to completion and reports everything it saw.
type Issue struct {
	Sequence int64     `json:"sequence"`
	Type     IssueType `json:"type"`
	Message  string    `json:"message"`
}

// VerificationReport is the result of walking a tenant's chain.
type VerificationReport struct {
	Valid         bool    `json:"valid"`
	TotalVerified int     `json:"totalVerified"`
	LastSequence  int64   `json:"lastSequence"`
	Issues        []Issue `json:"issues"`
}

// EntryReport is the result of verifying a single entry in isolation.
type EntryReport struct {
	EntryID  uuid.UUID `json:"entryId"`
	Sequence int64     `json:"sequence"`
	Valid    bool      `json:"valid"`
	Issues   []Issue   `json:"issues"`
}

// ChainIntegrity summarizes a sampled verification inside an audit summary.
type ChainIntegrity struct {
	Verified       bool `json:"verified"`
	SampledEntries int  `json:"sampledEntries"`
	Issues         int  `json:"issues"`
}

// AuditSummary reports ledger statistics for one tenant.
type AuditSummary struct {
	TenantID        string         `json:"tenantId"`
	TotalEntries    int64          `json:"totalEntries"`
	LastSequence    int64          `json:"lastSequence"`
	LastTimestamp   *time.Time     `json:"lastTimestamp"`
	CheckpointCount int64          `json:"checkpointCount"`
	ChainIntegrity  ChainIntegrity `json:"chainIntegrity"`
}

// EntryRepository stores ledger entries. Implementations must enforce
// uniqueness on (TenantID, Sequence) and on ID; Insert returns ErrConflict
// when a concurrent writer claimed the same sequence.
type EntryRepository interface {
	Insert(ctx context.Context, entry *AuditEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*AuditEntry, error)
	LastByTenant(ctx context.Context, tenantID string) (*AuditEntry, error)
	// Range returns entries with from <= Sequence <= to in ascending
	// sequence order, at most limit rows (limit <= 0 means unbounded).
	Range(ctx context.Context, tenantID string, from, to int64, limit int) ([]*AuditEntry, error)
	// ListAscending returns the first limit entries ordered by sequence
	// (limit <= 0 means unbounded).
	ListAscending(ctx context.Context, tenantID string, limit int) ([]*AuditEntry, error)
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
}

// CheckpointRepository stores periodic Merkle checkpoints.
type CheckpointRepository interface {
	Insert(ctx context.Context, cp *Checkpoint) error
	LastByTenant(ctx context.Context, tenantID string) (*Checkpoint, error)
	// Intersecting returns checkpoints whose [FromSequence, ToSequence]
	// overlaps [from, to], ordered by FromSequence ascending.
	Intersecting(ctx context.Context, tenantID string, from, to int64) ([]*Checkpoint, error)
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
}
