package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_DeclaresAppendUniqueness(t *testing.T) {
	t.Parallel()

	// The optimistic append protocol is only sound if the schema rejects a
	// second claim on the same (tenant, sequence).
	assert.Contains(t, schemaSQL, "UNIQUE (tenant_id, sequence)")

	for _, table := range []string{"audit_entries", "audit_checkpoints", "ledger_secrets"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
}
