package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caretrail/caretrail/internal/domain"
)

func TestCheckpointBuilder_FirstCheckpointStartsAtOne(t *testing.T) {
	t.Parallel()

	l := newTestLedger(1000, 5)
	for i := 0; i < 4; i++ {
		appendEvent(t, l, "ORG-1", "LOGIN")
	}

	cp, err := l.builder.Build(context.Background(), "ORG-1", 4)
	require.NoError(t, err)

	assert.EqualValues(t, 1, cp.FromSequence)
	assert.EqualValues(t, 4, cp.ToSequence)
	assert.Equal(t, 4, cp.EntryCount)
	assert.Len(t, cp.MerkleRoot, 64)
	assert.Len(t, cp.Signature, 64)
}

func TestCheckpointBuilder_RangesTile(t *testing.T) {
	t.Parallel()

	l := newTestLedger(1000, 5)
	for i := 0; i < 8; i++ {
		appendEvent(t, l, "ORG-1", "LOGIN")
	}

	first, err := l.builder.Build(context.Background(), "ORG-1", 4)
	require.NoError(t, err)
	second, err := l.builder.Build(context.Background(), "ORG-1", 8)
	require.NoError(t, err)

	// Consecutive checkpoints cover adjacent ranges with no gap or overlap.
	assert.EqualValues(t, 1, first.FromSequence)
	assert.EqualValues(t, 4, first.ToSequence)
	assert.EqualValues(t, 5, second.FromSequence)
	assert.EqualValues(t, 8, second.ToSequence)
	assert.Equal(t, 4, second.EntryCount)
}

func TestCheckpointBuilder_AlreadyCoveredRangeConflicts(t *testing.T) {
	t.Parallel()

	l := newTestLedger(1000, 5)
	for i := 0; i < 4; i++ {
		appendEvent(t, l, "ORG-1", "LOGIN")
	}

	_, err := l.builder.Build(context.Background(), "ORG-1", 4)
	require.NoError(t, err)

	_, err = l.builder.Build(context.Background(), "ORG-1", 4)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCheckpointBuilder_RootAndSignatureRecompute(t *testing.T) {
	t.Parallel()

	l := newTestLedger(1000, 5)
	for i := 0; i < 5; i++ {
		appendEvent(t, l, "ORG-1", "LOGIN")
	}

	cp, err := l.builder.Build(context.Background(), "ORG-1", 5)
	require.NoError(t, err)

	entries, err := l.entries.Range(context.Background(), "ORG-1", cp.FromSequence, cp.ToSequence, 0)
	require.NoError(t, err)
	leaves := make([]string, len(entries))
	for i, e := range entries {
		leaves[i] = e.EntryHash
	}
	assert.Equal(t, MerkleRoot(leaves), cp.MerkleRoot)

	canonical, err := Canonicalize(checkpointContent(cp))
	require.NoError(t, err)
	assert.Equal(t, l.sealer.Sign(canonical), cp.Signature)
}

func TestCheckpointBuilder_FailedBoundaryIsCoveredByNext(t *testing.T) {
	t.Parallel()

	// Skipping the boundary at 4 must not lose coverage: the build at 8
	// widens to cover [1, 8].
	l := newTestLedger(1000, 5)
	for i := 0; i < 8; i++ {
		appendEvent(t, l, "ORG-1", "LOGIN")
	}

	cp, err := l.builder.Build(context.Background(), "ORG-1", 8)
	require.NoError(t, err)

	assert.EqualValues(t, 1, cp.FromSequence)
	assert.EqualValues(t, 8, cp.ToSequence)
	assert.Equal(t, 8, cp.EntryCount)
}
