package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caretrail/caretrail/internal/domain"
)

// capturePublisher records every publish.
type capturePublisher struct {
	channels []string
	payloads [][]byte
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestChainIntegrity_PublishesToTenantChannel(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	notifier := New(pub, fixedNow)

	report := &domain.VerificationReport{
		Valid:         false,
		TotalVerified: 3,
		LastSequence:  3,
		Issues: []domain.Issue{
			{Sequence: 2, Type: domain.IssueIntegrityFailure, Message: "hash mismatch - content tampered"},
		},
	}

	err := notifier.ChainIntegrity(context.Background(), "ORG-1", report)
	require.NoError(t, err)

	require.Len(t, pub.channels, 1)
	assert.Equal(t, "audit:integrity:ORG-1", pub.channels[0])

	var got integrityAlert
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "ORG-1", got.TenantID)
	assert.Equal(t, fixedNow(), got.DetectedAt)
	assert.False(t, got.Valid)
	assert.Equal(t, 3, got.TotalVerified)
	assert.EqualValues(t, 3, got.LastSequence)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, domain.IssueIntegrityFailure, got.Issues[0].Type)
	assert.EqualValues(t, 2, got.Issues[0].Sequence)
}

func TestChainIntegrity_PublishErrorPropagates(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{err: assert.AnError}
	notifier := New(pub, fixedNow)

	err := notifier.ChainIntegrity(context.Background(), "ORG-1", &domain.VerificationReport{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestChainIntegrity_PayloadCarriesNoKeyMaterial(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	notifier := New(pub, fixedNow)

	report := &domain.VerificationReport{
		Valid:  false,
		Issues: []domain.Issue{{Sequence: 1, Type: domain.IssueChainBreak, Message: "chain break at sequence 1"}},
	}
	require.NoError(t, notifier.ChainIntegrity(context.Background(), "ORG-1", report))

	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	for _, forbidden := range []string{"signature", "key", "secret"} {
		assert.NotContains(t, got, forbidden)
	}
}
