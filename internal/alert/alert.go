// Package alert publishes chain-integrity findings to Redis pub/sub so
// operational tooling can react without polling verification endpoints.
// Reports carry sequences and issue types only — never key material.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/caretrail/caretrail/internal/domain"
	redisstore "github.com/caretrail/caretrail/internal/store/redis"
)

// Publisher is the pub/sub surface the notifier writes to.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Notifier publishes integrity alerts. It satisfies ledger.Alerter.
type Notifier struct {
	pub Publisher
	now func() time.Time
}

// New creates a Notifier. now falls back to time.Now when nil.
func New(pub Publisher, now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{pub: pub, now: now}
}

type integrityAlert struct {
	TenantID      string         `json:"tenantId"`
	DetectedAt    time.Time      `json:"detectedAt"`
	Valid         bool           `json:"valid"`
	TotalVerified int            `json:"totalVerified"`
	LastSequence  int64          `json:"lastSequence"`
	Issues        []domain.Issue `json:"issues"`
}

// ChainIntegrity publishes one alert per verification report with findings.
func (n *Notifier) ChainIntegrity(ctx context.Context, tenantID string, report *domain.VerificationReport) error {
	payload, err := json.Marshal(integrityAlert{
		TenantID:      tenantID,
		DetectedAt:    n.now().UTC(),
		Valid:         report.Valid,
		TotalVerified: report.TotalVerified,
		LastSequence:  report.LastSequence,
		Issues:        report.Issues,
	})
	if err != nil {
		return fmt.Errorf("alert.Notifier.ChainIntegrity: marshal: %w", err)
	}

	channel := redisstore.IntegrityChannel(tenantID)
	if err := n.pub.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("alert.Notifier.ChainIntegrity: publish: %w", err)
	}

	log.Info().
		Str("tenant_id", tenantID).
		Str("channel", channel).
		Int("issues", len(report.Issues)).
		Msg("integrity alert published")

	return nil
}
