package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/caretrail/caretrail/internal/domain"
	"github.com/caretrail/caretrail/internal/ledger"
	"github.com/caretrail/caretrail/internal/server/middleware"
)

type LogEventInput struct {
	Body struct {
		Action   string         `json:"action" minLength:"1" maxLength:"255" doc:"Action performed, e.g. LOGIN or CONSENT_CHANGE"`
		Entity   string         `json:"entity" minLength:"1" maxLength:"255" doc:"Kind of entity acted on, e.g. patient or screening"`
		EntityID *string        `json:"entityId,omitempty" maxLength:"255" doc:"Identifier of the entity acted on"`
		Details  map[string]any `json:"details,omitempty" doc:"Structured event details"`
	}
}

type LogEventOutput struct {
	Body struct {
		EntryID uuid.UUID `json:"entryId" doc:"Identifier of the appended ledger entry"`
	}
}

type VerifyChainInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"100000" default:"1000" doc:"Max entries to verify"`
}

type VerifyChainOutput struct {
	Body *domain.VerificationReport
}

type VerifyEntryInput struct {
	ID string `path:"id" doc:"Entry ID"`
}

type VerifyEntryOutput struct {
	Body *domain.EntryReport
}

type ExportInput struct {
	From int64 `query:"from" minimum:"1" default:"1" doc:"First sequence to export"`
	To   int64 `query:"to" minimum:"0" default:"0" doc:"Last sequence to export (0 = through end of chain)"`
}

type ExportOutput struct {
	Body *domain.ExportPackage
}

type SummaryOutput struct {
	Body *domain.AuditSummary
}

// RegisterAuditRoutes mounts the ledger endpoints. Appending events requires
// any authenticated subject; verification, export, and summary require the
// admin role.
func RegisterAuditRoutes(api huma.API, svc Ledger) {
	huma.Register(api, huma.Operation{
		OperationID: "log-audit-event",
		Method:      http.MethodPost,
		Path:        "/audit/events",
		Summary:     "Append an audit event to the tenant's ledger",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *LogEventInput) (*LogEventOutput, error) {
		tenantID, actor, ok := callerIdentity(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authenticated caller required")
		}

		in := ledger.AppendInput{
			TenantID: tenantID,
			Actor:    actor,
			Action:   input.Body.Action,
			Entity:   input.Body.Entity,
			EntityID: input.Body.EntityID,
			Details:  input.Body.Details,
		}

		if meta, found := middleware.RequestMetaFromContext(ctx); found {
			in.RequestID = optional(meta.RequestID)
			in.IPAddress = optional(meta.IPAddress)
			in.UserAgent = optional(meta.UserAgent)
		}

		entryID, err := svc.LogEvent(ctx, in)
		if err != nil {
			if errors.Is(err, domain.ErrConcurrencyExhausted) {
				return nil, huma.Error409Conflict("append retries exhausted, try again", err)
			}
			return nil, huma.Error500InternalServerError("failed to append audit event", err)
		}

		out := &LogEventOutput{}
		out.Body.EntryID = entryID
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-audit-chain",
		Method:      http.MethodGet,
		Path:        "/audit/verify",
		Summary:     "Verify the tenant's hash chain and report every deviation",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *VerifyChainInput) (*VerifyChainOutput, error) {
		tenantID, ok := requireAdmin(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("admin role required")
		}

		report, err := svc.VerifyChain(ctx, tenantID, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to verify chain", err)
		}

		return &VerifyChainOutput{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-audit-entry",
		Method:      http.MethodGet,
		Path:        "/audit/entries/{id}/verify",
		Summary:     "Verify a single entry independent of chain position",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *VerifyEntryInput) (*VerifyEntryOutput, error) {
		if _, ok := requireAdmin(ctx); !ok {
			return nil, huma.Error403Forbidden("admin role required")
		}

		entryID, err := uuid.Parse(input.ID)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid entry id")
		}

		report, err := svc.VerifyEntry(ctx, entryID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("entry not found")
			}
			return nil, huma.Error500InternalServerError("failed to verify entry", err)
		}

		return &VerifyEntryOutput{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-audit-range",
		Method:      http.MethodGet,
		Path:        "/audit/export",
		Summary:     "Export a sequence range with covering checkpoints for archival",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ExportInput) (*ExportOutput, error) {
		tenantID, ok := requireAdmin(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("admin role required")
		}

		pkg, err := svc.ExportForArchive(ctx, tenantID, input.From, input.To)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to export audit range", err)
		}

		return &ExportOutput{Body: pkg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-summary",
		Method:      http.MethodGet,
		Path:        "/audit/summary",
		Summary:     "Ledger statistics with a sampled integrity check",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, _ *struct{}) (*SummaryOutput, error) {
		tenantID, ok := requireAdmin(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("admin role required")
		}

		summary, err := svc.Summary(ctx, tenantID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to build audit summary", err)
		}

		return &SummaryOutput{Body: summary}, nil
	})
}

func callerIdentity(ctx context.Context) (tenantID, actor string, ok bool) {
	tenantID, ok = middleware.TenantIDFromContext(ctx)
	if !ok || tenantID == "" {
		return "", "", false
	}

	actor, ok = middleware.ActorFromContext(ctx)
	if !ok || actor == "" {
		return "", "", false
	}

	return tenantID, actor, true
}

func requireAdmin(ctx context.Context) (string, bool) {
	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok || tenantID == "" {
		return "", false
	}

	role, ok := middleware.RoleFromContext(ctx)
	if !ok || role != "admin" {
		return "", false
	}

	return tenantID, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
