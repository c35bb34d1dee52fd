package middleware

import "context"

type contextKey string

const (
	ContextKeyTenantID contextKey = "tenant_id"
	ContextKeyActor    contextKey = "actor"
	ContextKeyRole     contextKey = "role"
	ContextKeyReqMeta  contextKey = "request_meta"
)

// RequestMeta carries per-request metadata recorded alongside audit events.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

func TenantIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyTenantID).(string)
	return v, ok
}

func ActorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyActor).(string)
	return v, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyRole).(string)
	return v, ok
}

func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	v, ok := ctx.Value(ContextKeyReqMeta).(RequestMeta)
	return v, ok
}
