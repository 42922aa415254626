package common

import (
	"context"
	"slices"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyOrgID     contextKey = "org_id"
	ContextKeyActor     contextKey = "actor"
)

// Permissions understood by the review workflow.
const (
	PermissionReviewDecide   = "review:decide"
	PermissionReviewOverride = "review:override"
)

// Actor is the acting user as supplied by the identity layer.
type Actor struct {
	ID          string
	Permissions []string
}

// Can reports whether the actor holds permission p.
func (a Actor) Can(p string) bool {
	return slices.Contains(a.Permissions, p)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithOrgID adds the tenant (organization) ID to the context
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, ContextKeyOrgID, orgID)
}

// OrgIDFromContext extracts the tenant ID from context
func OrgIDFromContext(ctx context.Context) string {
	if orgID, ok := ctx.Value(ContextKeyOrgID).(string); ok {
		return orgID
	}
	return ""
}

// WithActor adds the acting user to the context
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// ActorFromContext extracts the acting user from context
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(Actor)
	return actor, ok
}

// WithTimeout creates a context with the specified timeout
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
