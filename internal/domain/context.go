// Package domain provides core billing types and context helpers.
//
// Context helpers centralize request-scoped data access, making
// organization isolation bugs harder to write and providing consistent
// patterns throughout the codebase.
package domain

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// principalContextKey stores the authenticated principal in context.
	principalContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// Principal roles recognized by the billing API.
const (
	RoleOwner   = "OWNER"
	RoleAdmin   = "ADMIN"
	RoleStylist = "STYLIST"
)

// Principal represents the authenticated caller stored in context.
// This is a minimal struct for context storage; the full account
// record lives in the identity service.
type Principal struct {
	AccountID      uuid.UUID
	OrganizationID uuid.UUID
	Email          string
	Role           string // "OWNER", "ADMIN", "STYLIST"
}

// --- Principal Context Helpers ---

// NewContextWithPrincipal returns a new context with the principal attached.
func NewContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext retrieves the principal from context.
// Returns nil if no principal is present.
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(principalContextKey).(*Principal)
	return principal
}

// OrganizationIDFromContext retrieves the organization ID from context.
// Returns uuid.Nil if no principal is present.
func OrganizationIDFromContext(ctx context.Context) uuid.UUID {
	if principal := PrincipalFromContext(ctx); principal != nil {
		return principal.OrganizationID
	}
	return uuid.Nil
}

// RequireOrganizationID retrieves the organization ID from context, panicking
// if not present. Use this in service layers where organization scope is
// required. The panic will be caught by recovery middleware in HTTP handlers.
func RequireOrganizationID(ctx context.Context) uuid.UUID {
	id := OrganizationIDFromContext(ctx)
	if id == uuid.Nil {
		panic("organization_id required in context but not found")
	}
	return id
}

// MustPrincipal retrieves the principal from context, panicking if not present.
func MustPrincipal(ctx context.Context) *Principal {
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		panic("principal required in context but not found")
	}
	return principal
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

// --- Convenience Helpers ---

// IsAuthenticated returns true if there is a principal in context.
func IsAuthenticated(ctx context.Context) bool {
	return PrincipalFromContext(ctx) != nil
}

// IsOwner returns true if the principal in context has the owner role.
func IsOwner(ctx context.Context) bool {
	principal := PrincipalFromContext(ctx)
	return principal != nil && principal.Role == RoleOwner
}

// CanManageBilling returns true if the principal may mutate billing state.
func CanManageBilling(ctx context.Context) bool {
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		return false
	}
	return principal.Role == RoleOwner || principal.Role == RoleAdmin
}
