package domain

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestPrincipalContext(t *testing.T) {
	t.Run("PrincipalFromContext returns nil when no principal", func(t *testing.T) {
		ctx := context.Background()
		principal := PrincipalFromContext(ctx)
		if principal != nil {
			t.Errorf("expected nil principal, got %+v", principal)
		}
	})

	t.Run("PrincipalFromContext returns principal when set", func(t *testing.T) {
		ctx := context.Background()
		expected := &Principal{
			AccountID:      uuid.New(),
			OrganizationID: uuid.New(),
			Email:          "owner@salon.example",
			Role:           RoleOwner,
		}
		ctx = NewContextWithPrincipal(ctx, expected)

		principal := PrincipalFromContext(ctx)
		if principal == nil {
			t.Fatal("expected principal, got nil")
		}
		if principal.AccountID != expected.AccountID {
			t.Errorf("expected AccountID %v, got %v", expected.AccountID, principal.AccountID)
		}
		if principal.Email != expected.Email {
			t.Errorf("expected Email %q, got %q", expected.Email, principal.Email)
		}
	})

	t.Run("OrganizationIDFromContext returns uuid.Nil when no principal", func(t *testing.T) {
		ctx := context.Background()
		id := OrganizationIDFromContext(ctx)
		if id != uuid.Nil {
			t.Errorf("expected uuid.Nil, got %v", id)
		}
	})

	t.Run("OrganizationIDFromContext returns ID when principal set", func(t *testing.T) {
		ctx := context.Background()
		expected := &Principal{OrganizationID: uuid.New()}
		ctx = NewContextWithPrincipal(ctx, expected)

		id := OrganizationIDFromContext(ctx)
		if id != expected.OrganizationID {
			t.Errorf("expected %v, got %v", expected.OrganizationID, id)
		}
	})

	t.Run("RequireOrganizationID panics when no principal", func(t *testing.T) {
		ctx := context.Background()
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic, got none")
			}
		}()
		RequireOrganizationID(ctx)
	})

	t.Run("RequireOrganizationID returns ID when principal set", func(t *testing.T) {
		ctx := context.Background()
		expected := &Principal{OrganizationID: uuid.New()}
		ctx = NewContextWithPrincipal(ctx, expected)

		id := RequireOrganizationID(ctx)
		if id != expected.OrganizationID {
			t.Errorf("expected %v, got %v", expected.OrganizationID, id)
		}
	})

	t.Run("MustPrincipal panics when no principal", func(t *testing.T) {
		ctx := context.Background()
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic, got none")
			}
		}()
		MustPrincipal(ctx)
	})

	t.Run("MustPrincipal returns principal when set", func(t *testing.T) {
		ctx := context.Background()
		expected := &Principal{AccountID: uuid.New(), Role: RoleAdmin}
		ctx = NewContextWithPrincipal(ctx, expected)

		principal := MustPrincipal(ctx)
		if principal.AccountID != expected.AccountID {
			t.Errorf("expected %v, got %v", expected.AccountID, principal.AccountID)
		}
	})

	t.Run("IsAuthenticated returns false when no principal", func(t *testing.T) {
		ctx := context.Background()
		if IsAuthenticated(ctx) {
			t.Error("expected IsAuthenticated to return false")
		}
	})

	t.Run("IsAuthenticated returns true when principal set", func(t *testing.T) {
		ctx := context.Background()
		ctx = NewContextWithPrincipal(ctx, &Principal{AccountID: uuid.New()})
		if !IsAuthenticated(ctx) {
			t.Error("expected IsAuthenticated to return true")
		}
	})
}

func TestRoleHelpers(t *testing.T) {
	t.Run("IsOwner returns false when no principal", func(t *testing.T) {
		ctx := context.Background()
		if IsOwner(ctx) {
			t.Error("expected IsOwner to return false")
		}
	})

	t.Run("IsOwner returns false for non-owner role", func(t *testing.T) {
		ctx := context.Background()
		ctx = NewContextWithPrincipal(ctx, &Principal{AccountID: uuid.New(), Role: RoleStylist})
		if IsOwner(ctx) {
			t.Error("expected IsOwner to return false for stylist")
		}
	})

	t.Run("IsOwner returns true for owner role", func(t *testing.T) {
		ctx := context.Background()
		ctx = NewContextWithPrincipal(ctx, &Principal{AccountID: uuid.New(), Role: RoleOwner})
		if !IsOwner(ctx) {
			t.Error("expected IsOwner to return true for owner")
		}
	})

	t.Run("CanManageBilling allows owner and admin only", func(t *testing.T) {
		cases := []struct {
			role     string
			expected bool
		}{
			{RoleOwner, true},
			{RoleAdmin, true},
			{RoleStylist, false},
		}
		for _, tc := range cases {
			ctx := NewContextWithPrincipal(context.Background(), &Principal{AccountID: uuid.New(), Role: tc.role})
			if got := CanManageBilling(ctx); got != tc.expected {
				t.Errorf("CanManageBilling(%s) = %v, want %v", tc.role, got, tc.expected)
			}
		}
	})

	t.Run("CanManageBilling returns false when no principal", func(t *testing.T) {
		if CanManageBilling(context.Background()) {
			t.Error("expected CanManageBilling to return false")
		}
	})
}

func TestRequestIDContext(t *testing.T) {
	t.Run("RequestIDFromContext returns empty string when no request ID", func(t *testing.T) {
		ctx := context.Background()
		requestID := RequestIDFromContext(ctx)
		if requestID != "" {
			t.Errorf("expected empty string, got %q", requestID)
		}
	})

	t.Run("RequestIDFromContext returns request ID when set", func(t *testing.T) {
		ctx := context.Background()
		expected := "req-12345"
		ctx = NewContextWithRequestID(ctx, expected)

		requestID := RequestIDFromContext(ctx)
		if requestID != expected {
			t.Errorf("expected %q, got %q", expected, requestID)
		}
	})
}

func TestMultipleContextValues(t *testing.T) {
	t.Run("multiple values can coexist in context", func(t *testing.T) {
		ctx := context.Background()

		principal := &Principal{AccountID: uuid.New(), OrganizationID: uuid.New(), Role: RoleOwner}
		requestID := "req-abc123"

		ctx = NewContextWithPrincipal(ctx, principal)
		ctx = NewContextWithRequestID(ctx, requestID)

		if got := PrincipalFromContext(ctx); got == nil || got.AccountID != principal.AccountID {
			t.Error("principal not found or wrong ID")
		}
		if got := RequestIDFromContext(ctx); got != requestID {
			t.Errorf("expected request ID %q, got %q", requestID, got)
		}
	})
}
