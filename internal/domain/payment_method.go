package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Payment method types.
const (
	PaymentMethodCard = "card"
	PaymentMethodBank = "bank"
)

// Payment-method domain errors.
var (
	ErrPaymentMethodNotFound  = &Error{Code: ENOTFOUND, Message: "Payment method not found"}
	ErrNoDefaultPaymentMethod = &Error{Code: EINVALID, Message: "Organization has no default payment method"}
)

// PaymentMethod is a tokenized payment instrument. Raw card data never
// touches this system; the gateway returns an opaque token plus masked
// display fields.
type PaymentMethod struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	MethodType     string // "card", "bank"
	Brand          string // "visa", "mastercard", ...
	Last4          string
	ExpMonth       int32
	ExpYear        int32
	IsDefault      bool
	GatewayToken   string // opaque gateway reference
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CardDetails carries raw card input destined for gateway tokenization.
// It is never persisted.
type CardDetails struct {
	Number   string
	ExpMonth int32
	ExpYear  int32
	CVC      string
}

// CreatePaymentMethodParams contains parameters for registering a payment method.
type CreatePaymentMethodParams struct {
	OrganizationID uuid.UUID
	Card           CardDetails
	Email          string
	IsDefault      bool
}

// PaymentMethodStore persists payment methods.
//
// Create, SetDefault and Delete maintain the single-default invariant
// transactionally: at most one method per organization is default, and
// deleting the default promotes the oldest remaining method.
type PaymentMethodStore interface {
	Create(ctx context.Context, method *PaymentMethod) error
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentMethod, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]PaymentMethod, error)
	GetDefault(ctx context.Context, organizationID uuid.UUID) (*PaymentMethod, error)
	SetDefault(ctx context.Context, id, organizationID uuid.UUID) error
	Delete(ctx context.Context, id, organizationID uuid.UUID) error
}

// PaymentMethodService manages payment instruments for an organization.
type PaymentMethodService interface {
	// CreatePaymentMethod tokenizes card details through the gateway and
	// persists the masked result. The first method for an organization
	// always becomes the default.
	CreatePaymentMethod(ctx context.Context, params CreatePaymentMethodParams) (*PaymentMethod, error)

	// ListPaymentMethods returns the organization's methods, default first.
	ListPaymentMethods(ctx context.Context, organizationID uuid.UUID) ([]PaymentMethod, error)

	// SetDefaultPaymentMethod marks one method default and clears siblings.
	SetDefaultPaymentMethod(ctx context.Context, id, organizationID uuid.UUID) error

	// DeletePaymentMethod removes a method. Deleting the default promotes
	// the oldest remaining method, if any.
	DeletePaymentMethod(ctx context.Context, id, organizationID uuid.UUID) error
}
