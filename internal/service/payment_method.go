package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/gateway"
)

type paymentMethodService struct {
	methods  domain.PaymentMethodStore
	provider gateway.Provider
}

// NewPaymentMethodService creates a new PaymentMethodService instance
func NewPaymentMethodService(methods domain.PaymentMethodStore, provider gateway.Provider) domain.PaymentMethodService {
	return &paymentMethodService{
		methods:  methods,
		provider: provider,
	}
}

// CreatePaymentMethod tokenizes the card through the gateway and stores
// only the opaque token plus masked display fields. Flow:
//  1. Validate the raw card input
//  2. Exchange it for a gateway token
//  3. Persist the masked method; the first method for an organization
//     is forced to be the default
func (s *paymentMethodService) CreatePaymentMethod(ctx context.Context, params domain.CreatePaymentMethodParams) (*domain.PaymentMethod, error) {
	const op = "PaymentMethodService.CreatePaymentMethod"

	if params.OrganizationID == uuid.Nil {
		return nil, domain.ErrOrganizationRequired
	}
	if err := validateCard(op, params.Card); err != nil {
		return nil, err
	}

	token, err := s.provider.Tokenize(ctx, gateway.TokenizeParams{
		Number:   params.Card.Number,
		ExpMonth: int64(params.Card.ExpMonth),
		ExpYear:  int64(params.Card.ExpYear),
		CVC:      params.Card.CVC,
		Email:    params.Email,
	})
	if err != nil {
		if gateway.IsDeclined(err) {
			return nil, domain.PaymentError(op, "The card could not be verified")
		}
		return nil, fmt.Errorf("failed to tokenize card: %w", err)
	}

	isDefault := params.IsDefault
	existing, err := s.methods.ListByOrganization(ctx, params.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	if len(existing) == 0 {
		isDefault = true
	}

	method := &domain.PaymentMethod{
		OrganizationID: params.OrganizationID,
		MethodType:     domain.PaymentMethodCard,
		Brand:          token.Brand,
		Last4:          token.Last4,
		ExpMonth:       int32(token.ExpMonth),
		ExpYear:        int32(token.ExpYear),
		IsDefault:      isDefault,
		GatewayToken:   token.Token,
	}

	if err := s.methods.Create(ctx, method); err != nil {
		return nil, fmt.Errorf("failed to store payment method: %w", err)
	}

	return method, nil
}

func (s *paymentMethodService) ListPaymentMethods(ctx context.Context, organizationID uuid.UUID) ([]domain.PaymentMethod, error) {
	methods, err := s.methods.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	return methods, nil
}

func (s *paymentMethodService) SetDefaultPaymentMethod(ctx context.Context, id, organizationID uuid.UUID) error {
	return s.methods.SetDefault(ctx, id, organizationID)
}

func (s *paymentMethodService) DeletePaymentMethod(ctx context.Context, id, organizationID uuid.UUID) error {
	return s.methods.Delete(ctx, id, organizationID)
}

func validateCard(op string, card domain.CardDetails) error {
	switch {
	case card.Number == "":
		return domain.Invalid(op, "card number is required")
	case card.CVC == "":
		return domain.Invalid(op, "card security code is required")
	case card.ExpMonth < 1 || card.ExpMonth > 12:
		return domain.Invalid(op, "card expiration month must be between 1 and 12")
	case card.ExpYear < 2000:
		return domain.Invalid(op, "card expiration year must be a four digit year")
	}
	return nil
}
