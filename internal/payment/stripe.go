package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/nikkes174/VPNBot/internal/logger"
)

// StripeGateway implements Gateway on top of Stripe checkout sessions. The
// confirmation URL is the hosted checkout page; Find looks the session up by
// id and maps its payment status.
type StripeGateway struct {
	secretKey string
}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is empty")
	}
	stripe.Key = secretKey
	logger.InfoMsg("Stripe gateway initialized")
	return &StripeGateway{secretKey: secretKey}, nil
}

func (g *StripeGateway) Create(ctx context.Context, charge Charge) (*CreatedPayment, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(charge.Currency)),
					UnitAmount: stripe.Int64(int64(charge.Amount * 100)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(charge.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(charge.ReturnURL),
		CancelURL:  stripe.String(charge.ReturnURL),
		Metadata:   metadataToMap(charge.Metadata),
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CreatedPayment{
		ID:              s.ID,
		ConfirmationURL: s.URL,
	}, nil
}

func (g *StripeGateway) Find(ctx context.Context, paymentID string) (Status, *Metadata, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := session.Get(paymentID, params)
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up checkout session: %w", err)
	}

	meta := metadataFromMap(s.Metadata)

	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return StatusSucceeded, meta, nil
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return StatusCanceled, meta, nil
	default:
		return StatusPending, meta, nil
	}
}
