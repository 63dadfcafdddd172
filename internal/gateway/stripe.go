package gateway

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-gallery/internal/logger"
)

// Stripe drives card payments through Stripe payment intents. No QR payload
// is involved; the client secret flow is owned by the excluded UI layer.
type Stripe struct {
	client   *client.API
	currency string
	log      *logger.Logger
}

func NewStripe(secretKey, currency string, log *logger.Logger) (*Stripe, error) {
	if secretKey == "" {
		return nil, &ConfigError{Reason: "STRIPE_SECRET_KEY not set"}
	}

	sc := client.New(secretKey, nil)
	log.Info("GATEWAY", "Stripe client initialized")

	return &Stripe{client: sc, currency: currency, log: log}, nil
}

func (s *Stripe) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	// Stripe charges in the smallest currency unit
	amountInCents := int64(math.Round(req.Amount * 100))

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(amountInCents),
		Currency:     stripe.String(s.currency),
		Description:  stripe.String(req.Description),
		ReceiptEmail: stripe.String(req.PayerEmail),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("GATEWAY", fmt.Sprintf("Failed to create Stripe payment intent for order %s: %v", req.OrderID, err))
		return nil, wrapStripeError(err)
	}

	s.log.Info("GATEWAY", fmt.Sprintf("Created Stripe intent %s for order %s (%.2f %s)", pi.ID, req.OrderID, req.Amount, s.currency))

	return &Intent{ID: pi.ID, Status: mapStripeStatus(pi.Status)}, nil
}

func (s *Stripe) GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.client.PaymentIntents.Get(intentID, params)
	if err != nil {
		return "", wrapStripeError(err)
	}
	return mapStripeStatus(pi.Status), nil
}

func wrapStripeError(err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return &RequestError{StatusCode: stripeErr.HTTPStatusCode, Message: stripeErr.Msg}
	}
	return &RequestError{Message: err.Error()}
}

func mapStripeStatus(status stripe.PaymentIntentStatus) IntentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentApproved
	case stripe.PaymentIntentStatusCanceled:
		return IntentRejected
	default:
		// processing, requires_action, requires_payment_method, ...
		return IntentPending
	}
}
