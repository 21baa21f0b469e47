package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
)

// StripeGateway talks to Stripe through the v1 payment intent and refund APIs.
type StripeGateway struct {
	api           *stripe.Client
	signingSecret string
}

func NewStripeGateway(apiKey, signingSecret string) (*StripeGateway, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	return &StripeGateway{
		api:           stripe.NewClient(apiKey),
		signingSecret: strings.TrimSpace(signingSecret),
	}, nil
}

func (g *StripeGateway) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	pi, err := g.api.V1PaymentIntents.Create(ctx, intentCreateParams(p))
	if err != nil {
		return nil, classify(err)
	}
	return fromStripeIntent(pi), nil
}

func intentCreateParams(p IntentParams) *stripe.PaymentIntentCreateParams {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	return params
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	pi, err := g.api.V1PaymentIntents.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, classify(err)
	}
	return fromStripeIntent(pi), nil
}

// Refund returns the full amount of the intent. Repeated calls for the same
// intent share one idempotency key so a retried request refunds once.
func (g *StripeGateway) Refund(ctx context.Context, paymentIntentID string) error {
	_, err := g.api.V1Refunds.Create(ctx, refundCreateParams(paymentIntentID))
	if err != nil {
		return classify(err)
	}
	return nil
}

func refundCreateParams(paymentIntentID string) *stripe.RefundCreateParams {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.SetIdempotencyKey("refund-" + paymentIntentID)
	return params
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.signingSecret == "" {
		return nil, errSecretRequired
	}
	event, err := webhook.ConstructEvent(payload, signature, g.signingSecret)
	if err != nil {
		return nil, fmt.Errorf("verify signature: %w", err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if strings.HasPrefix(out.Type, "payment_intent.") && event.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Intent = fromStripeIntent(&pi)
	}
	return out, nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Created:      time.Unix(pi.Created, 0).UTC(),
		Metadata:     pi.Metadata,
	}
}

// classify marks rate limits and server side failures as retryable.
func classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return Transient(err)
		}
		return err
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(err)
	}
	return err
}
