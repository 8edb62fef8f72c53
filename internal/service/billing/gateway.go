// internal/service/billing/gateway.go
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
)

// CheckoutParams is what our flows need from a checkout session,
// independent of the Stripe client types.
type CheckoutParams struct {
	CustomerID        string
	Mode              string
	ProductName       string
	UnitAmount        int64
	Quantity          int64
	PriceID           string
	RecurringInterval string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Gateway is the Stripe surface the services depend on. Tests swap in
// a fake; production uses the stripe-go client.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	GetSubscriptionStatus(ctx context.Context, subscriptionID string) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	EnsureCustomer(ctx context.Context, email, name string) (string, error)
}

type stripeGateway struct{}

func NewStripeGateway(secretKey string) Gateway {
	stripe.Key = secretKey
	return &stripeGateway{}
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(p.Mode),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		Metadata:   p.Metadata,
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	if p.Mode == "subscription" {
		// The metadata also rides on the Stripe subscription itself,
		// so customer.subscription.* events can be tied back to the
		// local records without the checkout session.
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.Metadata,
		}
	}
	if p.PriceID != "" {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		}
	} else {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String("brl"),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(p.ProductName),
			},
			UnitAmount: stripe.Int64(p.UnitAmount),
		}
		if p.RecurringInterval != "" {
			priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(p.RecurringInterval),
			}
		}
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(p.Quantity),
			},
		}
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *stripeGateway) GetSubscriptionStatus(ctx context.Context, subscriptionID string) (string, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := stripesub.Get(subscriptionID, params)
	if err != nil {
		return "", fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return string(sub.Status), nil
}

func (g *stripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := stripesub.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return nil
}

func (g *stripeGateway) EnsureCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return c.ID, nil
}

// IsResourceMissing reports whether the Stripe error says the object
// no longer exists on their side. Cancellation treats that as already
// done.
func IsResourceMissing(err error) bool {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return sErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}

// IsTransient reports whether the Stripe call failed in a way worth
// retrying: network trouble or a 5xx from their API.
func IsTransient(err error) bool {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return sErr.HTTPStatusCode >= 500
	}
	// Anything that never reached Stripe counts as transient.
	return err != nil
}
