// internal/service/billing/events.go
package billing

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

type eventKind int

const (
	kindIgnored eventKind = iota
	kindCheckoutCompleted
	kindInvoicePaid
	kindInvoicePaymentFailed
	kindSubscriptionUpdated
	kindSubscriptionDeleted
	kindPaymentConfirmed
)

// classifyEvent maps the event type onto the closed set of kinds the
// pipeline handles. Everything else is recorded and ignored.
func classifyEvent(t stripe.EventType) eventKind {
	switch t {
	case "checkout.session.completed":
		return kindCheckoutCompleted
	case "invoice.paid", "invoice.payment_succeeded":
		return kindInvoicePaid
	case "invoice.payment_failed":
		return kindInvoicePaymentFailed
	case "customer.subscription.created", "customer.subscription.updated":
		return kindSubscriptionUpdated
	case "customer.subscription.deleted":
		return kindSubscriptionDeleted
	case "payment_intent.succeeded", "charge.succeeded":
		return kindPaymentConfirmed
	default:
		return kindIgnored
	}
}

// invoiceEvent is the slice of the invoice payload the pipeline needs.
// Stripe moved the subscription reference under parent in newer API
// versions; both shapes are accepted.
type invoiceEvent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	AmountPaid   int64  `json:"amount_paid"`
	PeriodEnd    int64  `json:"period_end"`
	Subscription string `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (e *invoiceEvent) subscriptionID() string {
	if e.Subscription != "" {
		return e.Subscription
	}
	if e.Parent != nil && e.Parent.SubscriptionDetails != nil {
		return e.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

func parseInvoice(raw json.RawMessage) (*invoiceEvent, error) {
	var inv invoiceEvent
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse invoice payload: %w", err)
	}
	return &inv, nil
}

// subscriptionEvent is the slice of the subscription payload we use.
// Metadata carries the local plan and owner ids our checkout flow
// stamps on the Stripe subscription.
type subscriptionEvent struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	Customer          string            `json:"customer"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
}

func parseSubscription(raw json.RawMessage) (*subscriptionEvent, error) {
	var sub subscriptionEvent
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription payload: %w", err)
	}
	return &sub, nil
}

// paymentEvent covers payment_intent.succeeded and charge.succeeded,
// which differ only in the amount field name.
type paymentEvent struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	AmountReceived int64  `json:"amount_received"`
	Customer       string `json:"customer"`
}

func (e *paymentEvent) amount() int64 {
	if e.AmountReceived > 0 {
		return e.AmountReceived
	}
	return e.Amount
}

func parsePayment(raw json.RawMessage) (*paymentEvent, error) {
	var p paymentEvent
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse payment payload: %w", err)
	}
	return &p, nil
}

// checkoutMetadata is what our checkout flows stamp on the session.
type checkoutMetadata struct {
	UserID         int64
	LocalOrderID   string
	PlanID         int64
	SubscriptionID int64
	Kind           string
}

func parseCheckoutMetadata(meta map[string]string) (checkoutMetadata, error) {
	var m checkoutMetadata
	m.Kind = meta["kind"]
	m.LocalOrderID = meta["local_order_id"]
	if v := meta["user_id"]; v != "" {
		if _, err := fmt.Sscan(v, &m.UserID); err != nil {
			return m, fmt.Errorf("invalid user_id metadata %q", v)
		}
	}
	if v := meta["plan_id"]; v != "" {
		if _, err := fmt.Sscan(v, &m.PlanID); err != nil {
			return m, fmt.Errorf("invalid plan_id metadata %q", v)
		}
	}
	if v := meta["subscription_id"]; v != "" {
		if _, err := fmt.Sscan(v, &m.SubscriptionID); err != nil {
			return m, fmt.Errorf("invalid subscription_id metadata %q", v)
		}
	}
	return m, nil
}

// creditsForAmount converts a paid amount in cents into whole credits
// at the current credit price, rounding down.
func creditsForAmount(amountCents int64, precoDoCredito float64) int {
	if precoDoCredito <= 0 {
		return 0
	}
	major := float64(amountCents) / 100.0
	n := int(major / precoDoCredito)
	if n < 0 {
		return 0
	}
	return n
}
