package billing

import (
	"encoding/json"
	"testing"

	"compatlab-service/internal/domain/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		eventType stripe.EventType
		want      eventKind
	}{
		{"checkout.session.completed", kindCheckoutCompleted},
		{"invoice.paid", kindInvoicePaid},
		{"invoice.payment_succeeded", kindInvoicePaid},
		{"invoice.payment_failed", kindInvoicePaymentFailed},
		{"customer.subscription.created", kindSubscriptionUpdated},
		{"customer.subscription.updated", kindSubscriptionUpdated},
		{"customer.subscription.deleted", kindSubscriptionDeleted},
		{"payment_intent.succeeded", kindPaymentConfirmed},
		{"charge.succeeded", kindPaymentConfirmed},
		{"customer.created", kindIgnored},
		{"", kindIgnored},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyEvent(tt.eventType), string(tt.eventType))
	}
}

func TestParseInvoiceSubscriptionID(t *testing.T) {
	t.Run("legacy top level field", func(t *testing.T) {
		inv, err := parseInvoice(json.RawMessage(`{"id":"in_1","subscription":"sub_1"}`))
		require.NoError(t, err)
		assert.Equal(t, "sub_1", inv.subscriptionID())
	})

	t.Run("nested under parent", func(t *testing.T) {
		raw := `{"id":"in_2","parent":{"subscription_details":{"subscription":"sub_2"}}}`
		inv, err := parseInvoice(json.RawMessage(raw))
		require.NoError(t, err)
		assert.Equal(t, "sub_2", inv.subscriptionID())
	})

	t.Run("one-off invoice has no subscription", func(t *testing.T) {
		inv, err := parseInvoice(json.RawMessage(`{"id":"in_3","amount_paid":500}`))
		require.NoError(t, err)
		assert.Empty(t, inv.subscriptionID())
		assert.Equal(t, int64(500), inv.AmountPaid)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := parseInvoice(json.RawMessage(`{`))
		assert.Error(t, err)
	})
}

func TestParseSubscriptionEvent(t *testing.T) {
	raw := `{"id":"sub_1","status":"active","customer":"cus_1","current_period_end":1760000000,"cancel_at_period_end":true,"metadata":{"plan_id":"3","user_id":"42"}}`
	sub, err := parseSubscription(json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, int64(1760000000), sub.CurrentPeriodEnd)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, "3", sub.Metadata["plan_id"])
	assert.Equal(t, "42", sub.Metadata["user_id"])
}

func TestParsePaymentAmount(t *testing.T) {
	pay, err := parsePayment(json.RawMessage(`{"id":"pi_1","customer":"cus_1","amount":1000,"amount_received":900}`))
	require.NoError(t, err)
	assert.Equal(t, "cus_1", pay.Customer)
	assert.Equal(t, int64(900), pay.amount())

	pay, err = parsePayment(json.RawMessage(`{"id":"ch_1","amount":1000}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pay.amount())

	_, err = parsePayment(json.RawMessage(`{`))
	assert.Error(t, err)
}

func TestParseCheckoutMetadata(t *testing.T) {
	meta, err := parseCheckoutMetadata(map[string]string{
		"kind":           "credit_purchase",
		"user_id":        "42",
		"local_order_id": "01ABC",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), meta.UserID)
	assert.Equal(t, "01ABC", meta.LocalOrderID)
	assert.Equal(t, "credit_purchase", meta.Kind)

	meta, err = parseCheckoutMetadata(map[string]string{
		"subscription_id": "7",
		"plan_id":         "3",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), meta.SubscriptionID)
	assert.Equal(t, int64(3), meta.PlanID)

	_, err = parseCheckoutMetadata(map[string]string{"user_id": "abc"})
	assert.Error(t, err)

	meta, err = parseCheckoutMetadata(nil)
	require.NoError(t, err)
	assert.Zero(t, meta.UserID)
}

func TestCreditsForAmount(t *testing.T) {
	tests := []struct {
		name        string
		amountCents int64
		price       float64
		want        int
	}{
		{"exact multiple", 10000, 10.0, 10},
		{"rounds down", 10500, 10.0, 10},
		{"below one credit", 900, 10.0, 0},
		{"fractional price", 2500, 2.5, 10},
		{"zero price yields nothing", 10000, 0, 0},
		{"negative amount yields nothing", -100, 10.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, creditsForAmount(tt.amountCents, tt.price))
		})
	}
}

func TestMapStripeSubStatus(t *testing.T) {
	tests := []struct {
		in   string
		want subscription.Status
		ok   bool
	}{
		{"active", subscription.StatusAtiva, true},
		{"trialing", subscription.StatusAtiva, true},
		{"past_due", subscription.StatusInativa, true},
		{"unpaid", subscription.StatusInativa, true},
		{"paused", subscription.StatusInativa, true},
		{"canceled", subscription.StatusCancelada, true},
		{"incomplete", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MapSubscriptionStatus(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestSubscriptionStatusTransitions(t *testing.T) {
	assert.True(t, subscription.StatusAtiva.CanTransitionTo(subscription.StatusCancelada))
	assert.True(t, subscription.StatusAtiva.CanTransitionTo(subscription.StatusInativa))
	assert.True(t, subscription.StatusInativa.CanTransitionTo(subscription.StatusAtiva))
	assert.True(t, subscription.StatusCancelada.CanTransitionTo(subscription.StatusAtiva))
	assert.False(t, subscription.StatusCancelada.CanTransitionTo(subscription.StatusInativa))
	assert.True(t, subscription.StatusAtiva.CanTransitionTo(subscription.StatusAtiva))
}
