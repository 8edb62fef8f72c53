package billing

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	domainbilling "compatlab-service/internal/domain/billing"
	"compatlab-service/internal/domain/credit"
	"compatlab-service/internal/domain/plan"
	"compatlab-service/internal/domain/subscription"
	"compatlab-service/internal/domain/sysconfig"
	"compatlab-service/internal/domain/user"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/pkg/pgxtest"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// --- in-memory stores ---

type fakeEventStore struct {
	payloads  map[string][]byte
	processed map[string]bool
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		payloads:  make(map[string][]byte),
		processed: make(map[string]bool),
	}
}

func (f *fakeEventStore) BeginProcessing(ctx context.Context, eventID, eventType string, payload []byte) (bool, error) {
	if !f.processed[eventID] {
		f.payloads[eventID] = payload
	}
	return !f.processed[eventID], nil
}

func (f *fakeEventStore) MarkProcessed(ctx context.Context, eventID string) error {
	f.processed[eventID] = true
	return nil
}

func (f *fakeEventStore) MarkProcessedWithTx(ctx context.Context, tx pgx.Tx, eventID string) error {
	f.processed[eventID] = true
	return nil
}

type fakeUsers struct {
	byID      map[int64]*user.User
	subs      *fakeSubs
	purchased []int64
}

func (f *fakeUsers) FindByID(ctx context.Context, id int64) (*user.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeUsers) FindByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	for _, u := range f.byID {
		if u.StripeCustomerID.String == customerID {
			return u, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeUsers) FindBySubscription(ctx context.Context, subscriptionID int64) ([]user.User, error) {
	var out []user.User
	for _, u := range f.byID {
		if u.VinculoAssinatura.Valid && u.VinculoAssinatura.Int64 == subscriptionID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) MarkMadePurchaseWithTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	f.purchased = append(f.purchased, userID)
	if u, ok := f.byID[userID]; ok {
		u.JaFezCompra = true
	}
	return nil
}

// LinkSubscriptionWithTx mirrors the repository rule: unlinked users
// link, and a stale link to the user's own non-active subscription is
// replaced; anything else is kept.
func (f *fakeUsers) LinkSubscriptionWithTx(ctx context.Context, tx pgx.Tx, userID, subscriptionID int64) (int64, error) {
	u, ok := f.byID[userID]
	if !ok {
		return 0, nil
	}
	if u.VinculoAssinatura.Valid && u.VinculoAssinatura.Int64 != subscriptionID {
		cur, ok := f.subs.byID[u.VinculoAssinatura.Int64]
		if !ok || cur.IDUsuarioResponsavel != userID || cur.Status == subscription.StatusAtiva {
			return 0, nil
		}
	}
	u.VinculoAssinatura = sql.NullInt64{Int64: subscriptionID, Valid: true}
	return 1, nil
}

func (f *fakeUsers) UnlinkAllFromSubscription(ctx context.Context, tx pgx.Tx, subscriptionID int64) error {
	for _, u := range f.byID {
		if u.VinculoAssinatura.Valid && u.VinculoAssinatura.Int64 == subscriptionID {
			u.VinculoAssinatura = sql.NullInt64{}
		}
	}
	return nil
}

type fakeSubs struct {
	byID  map[int64]*subscription.Subscription
	calls []string
}

func (f *fakeSubs) FindByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeSubs) FindByStripeID(ctx context.Context, stripeID string) (*subscription.Subscription, error) {
	for _, s := range f.byID {
		if s.StripeSubscriptionID.String == stripeID {
			return s, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeSubs) CreateWithTx(ctx context.Context, tx pgx.Tx, s *subscription.Subscription) error {
	s.ID = int64(len(f.byID) + 1)
	f.byID[s.ID] = s
	return nil
}

func (f *fakeSubs) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status subscription.Status) error {
	f.calls = append(f.calls, fmt.Sprintf("update_status:%d:%s", id, status))
	if s, ok := f.byID[id]; ok {
		s.Status = status
	}
	return nil
}

func (f *fakeSubs) SetStripeIDWithTx(ctx context.Context, tx pgx.Tx, id int64, stripeID string) error {
	f.calls = append(f.calls, fmt.Sprintf("set_stripe_id:%d", id))
	if s, ok := f.byID[id]; ok {
		s.StripeSubscriptionID = sql.NullString{String: stripeID, Valid: true}
	}
	return nil
}

func (f *fakeSubs) SetBillingPeriodWithTx(ctx context.Context, tx pgx.Tx, id int64, periodEnd time.Time, cancelAtPeriodEnd bool) error {
	f.calls = append(f.calls, fmt.Sprintf("set_billing_period:%d", id))
	return nil
}

func (f *fakeSubs) DeactivateOthersWithTx(ctx context.Context, tx pgx.Tx, ownerID, keepID int64) error {
	f.calls = append(f.calls, fmt.Sprintf("deactivate_others:%d:%d", ownerID, keepID))
	for _, s := range f.byID {
		if s.IDUsuarioResponsavel == ownerID && s.ID != keepID && s.Status == subscription.StatusAtiva {
			s.Status = subscription.StatusInativa
		}
	}
	return nil
}

type fakePlans struct {
	byID map[int64]*plan.Plan
}

func (f *fakePlans) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, xerrors.ErrNotFound
}

type fakePackets struct {
	packets []credit.Packet
	origins map[string]bool
}

func newFakePackets() *fakePackets {
	return &fakePackets{origins: make(map[string]bool)}
}

func (f *fakePackets) InsertIdempotentWithTx(ctx context.Context, tx pgx.Tx, p *credit.Packet) (bool, error) {
	key := fmt.Sprintf("%s|%d", p.Origem, p.IDUsuario)
	if f.origins[key] {
		return false, nil
	}
	f.origins[key] = true
	f.packets = append(f.packets, *p)
	return true, nil
}

type fakePurchases struct {
	bySession map[string]*domainbilling.Compra
	revenues  []domainbilling.Receita
}

func newFakePurchases() *fakePurchases {
	return &fakePurchases{bySession: make(map[string]*domainbilling.Compra)}
}

func (f *fakePurchases) CreateWithTx(ctx context.Context, tx pgx.Tx, c *domainbilling.Compra) error {
	c.ID = int64(len(f.bySession) + 1)
	f.bySession[c.StripeSessionID] = c
	return nil
}

func (f *fakePurchases) FindBySessionID(ctx context.Context, sessionID string) (*domainbilling.Compra, error) {
	if c, ok := f.bySession[sessionID]; ok {
		return c, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakePurchases) RecordRevenueWithTx(ctx context.Context, tx pgx.Tx, rec *domainbilling.Receita) error {
	f.revenues = append(f.revenues, *rec)
	return nil
}

type fakeAudit struct {
	logs []domainbilling.AuditLog
}

func (f *fakeAudit) CreateWithTx(ctx context.Context, tx pgx.Tx, log *domainbilling.AuditLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

type fakeConfigSource struct{}

func (fakeConfigSource) CurrentConfig(ctx context.Context) (*sysconfig.SystemConfig, error) {
	return &sysconfig.SystemConfig{
		PrecoDoCredito:               5,
		PrecoDaSolicitacaoEmCreditos: 1,
		ValidadeEmDias:               365,
		Vigente:                      true,
	}, nil
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Enqueue(to, subject, body string) {
	f.sent = append(f.sent, to+"|"+subject)
}

type webhookFixture struct {
	svc       *WebhookService
	events    *fakeEventStore
	users     *fakeUsers
	subs      *fakeSubs
	packets   *fakePackets
	purchases *fakePurchases
	notifier  *fakeNotifier
}

func newWebhookFixture() *webhookFixture {
	subs := &fakeSubs{byID: make(map[int64]*subscription.Subscription)}
	f := &webhookFixture{
		events:    newFakeEventStore(),
		users:     &fakeUsers{byID: make(map[int64]*user.User), subs: subs},
		subs:      subs,
		packets:   newFakePackets(),
		purchases: newFakePurchases(),
		notifier:  &fakeNotifier{},
	}
	f.svc = NewWebhookService(
		f.events, f.users, f.subs,
		&fakePlans{byID: map[int64]*plan.Plan{
			1: {ID: 1, Nome: "Pro", QuantidadeCreditoMensal: 30},
		}},
		f.packets, f.purchases, &fakeAudit{},
		fakeConfigSource{}, f.notifier, &pgxtest.DB{},
		zap.NewNop(), "whsec_test",
	)
	return f
}

func checkoutEvent(id, raw string) *stripe.Event {
	return &stripe.Event{
		ID:   id,
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: []byte(raw)},
	}
}

func TestSettleCreditPurchase(t *testing.T) {
	f := newWebhookFixture()
	f.users.byID[7] = &user.User{ID: 7, Email: "ana@example.com"}

	// R$10,00 at R$5,00 a credit buys 2 credits.
	raw := `{"id":"cs_1","payment_status":"paid","amount_total":1000,
		"metadata":{"kind":"credit_purchase","user_id":"7"}}`
	err := f.svc.handleCheckoutCompleted(context.Background(), checkoutEvent("evt_1", raw))
	require.NoError(t, err)

	require.Contains(t, f.purchases.bySession, "cs_1")
	assert.Equal(t, int64(7), f.purchases.bySession["cs_1"].IDUsuario)
	assert.Equal(t, 2, f.purchases.bySession["cs_1"].QuantidadeCreditos)
	require.Len(t, f.packets.packets, 1)
	assert.Equal(t, 2, f.packets.packets[0].Quantidade)
	assert.True(t, f.events.processed["evt_1"])
	assert.Contains(t, f.users.purchased, int64(7))
}

func TestSettleCreditPurchaseSecondDeliverySettles(t *testing.T) {
	f := newWebhookFixture()
	f.users.byID[7] = &user.User{ID: 7, Email: "ana@example.com"}

	raw := `{"id":"cs_1","payment_status":"paid","amount_total":1000,
		"metadata":{"kind":"credit_purchase","user_id":"7"}}`
	require.NoError(t, f.svc.handleCheckoutCompleted(context.Background(), checkoutEvent("evt_1", raw)))

	// A different event id for the same session must not insert a
	// second purchase row and must settle instead of erroring.
	err := f.svc.handleCheckoutCompleted(context.Background(), checkoutEvent("evt_2", raw))
	require.NoError(t, err)

	assert.Len(t, f.purchases.bySession, 1)
	assert.Len(t, f.packets.packets, 1)
	assert.True(t, f.events.processed["evt_2"])
}

func TestSettleCreditPurchaseResolvesByCustomerID(t *testing.T) {
	f := newWebhookFixture()
	f.users.byID[7] = &user.User{
		ID:               7,
		Email:            "ana@example.com",
		StripeCustomerID: sql.NullString{String: "cus_9", Valid: true},
	}

	raw := `{"id":"cs_2","payment_status":"paid","amount_total":500,
		"customer":"cus_9","metadata":{"kind":"credit_purchase"}}`
	err := f.svc.handleCheckoutCompleted(context.Background(), checkoutEvent("evt_3", raw))
	require.NoError(t, err)

	require.Contains(t, f.purchases.bySession, "cs_2")
	assert.Equal(t, int64(7), f.purchases.bySession["cs_2"].IDUsuario)
}

func TestSettleCreditPurchaseResolvesByEmail(t *testing.T) {
	f := newWebhookFixture()
	f.users.byID[7] = &user.User{ID: 7, Email: "ana@example.com"}

	raw := `{"id":"cs_3","payment_status":"paid","amount_total":500,
		"customer_details":{"email":"Ana@Example.com"},
		"metadata":{"kind":"credit_purchase"}}`
	err := f.svc.handleCheckoutCompleted(context.Background(), checkoutEvent("evt_4", raw))
	require.NoError(t, err)

	require.Contains(t, f.purchases.bySession, "cs_3")
	assert.Equal(t, int64(7), f.purchases.bySession["cs_3"].IDUsuario)
}

func TestSettleCreditPurchaseUnknownPurchaserSettles(t *testing.T) {
	f := newWebhookFixture()

	raw := `{"id":"cs_4","payment_status":"paid","amount_total":500,
		"metadata":{"kind":"credit_purchase"}}`
	err := f.svc.handleCheckoutCompleted(context.Background(), checkoutEvent("evt_5", raw))
	require.NoError(t, err)

	assert.Empty(t, f.purchases.bySession)
	assert.Empty(t, f.packets.packets)
	assert.True(t, f.events.processed["evt_5"])
}

func TestActivateSubscriptionDeactivatesBeforeLinking(t *testing.T) {
	f := newWebhookFixture()
	f.users.byID[7] = &user.User{
		ID:                7,
		Email:             "ana@example.com",
		VinculoAssinatura: sql.NullInt64{Int64: 1, Valid: true},
	}
	f.subs.byID[1] = &subscription.Subscription{
		ID: 1, IDPlano: 1, IDUsuarioResponsavel: 7,
		Status: subscription.StatusAtiva,
	}
	f.subs.byID[2] = &subscription.Subscription{
		ID: 2, IDPlano: 1, IDUsuarioResponsavel: 7,
		Status: subscription.StatusInativa,
	}

	raw := `{"id":"cs_5","payment_status":"paid","subscription":"sub_9",
		"metadata":{"kind":"subscription","user_id":"7","plan_id":"1","subscription_id":"2"}}`
	err := f.svc.handleCheckoutCompleted(context.Background(), checkoutEvent("evt_6", raw))
	require.NoError(t, err)

	// The old subscription must be out of the way before the owner is
	// re-linked, or the stale link survives the new activation.
	assert.Contains(t, f.subs.calls, "deactivate_others:7:2")
	assert.Equal(t, subscription.StatusInativa, f.subs.byID[1].Status)
	assert.Equal(t, subscription.StatusAtiva, f.subs.byID[2].Status)
	require.True(t, f.users.byID[7].VinculoAssinatura.Valid)
	assert.Equal(t, int64(2), f.users.byID[7].VinculoAssinatura.Int64,
		"owner is moved off the stale link onto the new subscription")
	require.Len(t, f.packets.packets, 1)
	assert.Equal(t, 30, f.packets.packets[0].Quantidade)
	assert.True(t, f.events.processed["evt_6"])
}

func TestHandleEventStoresPayloadAndSkipsProcessedDuplicates(t *testing.T) {
	const secret = "whsec_test"
	f := newWebhookFixture()
	f.users.byID[7] = &user.User{ID: 7, Email: "ana@example.com"}

	payload := []byte(`{"id":"evt_10","api_version":"2025-07-30.basil","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_10","payment_status":"paid","amount_total":1000,
		"metadata":{"kind":"credit_purchase","user_id":"7"}}}}`)
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))

	status, err := f.svc.HandleEvent(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, payload, f.events.payloads["evt_10"], "raw payload is stored with the event")
	assert.Len(t, f.purchases.bySession, 1)

	// Redelivery of the settled event is a no-op before dispatch.
	status, err = f.svc.HandleEvent(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, f.purchases.bySession, 1)
	assert.Len(t, f.packets.packets, 1)
}
