// internal/service/billing/webhook_service.go
package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	domainbilling "compatlab-service/internal/domain/billing"
	"compatlab-service/internal/domain/credit"
	"compatlab-service/internal/domain/subscription"
	"compatlab-service/internal/domain/user"
	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// Notifier queues a message for delivery after the surrounding
// transaction has committed. Implementations must never block the
// caller on SMTP.
type Notifier interface {
	Enqueue(to, subject, body string)
}

type WebhookService struct {
	eventRepo    EventStore
	userRepo     UserStore
	subRepo      SubscriptionStore
	planRepo     PlanStore
	packetRepo   PacketStore
	purchaseRepo PurchaseStore
	auditRepo    AuditStore
	ledger       ConfigSource
	notifier     Notifier
	db           TxBeginner
	logger       *zap.Logger

	webhookSecret string
}

func NewWebhookService(
	eventRepo EventStore,
	userRepo UserStore,
	subRepo SubscriptionStore,
	planRepo PlanStore,
	packetRepo PacketStore,
	purchaseRepo PurchaseStore,
	auditRepo AuditStore,
	ledgerSvc ConfigSource,
	notifier Notifier,
	db TxBeginner,
	logger *zap.Logger,
	webhookSecret string,
) *WebhookService {
	return &WebhookService{
		eventRepo:     eventRepo,
		userRepo:      userRepo,
		subRepo:       subRepo,
		planRepo:      planRepo,
		packetRepo:    packetRepo,
		purchaseRepo:  purchaseRepo,
		auditRepo:     auditRepo,
		ledger:        ledgerSvc,
		notifier:      notifier,
		db:            db,
		logger:        logger,
		webhookSecret: webhookSecret,
	}
}

// HandleEvent runs the full webhook pipeline: signature check, event
// dedup, dispatch, and the processed flip inside the same transaction
// as the side effects. The returned status is what Stripe sees: 400
// tells it to stop, 500 tells it to retry, 200 settles the delivery.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) (int, error) {
	if s.webhookSecret == "" {
		return http.StatusBadRequest, fmt.Errorf("webhook secret not configured")
	}

	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return http.StatusBadRequest, fmt.Errorf("invalid webhook signature: %w", err)
	}

	kind := classifyEvent(event.Type)
	if kind == kindIgnored {
		// Record it so retries of unhandled types settle immediately.
		if _, err := s.eventRepo.BeginProcessing(ctx, event.ID, string(event.Type), payload); err != nil {
			return http.StatusInternalServerError, err
		}
		if err := s.eventRepo.MarkProcessed(ctx, event.ID); err != nil {
			return http.StatusInternalServerError, err
		}
		s.logger.Debug("ignored stripe event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
		)
		return http.StatusOK, nil
	}

	proceed, err := s.eventRepo.BeginProcessing(ctx, event.ID, string(event.Type), payload)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if !proceed {
		s.logger.Info("duplicate stripe event skipped", zap.String("event_id", event.ID))
		return http.StatusOK, nil
	}

	switch kind {
	case kindCheckoutCompleted:
		err = s.handleCheckoutCompleted(ctx, &event)
	case kindInvoicePaid:
		err = s.handleInvoicePaid(ctx, &event)
	case kindInvoicePaymentFailed:
		err = s.handleInvoicePaymentFailed(ctx, &event)
	case kindSubscriptionUpdated:
		err = s.handleSubscriptionUpdated(ctx, &event)
	case kindSubscriptionDeleted:
		err = s.handleSubscriptionDeleted(ctx, &event)
	case kindPaymentConfirmed:
		err = s.handlePaymentConfirmed(ctx, &event)
	}
	if err != nil {
		s.logger.Error("stripe event processing failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		return http.StatusInternalServerError, err
	}

	return http.StatusOK, nil
}

func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logger.Info("checkout session not paid yet, settling event",
			zap.String("session_id", sess.ID),
			zap.String("payment_status", string(sess.PaymentStatus)),
		)
		return s.eventRepo.MarkProcessed(ctx, event.ID)
	}

	meta, err := parseCheckoutMetadata(sess.Metadata)
	if err != nil {
		return err
	}

	if sess.Subscription != nil && sess.Subscription.ID != "" {
		return s.activateSubscription(ctx, event.ID, &sess, meta)
	}
	return s.settleCreditPurchase(ctx, event.ID, &sess, meta)
}

// activateSubscription finishes a subscription checkout: stamps the
// Stripe id on the local record, moves it to ativa, links the owner,
// and grants the first month of credits in one transaction.
func (s *WebhookService) activateSubscription(ctx context.Context, eventID string, sess *stripe.CheckoutSession, meta checkoutMetadata) error {
	if meta.SubscriptionID == 0 {
		return fmt.Errorf("checkout session %s has no subscription_id metadata", sess.ID)
	}
	sub, err := s.subRepo.FindByID(ctx, meta.SubscriptionID)
	if err != nil {
		return fmt.Errorf("local subscription %d not found: %w", meta.SubscriptionID, err)
	}
	pl, err := s.planRepo.FindByID(ctx, sub.IDPlano)
	if err != nil {
		return fmt.Errorf("plan %d not found: %w", sub.IDPlano, err)
	}
	owner, err := s.userRepo.FindByID(ctx, sub.IDUsuarioResponsavel)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.subRepo.SetStripeIDWithTx(ctx, tx, sub.ID, sess.Subscription.ID); err != nil {
		return err
	}
	if sub.Status.CanTransitionTo(subscription.StatusAtiva) {
		if err := s.subRepo.UpdateStatusWithTx(ctx, tx, sub.ID, subscription.StatusAtiva); err != nil {
			return err
		}
	}
	// One active subscription per owner.
	if err := s.subRepo.DeactivateOthersWithTx(ctx, tx, owner.ID, sub.ID); err != nil {
		return err
	}

	// First claim wins: a user already linked to another subscription
	// keeps their existing link.
	linked, err := s.userRepo.LinkSubscriptionWithTx(ctx, tx, owner.ID, sub.ID)
	if err != nil {
		return err
	}
	if linked == 0 && (!owner.VinculoAssinatura.Valid || owner.VinculoAssinatura.Int64 != sub.ID) {
		s.logger.Warn("subscription owner already linked elsewhere",
			zap.Int64("user_id", owner.ID),
			zap.Int64("subscription_id", sub.ID),
		)
	}

	if err := s.grantMonthlyCredits(ctx, tx, owner.ID, pl.QuantidadeCreditoMensal,
		credit.OriginCheckoutSession(sess.Subscription.ID, sess.ID)); err != nil {
		return err
	}
	if err := s.userRepo.MarkMadePurchaseWithTx(ctx, tx, owner.ID); err != nil {
		return err
	}
	if err := s.eventRepo.MarkProcessedWithTx(ctx, tx, eventID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("subscription activated",
		zap.Int64("subscription_id", sub.ID),
		zap.String("stripe_subscription_id", sess.Subscription.ID),
		zap.Int64("owner_id", owner.ID),
	)
	s.notifier.Enqueue(owner.Email, "Assinatura ativada",
		fmt.Sprintf("Sua assinatura do plano %s está ativa. %d créditos foram adicionados à sua conta.",
			pl.Nome, pl.QuantidadeCreditoMensal))
	return nil
}

// settleCreditPurchase finishes a one-off credit checkout: records
// the purchase and the revenue line, then grants the credits. Two
// distinct event ids can describe the same session (a replayed
// delivery, or checkout plus async payment confirmation), so the
// session id is checked before anything is written.
func (s *WebhookService) settleCreditPurchase(ctx context.Context, eventID string, sess *stripe.CheckoutSession, meta checkoutMetadata) error {
	if existing, err := s.purchaseRepo.FindBySessionID(ctx, sess.ID); err != nil {
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			return err
		}
	} else if existing != nil {
		s.logger.Info("checkout session already settled",
			zap.String("session_id", sess.ID),
			zap.Int64("purchase_id", existing.ID),
		)
		return s.eventRepo.MarkProcessed(ctx, eventID)
	}

	u, err := s.resolvePurchaser(ctx, sess, meta)
	if err != nil {
		return err
	}
	if u == nil {
		s.logger.Warn("checkout session purchaser could not be resolved, settling event",
			zap.String("session_id", sess.ID),
			zap.String("event_id", eventID),
		)
		return s.eventRepo.MarkProcessed(ctx, eventID)
	}
	cfg, err := s.ledger.CurrentConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	amountMajor := float64(sess.AmountTotal) / 100.0
	credits := creditsForAmount(sess.AmountTotal, cfg.PrecoDoCredito)
	if credits <= 0 {
		return fmt.Errorf("checkout session %s paid %.2f, not enough for one credit", sess.ID, amountMajor)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	compra := &domainbilling.Compra{
		IDUsuario:          u.ID,
		QuantidadeCreditos: credits,
		ValorPago:          amountMajor,
		StripeSessionID:    sess.ID,
	}
	if err := s.purchaseRepo.CreateWithTx(ctx, tx, compra); err != nil {
		return err
	}
	receita := &domainbilling.Receita{
		Valor:     amountMajor,
		Descricao: fmt.Sprintf("compra de %d créditos (sessao %s)", credits, sess.ID),
	}
	if err := s.purchaseRepo.RecordRevenueWithTx(ctx, tx, receita); err != nil {
		return err
	}

	if err := s.grantMonthlyCredits(ctx, tx, u.ID, credits,
		credit.OriginSession(sess.ID, meta.LocalOrderID)); err != nil {
		return err
	}
	if err := s.userRepo.MarkMadePurchaseWithTx(ctx, tx, u.ID); err != nil {
		return err
	}
	if err := s.eventRepo.MarkProcessedWithTx(ctx, tx, eventID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("credit purchase settled",
		zap.Int64("user_id", u.ID),
		zap.String("session_id", sess.ID),
		zap.Int("credits", credits),
	)
	s.notifier.Enqueue(u.Email, "Compra de créditos confirmada",
		fmt.Sprintf("Sua compra de %d créditos foi confirmada.", credits))
	return nil
}

// resolvePurchaser finds the account a checkout session belongs to:
// the user_id metadata first, then the Stripe customer id, then the
// email the payer typed at checkout. Returns nil when nothing matches.
func (s *WebhookService) resolvePurchaser(ctx context.Context, sess *stripe.CheckoutSession, meta checkoutMetadata) (*user.User, error) {
	if meta.UserID != 0 {
		u, err := s.userRepo.FindByID(ctx, meta.UserID)
		if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
	}

	if sess.Customer != nil && sess.Customer.ID != "" {
		u, err := s.userRepo.FindByStripeCustomerID(ctx, sess.Customer.ID)
		if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
	}

	email := sess.CustomerEmail
	if email == "" && sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}
	if email != "" {
		u, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
	}
	return nil, nil
}

func (s *WebhookService) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	inv, err := parseInvoice(event.Data.Raw)
	if err != nil {
		return err
	}
	subID := inv.subscriptionID()
	if subID == "" {
		// One-off invoice, nothing of ours rides on it.
		return s.eventRepo.MarkProcessed(ctx, event.ID)
	}

	sub, err := s.subRepo.FindByStripeID(ctx, subID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			s.logger.Warn("invoice for unknown subscription",
				zap.String("stripe_subscription_id", subID),
				zap.String("invoice_id", inv.ID),
			)
			return s.eventRepo.MarkProcessed(ctx, event.ID)
		}
		return err
	}
	pl, err := s.planRepo.FindByID(ctx, sub.IDPlano)
	if err != nil {
		return err
	}
	owner, err := s.userRepo.FindByID(ctx, sub.IDUsuarioResponsavel)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if sub.Status != subscription.StatusAtiva && sub.Status.CanTransitionTo(subscription.StatusAtiva) {
		if err := s.subRepo.UpdateStatusWithTx(ctx, tx, sub.ID, subscription.StatusAtiva); err != nil {
			return err
		}
	}
	if inv.PeriodEnd > 0 {
		if err := s.subRepo.SetBillingPeriodWithTx(ctx, tx, sub.ID,
			time.Unix(inv.PeriodEnd, 0), sub.CancelarFimPeriodo); err != nil {
			return err
		}
	}

	// Renewal credits always land on the owner's ledger, never on
	// linked members.
	if err := s.grantMonthlyCredits(ctx, tx, owner.ID, pl.QuantidadeCreditoMensal,
		credit.OriginInvoice(subID, inv.ID)); err != nil {
		return err
	}
	if err := s.eventRepo.MarkProcessedWithTx(ctx, tx, event.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("renewal credited",
		zap.Int64("subscription_id", sub.ID),
		zap.String("invoice_id", inv.ID),
		zap.Int("credits", pl.QuantidadeCreditoMensal),
	)
	s.notifier.Enqueue(owner.Email, "Renovação confirmada",
		fmt.Sprintf("Sua assinatura foi renovada e %d créditos foram adicionados.", pl.QuantidadeCreditoMensal))
	return nil
}

func (s *WebhookService) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) error {
	inv, err := parseInvoice(event.Data.Raw)
	if err != nil {
		return err
	}
	subID := inv.subscriptionID()
	if subID == "" {
		return s.eventRepo.MarkProcessed(ctx, event.ID)
	}
	return s.transitionByStripeID(ctx, event.ID, subID, subscription.StatusInativa,
		func(tx pgx.Tx, sub *subscription.Subscription) error {
			return s.auditRepo.CreateWithTx(ctx, tx, &domainbilling.AuditLog{
				IDUsuario: sub.IDUsuarioResponsavel,
				Acao:      "pagamento_falhou",
				Detalhe:   fmt.Sprintf("fatura %s não pôde ser cobrada", inv.ID),
			})
		},
		func(sub *subscription.Subscription) {
			owner, err := s.userRepo.FindByID(ctx, sub.IDUsuarioResponsavel)
			if err != nil {
				return
			}
			s.notifier.Enqueue(owner.Email, "Falha no pagamento",
				"Não conseguimos cobrar sua assinatura. Atualize sua forma de pagamento para manter o acesso.")
		})
}

func (s *WebhookService) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	sub, err := parseSubscription(event.Data.Raw)
	if err != nil {
		return err
	}
	status, ok := MapSubscriptionStatus(sub.Status)
	if !ok {
		// Intermediate states carry no local meaning.
		return s.eventRepo.MarkProcessed(ctx, event.ID)
	}

	if _, err := s.subRepo.FindByStripeID(ctx, sub.ID); err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return s.adoptStripeSubscription(ctx, event.ID, sub, status)
		}
		return err
	}
	return s.transitionByStripeID(ctx, event.ID, sub.ID, status,
		func(tx pgx.Tx, local *subscription.Subscription) error {
			if sub.CurrentPeriodEnd <= 0 {
				return nil
			}
			return s.subRepo.SetBillingPeriodWithTx(ctx, tx, local.ID,
				time.Unix(sub.CurrentPeriodEnd, 0), sub.CancelAtPeriodEnd)
		}, nil)
}

// adoptStripeSubscription handles a subscription Stripe knows about but
// we do not: created events, or updates that raced ahead of checkout
// completion. The checkout metadata stamped on the Stripe subscription
// tells us which local records it belongs to.
func (s *WebhookService) adoptStripeSubscription(ctx context.Context, eventID string, ev *subscriptionEvent, status subscription.Status) error {
	planID, _ := strconv.ParseInt(ev.Metadata["plan_id"], 10, 64)
	ownerID, _ := strconv.ParseInt(ev.Metadata["user_id"], 10, 64)
	if planID == 0 || ownerID == 0 {
		s.logger.Warn("stripe subscription without local metadata, settling event",
			zap.String("stripe_subscription_id", ev.ID),
			zap.String("event_id", eventID),
		)
		return s.eventRepo.MarkProcessed(ctx, eventID)
	}

	// A pending local row from checkout may exist; adopt it instead of
	// creating a second one.
	var pending *subscription.Subscription
	if localID, _ := strconv.ParseInt(ev.Metadata["subscription_id"], 10, 64); localID != 0 {
		if found, err := s.subRepo.FindByID(ctx, localID); err == nil {
			pending = found
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var localID int64
	if pending != nil {
		localID = pending.ID
		if err := s.subRepo.SetStripeIDWithTx(ctx, tx, localID, ev.ID); err != nil {
			return err
		}
		if pending.Status != status && pending.Status.CanTransitionTo(status) {
			if err := s.subRepo.UpdateStatusWithTx(ctx, tx, localID, status); err != nil {
				return err
			}
		}
	} else {
		created := &subscription.Subscription{
			IDPlano:              planID,
			IDUsuarioResponsavel: ownerID,
			Status:               status,
			StripeSubscriptionID: sql.NullString{String: ev.ID, Valid: true},
		}
		if err := s.subRepo.CreateWithTx(ctx, tx, created); err != nil {
			return err
		}
		localID = created.ID
	}

	if status == subscription.StatusAtiva {
		if err := s.subRepo.DeactivateOthersWithTx(ctx, tx, ownerID, localID); err != nil {
			return err
		}
		if _, err := s.userRepo.LinkSubscriptionWithTx(ctx, tx, ownerID, localID); err != nil {
			return err
		}
	}
	if ev.CurrentPeriodEnd > 0 {
		if err := s.subRepo.SetBillingPeriodWithTx(ctx, tx, localID,
			time.Unix(ev.CurrentPeriodEnd, 0), ev.CancelAtPeriodEnd); err != nil {
			return err
		}
	}
	if err := s.eventRepo.MarkProcessedWithTx(ctx, tx, eventID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("stripe subscription adopted",
		zap.Int64("subscription_id", localID),
		zap.String("stripe_subscription_id", ev.ID),
		zap.Int64("owner_id", ownerID),
		zap.String("status", string(status)),
	)
	return nil
}

func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	sub, err := parseSubscription(event.Data.Raw)
	if err != nil {
		return err
	}

	local, err := s.subRepo.FindByStripeID(ctx, sub.ID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return s.eventRepo.MarkProcessed(ctx, event.ID)
		}
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	members, err := s.userRepo.FindBySubscription(ctx, local.ID)
	if err != nil {
		return err
	}

	if local.Status.CanTransitionTo(subscription.StatusCancelada) {
		if err := s.subRepo.UpdateStatusWithTx(ctx, tx, local.ID, subscription.StatusCancelada); err != nil {
			return err
		}
	}
	if err := s.userRepo.UnlinkAllFromSubscription(ctx, tx, local.ID); err != nil {
		return err
	}
	for i := range members {
		if err := s.auditRepo.CreateWithTx(ctx, tx, &domainbilling.AuditLog{
			IDUsuario: members[i].ID,
			Acao:      "desvinculado_assinatura",
			Detalhe:   fmt.Sprintf("assinatura %d cancelada pelo Stripe", local.ID),
		}); err != nil {
			return err
		}
	}
	if err := s.eventRepo.MarkProcessedWithTx(ctx, tx, event.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("subscription cancelled by stripe",
		zap.Int64("subscription_id", local.ID),
		zap.String("stripe_subscription_id", sub.ID),
	)
	if owner, err := s.userRepo.FindByID(ctx, local.IDUsuarioResponsavel); err == nil {
		s.notifier.Enqueue(owner.Email, "Assinatura cancelada",
			"Sua assinatura foi cancelada. Os créditos já recebidos continuam válidos até expirarem.")
	}
	return nil
}

// handlePaymentConfirmed flips the payer's ja_fez_compra flag. The
// grant itself rides on checkout.session.completed or invoice.paid;
// this event only proves money moved.
func (s *WebhookService) handlePaymentConfirmed(ctx context.Context, event *stripe.Event) error {
	pay, err := parsePayment(event.Data.Raw)
	if err != nil {
		return err
	}
	if pay.Customer == "" {
		return s.eventRepo.MarkProcessed(ctx, event.ID)
	}

	u, err := s.userRepo.FindByStripeCustomerID(ctx, pay.Customer)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			s.logger.Warn("payment for unknown customer",
				zap.String("stripe_customer_id", pay.Customer),
				zap.String("payment_id", pay.ID),
			)
			return s.eventRepo.MarkProcessed(ctx, event.ID)
		}
		return err
	}
	if u.JaFezCompra {
		// Flag only flips once.
		return s.eventRepo.MarkProcessed(ctx, event.ID)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.userRepo.MarkMadePurchaseWithTx(ctx, tx, u.ID); err != nil {
		return err
	}
	if err := s.eventRepo.MarkProcessedWithTx(ctx, tx, event.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("first payment confirmed",
		zap.Int64("user_id", u.ID),
		zap.String("payment_id", pay.ID),
		zap.Int64("amount_cents", pay.amount()),
	)
	return nil
}

// transitionByStripeID moves a subscription through the state machine.
// extra runs inside the transaction, after post-commit.
func (s *WebhookService) transitionByStripeID(ctx context.Context, eventID, stripeSubID string, to subscription.Status, extra func(pgx.Tx, *subscription.Subscription) error, after func(*subscription.Subscription)) error {
	sub, err := s.subRepo.FindByStripeID(ctx, stripeSubID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			s.logger.Warn("event for unknown subscription",
				zap.String("stripe_subscription_id", stripeSubID))
			return s.eventRepo.MarkProcessed(ctx, eventID)
		}
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	applied := sub.Status != to && sub.Status.CanTransitionTo(to)
	if applied {
		if err := s.subRepo.UpdateStatusWithTx(ctx, tx, sub.ID, to); err != nil {
			return err
		}
	} else if sub.Status != to {
		s.logger.Info("subscription transition skipped",
			zap.Int64("subscription_id", sub.ID),
			zap.String("from", string(sub.Status)),
			zap.String("to", string(to)),
		)
	}
	if extra != nil {
		if err := extra(tx, sub); err != nil {
			return err
		}
	}
	if err := s.eventRepo.MarkProcessedWithTx(ctx, tx, eventID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	if applied {
		s.logger.Info("subscription status updated",
			zap.Int64("subscription_id", sub.ID),
			zap.String("status", string(to)),
		)
	}
	if after != nil {
		after(sub)
	}
	return nil
}

// grantMonthlyCredits appends an idempotent stripe-origin packet. A
// duplicate grant is logged and skipped, the surrounding transaction
// still commits.
func (s *WebhookService) grantMonthlyCredits(ctx context.Context, tx pgx.Tx, userID int64, quantity int, origem string) error {
	p := &credit.Packet{
		IDUsuario:       userID,
		Quantidade:      quantity,
		Origem:          origem,
		DataRecebimento: sql.NullTime{Time: time.Now(), Valid: true},
	}
	inserted, err := s.packetRepo.InsertIdempotentWithTx(ctx, tx, p)
	if err != nil {
		return err
	}
	if !inserted {
		s.logger.Warn("duplicate credit grant skipped",
			zap.Int64("user_id", userID),
			zap.String("origem", origem),
		)
	}
	return nil
}

// MapSubscriptionStatus translates Stripe's subscription status into
// the local state machine. Intermediate states map to nothing.
func MapSubscriptionStatus(status string) (subscription.Status, bool) {
	switch status {
	case "active", "trialing":
		return subscription.StatusAtiva, true
	case "past_due", "unpaid", "paused":
		return subscription.StatusInativa, true
	case "canceled":
		return subscription.StatusCancelada, true
	default:
		return "", false
	}
}
