// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"fmt"
	"math"

	domainbilling "compatlab-service/internal/domain/billing"
	"compatlab-service/internal/domain/plan"
	"compatlab-service/internal/domain/subscription"
	"compatlab-service/internal/domain/user"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/repository/postgres"
	"compatlab-service/internal/service/billing"
	"compatlab-service/internal/service/ledger"

	"go.uber.org/zap"
)

type SubscriptionService struct {
	subRepo   SubscriptionStore
	planRepo  *postgres.PlanRepository
	userRepo  *postgres.UserRepository
	auditRepo *postgres.AuditLogRepository
	gateway   billing.Gateway
	ledger    *ledger.LedgerService
	notifier  billing.Notifier
	db        *postgres.DB
	logger    *zap.Logger
}

func NewSubscriptionService(
	subRepo SubscriptionStore,
	planRepo *postgres.PlanRepository,
	userRepo *postgres.UserRepository,
	auditRepo *postgres.AuditLogRepository,
	gateway billing.Gateway,
	ledgerSvc *ledger.LedgerService,
	notifier billing.Notifier,
	db *postgres.DB,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subRepo:   subRepo,
		planRepo:  planRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		gateway:   gateway,
		ledger:    ledgerSvc,
		notifier:  notifier,
		db:        db,
		logger:    logger,
	}
}

// Subscribe creates a pending local subscription and opens the Stripe
// checkout that will activate it. The local id travels in the session
// metadata so the webhook can close the loop.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID int64, in *subscription.SubscribeInput, successURL, cancelURL string) (*domainbilling.CheckoutResponse, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	pl, err := s.planRepo.FindByID(ctx, in.IDPlano)
	if err != nil {
		return nil, err
	}

	if existing, err := s.subRepo.FindActiveByOwner(ctx, userID); err == nil && existing.Status == subscription.StatusAtiva {
		return nil, fmt.Errorf("%w: usuário já possui assinatura ativa", xerrors.ErrConflict)
	} else if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	customerID := u.StripeCustomerID.String
	if customerID == "" {
		customerID, err = s.gateway.EnsureCustomer(ctx, u.Email, u.Nome)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", xerrors.ErrExternalService, err)
		}
		if err := s.userRepo.SetStripeCustomerID(ctx, u.ID, customerID); err != nil {
			return nil, err
		}
	}

	sub := &subscription.Subscription{
		IDPlano:              pl.ID,
		IDUsuarioResponsavel: u.ID,
		Status:               subscription.StatusInativa,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID:        customerID,
		Mode:              "subscription",
		ProductName:       fmt.Sprintf("Plano %s", pl.Nome),
		UnitAmount:        int64(math.Round(pl.PrecoMensal * 100)),
		Quantity:          1,
		RecurringInterval: "month",
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		Metadata: map[string]string{
			"kind":            "subscription",
			"user_id":         fmt.Sprintf("%d", u.ID),
			"plan_id":         fmt.Sprintf("%d", pl.ID),
			"subscription_id": fmt.Sprintf("%d", sub.ID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrExternalService, err)
	}

	s.logger.Info("subscription checkout created",
		zap.Int64("user_id", u.ID),
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("plan_id", pl.ID),
		zap.String("session_id", sess.ID),
	)
	return &domainbilling.CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

// Detail returns the owner's subscription with its plan and members.
// The status is reconciled against Stripe on the way out, so a missed
// webhook does not leave the client looking at stale state.
func (s *SubscriptionService) Detail(ctx context.Context, ownerID int64) (*subscription.Detail, error) {
	sub, err := s.subRepo.FindActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.repairStatusDrift(ctx, sub)
	pl, err := s.planRepo.FindByID(ctx, sub.IDPlano)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	return &subscription.Detail{
		Subscription: sub,
		PlanName:     pl.Nome,
		IsEnterprise: pl.IsEnterprise(),
		Members:      members,
	}, nil
}

// repairStatusDrift checks Stripe's view of the subscription and moves
// the local record when they disagree. Best effort: a transient
// gateway failure serves the local state unchanged.
func (s *SubscriptionService) repairStatusDrift(ctx context.Context, sub *subscription.Subscription) {
	if !sub.StripeSubscriptionID.Valid || sub.StripeSubscriptionID.String == "" {
		return
	}

	remote, err := s.gateway.GetSubscriptionStatus(ctx, sub.StripeSubscriptionID.String)
	if err != nil {
		if billing.IsResourceMissing(err) {
			if sub.Status.CanTransitionTo(subscription.StatusCancelada) {
				if uerr := s.subRepo.UpdateStatus(ctx, sub.ID, subscription.StatusCancelada); uerr != nil {
					s.logger.Warn("failed to cancel vanished subscription",
						zap.Int64("subscription_id", sub.ID), zap.Error(uerr))
					return
				}
				sub.Status = subscription.StatusCancelada
			}
			return
		}
		if billing.IsTransient(err) {
			s.logger.Debug("stripe status check unavailable",
				zap.Int64("subscription_id", sub.ID), zap.Error(err))
		} else {
			s.logger.Warn("stripe status check failed",
				zap.Int64("subscription_id", sub.ID), zap.Error(err))
		}
		return
	}

	status, ok := billing.MapSubscriptionStatus(remote)
	if !ok || status == sub.Status || !sub.Status.CanTransitionTo(status) {
		return
	}
	if err := s.subRepo.UpdateStatus(ctx, sub.ID, status); err != nil {
		s.logger.Warn("failed to reconcile subscription status",
			zap.Int64("subscription_id", sub.ID), zap.Error(err))
		return
	}
	sub.Status = status
	s.logger.Info("subscription status reconciled with stripe",
		zap.Int64("subscription_id", sub.ID),
		zap.String("status", string(status)),
	)
}

func (s *SubscriptionService) members(ctx context.Context, subscriptionID int64) ([]subscription.Member, error) {
	users, err := s.userRepo.FindBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	members := make([]subscription.Member, 0, len(users))
	for _, u := range users {
		members = append(members, subscription.Member{ID: u.ID, Nome: u.Nome, Email: u.Email})
	}
	return members, nil
}

// ownedEnterprise loads the caller's active subscription and checks
// the plan allows shared accounts.
func (s *SubscriptionService) ownedEnterprise(ctx context.Context, ownerID int64) (*subscription.Subscription, *plan.Plan, error) {
	sub, err := s.subRepo.FindActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if sub.IDUsuarioResponsavel != ownerID {
		return nil, nil, xerrors.ErrForbidden
	}
	if sub.Status != subscription.StatusAtiva {
		return nil, nil, fmt.Errorf("%w: assinatura não está ativa", xerrors.ErrForbidden)
	}
	pl, err := s.planRepo.FindByID(ctx, sub.IDPlano)
	if err != nil {
		return nil, nil, err
	}
	if !pl.IsEnterprise() {
		return nil, nil, fmt.Errorf("%w: plano não permite contas compartilhadas", xerrors.ErrForbidden)
	}
	return sub, pl, nil
}

// AddMember links another user to the owner's enterprise subscription.
func (s *SubscriptionService) AddMember(ctx context.Context, ownerID int64, in *subscription.AddMemberInput) (*subscription.Member, error) {
	sub, pl, err := s.ownedEnterprise(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	count, err := s.subRepo.CountMembers(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if pl.MaximoColaboradores > 0 && count >= pl.MaximoColaboradores {
		return nil, fmt.Errorf("%w: limite de colaboradores atingido", xerrors.ErrForbidden)
	}

	target, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if target.VinculoAssinatura.Valid {
		if target.VinculoAssinatura.Int64 == sub.ID {
			return nil, fmt.Errorf("%w: usuário já faz parte desta assinatura", xerrors.ErrConflict)
		}
		return nil, fmt.Errorf("%w: usuário já vinculado a outra assinatura", xerrors.ErrConflict)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	linked, err := s.userRepo.LinkSubscriptionWithTx(ctx, tx, target.ID, sub.ID)
	if err != nil {
		return nil, err
	}
	if linked == 0 {
		return nil, fmt.Errorf("%w: usuário já vinculado a outra assinatura", xerrors.ErrConflict)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("member added to subscription",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("member_id", target.ID),
	)
	s.notifier.Enqueue(target.Email, "Você foi adicionado a uma assinatura",
		fmt.Sprintf("Você agora faz parte da assinatura do plano %s.", pl.Nome))
	return &subscription.Member{ID: target.ID, Nome: target.Nome, Email: target.Email}, nil
}

// RemoveMember detaches a member. The owner cannot be removed.
func (s *SubscriptionService) RemoveMember(ctx context.Context, ownerID, memberID int64) error {
	sub, _, err := s.ownedEnterprise(ctx, ownerID)
	if err != nil {
		return err
	}
	if memberID == ownerID {
		return fmt.Errorf("%w: o responsável não pode ser removido", xerrors.ErrInvalidInput)
	}
	if err := s.userRepo.UnlinkSubscription(ctx, memberID, sub.ID); err != nil {
		return err
	}
	s.logger.Info("member removed from subscription",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("member_id", memberID),
	)
	return nil
}

// Transfer moves credits from the caller to another account of the
// same enterprise subscription.
func (s *SubscriptionService) Transfer(ctx context.Context, fromUserID int64, in *subscription.TransferInput) error {
	if in.Amount <= 0 {
		return xerrors.ErrInvalidInput
	}
	from, err := s.userRepo.FindByID(ctx, fromUserID)
	if err != nil {
		return err
	}
	if !from.VinculoAssinatura.Valid {
		return fmt.Errorf("%w: usuário não faz parte de uma assinatura", xerrors.ErrForbidden)
	}
	target, err := s.userRepo.FindByID(ctx, in.TargetUserID)
	if err != nil {
		return err
	}
	if !target.VinculoAssinatura.Valid || target.VinculoAssinatura.Int64 != from.VinculoAssinatura.Int64 {
		return fmt.Errorf("%w: destino não pertence à mesma assinatura", xerrors.ErrForbidden)
	}

	sub, err := s.subRepo.FindByID(ctx, from.VinculoAssinatura.Int64)
	if err != nil {
		return err
	}
	pl, err := s.planRepo.FindByID(ctx, sub.IDPlano)
	if err != nil {
		return err
	}
	if !pl.IsEnterprise() {
		return fmt.Errorf("%w: plano não permite transferência entre contas", xerrors.ErrForbidden)
	}

	return s.ledger.Transfer(ctx, from.ID, target.ID, in.Amount)
}

// Cancel cancels the subscription on Stripe first and only then
// mutates local state. A transient Stripe failure aborts with no
// local change so the client can retry; a subscription already gone
// on Stripe's side is treated as cancelled there.
func (s *SubscriptionService) Cancel(ctx context.Context, caller *user.User, subscriptionID int64, motivo string) error {
	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.IDUsuarioResponsavel != caller.ID && !caller.IsAdmin() {
		return xerrors.ErrForbidden
	}
	if sub.Status == subscription.StatusCancelada {
		return fmt.Errorf("%w: assinatura já cancelada", xerrors.ErrConflict)
	}

	if sub.StripeSubscriptionID.Valid && sub.StripeSubscriptionID.String != "" {
		if err := s.gateway.CancelSubscription(ctx, sub.StripeSubscriptionID.String); err != nil {
			if billing.IsResourceMissing(err) {
				s.logger.Warn("subscription already gone on stripe",
					zap.Int64("subscription_id", sub.ID),
					zap.String("stripe_subscription_id", sub.StripeSubscriptionID.String),
				)
			} else {
				return fmt.Errorf("%w: %s", xerrors.ErrExternalService, err)
			}
		}
	}

	members, err := s.userRepo.FindBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.subRepo.UpdateStatusWithTx(ctx, tx, sub.ID, subscription.StatusCancelada); err != nil {
		return err
	}
	if err := s.userRepo.UnlinkAllFromSubscription(ctx, tx, sub.ID); err != nil {
		return err
	}
	for i := range members {
		if err := s.auditRepo.CreateWithTx(ctx, tx, &domainbilling.AuditLog{
			IDUsuario: members[i].ID,
			Acao:      "desvinculado_assinatura",
			Detalhe:   fmt.Sprintf("assinatura %d cancelada (%s)", sub.ID, motivo),
		}); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("subscription cancelled",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("requested_by", caller.ID),
		zap.String("motivo", motivo),
	)
	if owner, err := s.userRepo.FindByID(ctx, sub.IDUsuarioResponsavel); err == nil {
		s.notifier.Enqueue(owner.Email, "Assinatura cancelada",
			"Sua assinatura foi cancelada. Os créditos já recebidos continuam válidos até expirarem.")
	}
	return nil
}
