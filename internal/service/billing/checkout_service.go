// internal/service/billing/checkout_service.go
package billing

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	domainbilling "compatlab-service/internal/domain/billing"
	"compatlab-service/internal/domain/credit"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/repository/postgres"
	"compatlab-service/internal/service/ledger"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type CheckoutService struct {
	gateway      Gateway
	userRepo     *postgres.UserRepository
	purchaseRepo *postgres.PurchaseRepository
	packetRepo   *postgres.CreditPacketRepository
	ledger       *ledger.LedgerService
	db           *postgres.DB
	logger       *zap.Logger
}

func NewCheckoutService(
	gateway Gateway,
	userRepo *postgres.UserRepository,
	purchaseRepo *postgres.PurchaseRepository,
	packetRepo *postgres.CreditPacketRepository,
	ledgerSvc *ledger.LedgerService,
	db *postgres.DB,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		gateway:      gateway,
		userRepo:     userRepo,
		purchaseRepo: purchaseRepo,
		packetRepo:   packetRepo,
		ledger:       ledgerSvc,
		db:           db,
		logger:       logger,
	}
}

// CreateCreditCheckout opens a Stripe checkout session for a one-off
// credit purchase. The session carries a fresh local order id in its
// metadata so the settling webhook can tie the grant back to this
// request.
func (s *CheckoutService) CreateCreditCheckout(ctx context.Context, userID int64, in *domainbilling.CreateCheckoutInput) (*domainbilling.CheckoutResponse, error) {
	if in.QuantidadeCreditos <= 0 {
		return nil, xerrors.ErrInvalidInput
	}
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.ledger.CurrentConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
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

	localOrderID := ulid.Make().String()
	unitAmountCents := int64(math.Round(cfg.PrecoDoCredito * 100))

	sess, err := s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID:  customerID,
		Mode:        "payment",
		ProductName: "Créditos CompatLab",
		UnitAmount:  unitAmountCents,
		Quantity:    int64(in.QuantidadeCreditos),
		SuccessURL:  in.SuccessURL,
		CancelURL:   in.CancelURL,
		Metadata: map[string]string{
			"kind":           "credit_purchase",
			"user_id":        fmt.Sprintf("%d", u.ID),
			"credits":        fmt.Sprintf("%d", in.QuantidadeCreditos),
			"local_order_id": localOrderID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrExternalService, err)
	}

	s.logger.Info("credit checkout created",
		zap.Int64("user_id", u.ID),
		zap.String("session_id", sess.ID),
		zap.String("local_order_id", localOrderID),
		zap.Int("credits", in.QuantidadeCreditos),
	)
	return &domainbilling.CheckoutResponse{
		SessionID:    sess.ID,
		URL:          sess.URL,
		LocalOrderID: localOrderID,
	}, nil
}

// RegisterPurchase records an out-of-band credit sale and grants the
// credits at once: purchase, revenue line and packet commit together.
func (s *CheckoutService) RegisterPurchase(ctx context.Context, userID int64, quantity int) (*domainbilling.Compra, error) {
	if quantity <= 0 {
		return nil, xerrors.ErrInvalidInput
	}
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.ledger.CurrentConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	valor := float64(quantity) * cfg.PrecoDoCredito

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	compra := &domainbilling.Compra{
		IDUsuario:          u.ID,
		QuantidadeCreditos: quantity,
		ValorPago:          valor,
		StripeSessionID:    "",
	}
	if err := s.purchaseRepo.CreateWithTx(ctx, tx, compra); err != nil {
		return nil, err
	}
	receita := &domainbilling.Receita{
		Valor:     valor,
		Descricao: fmt.Sprintf("venda direta de %d créditos", quantity),
	}
	if err := s.purchaseRepo.RecordRevenueWithTx(ctx, tx, receita); err != nil {
		return nil, err
	}
	p := &credit.Packet{
		IDUsuario:       u.ID,
		Quantidade:      quantity,
		Origem:          credit.OriginPurchase(compra.ID),
		DataRecebimento: sql.NullTime{Time: time.Now(), Valid: true},
	}
	if err := s.packetRepo.InsertWithTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := s.userRepo.MarkMadePurchaseWithTx(ctx, tx, u.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("direct purchase registered",
		zap.Int64("user_id", u.ID),
		zap.Int64("purchase_id", compra.ID),
		zap.Int("credits", quantity),
	)
	return compra, nil
}

func (s *CheckoutService) ListPurchases(ctx context.Context, userID int64) ([]domainbilling.Compra, error) {
	return s.purchaseRepo.ListByUser(ctx, userID)
}
