// internal/service/analysis/analysis_service.go
package analysis

import (
	"context"
	"fmt"

	"compatlab-service/internal/domain/analysis"
	"compatlab-service/internal/domain/credit"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/repository/postgres"
	"compatlab-service/internal/service/billing"
	"compatlab-service/internal/service/ledger"

	"go.uber.org/zap"
)

type AnalysisService struct {
	analysisRepo *postgres.AnalysisRepository
	userRepo     *postgres.UserRepository
	subRepo      *postgres.SubscriptionRepository
	planRepo     *postgres.PlanRepository
	ledger       *ledger.LedgerService
	notifier     billing.Notifier
	db           *postgres.DB
	logger       *zap.Logger
}

func NewAnalysisService(
	analysisRepo *postgres.AnalysisRepository,
	userRepo *postgres.UserRepository,
	subRepo *postgres.SubscriptionRepository,
	planRepo *postgres.PlanRepository,
	ledgerSvc *ledger.LedgerService,
	notifier billing.Notifier,
	db *postgres.DB,
	logger *zap.Logger,
) *AnalysisService {
	return &AnalysisService{
		analysisRepo: analysisRepo,
		userRepo:     userRepo,
		subRepo:      subRepo,
		planRepo:     planRepo,
		ledger:       ledgerSvc,
		notifier:     notifier,
		db:           db,
		logger:       logger,
	}
}

// CreateRequest opens an analysis order and debits its price from the
// requester in one transaction. The debit happens under the per-user
// ledger lock, so two concurrent requests cannot both spend the last
// credit.
func (s *AnalysisService) CreateRequest(ctx context.Context, userID int64, in *analysis.CreateRequestInput) (*analysis.CreateRequestResult, error) {
	if in.IDProdutoA == in.IDProdutoB {
		return nil, fmt.Errorf("%w: produtos devem ser distintos", xerrors.ErrInvalidInput)
	}
	if _, err := s.analysisRepo.FindProduto(ctx, in.IDProdutoA); err != nil {
		return nil, err
	}
	if _, err := s.analysisRepo.FindProduto(ctx, in.IDProdutoB); err != nil {
		return nil, err
	}

	cfg, err := s.ledger.CurrentConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req := &analysis.Request{
		IDUsuario:  userID,
		IDProdutoA: in.IDProdutoA,
		IDProdutoB: in.IDProdutoB,
		Status:     analysis.StatusEmAndamento,
	}
	if err := s.analysisRepo.CreateWithTx(ctx, tx, req); err != nil {
		return nil, err
	}
	saldo, err := s.ledger.DebitWithTx(ctx, tx, userID, cfg.PrecoDaSolicitacaoEmCreditos,
		credit.OriginRequestSpend(req.ID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("analysis request created",
		zap.Int64("request_id", req.ID),
		zap.Int64("user_id", userID),
		zap.Int("cost", cfg.PrecoDaSolicitacaoEmCreditos),
		zap.Int("saldo_restante", saldo),
	)
	return &analysis.CreateRequestResult{Solicitacao: req, SaldoRestante: saldo}, nil
}

// ListVisible returns the caller's requests. Accounts linked to an
// enterprise subscription see every linked account's requests.
func (s *AnalysisService) ListVisible(ctx context.Context, userID int64) ([]analysis.Request, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.VinculoAssinatura.Valid {
		sub, err := s.subRepo.FindByID(ctx, u.VinculoAssinatura.Int64)
		if err == nil {
			pl, err := s.planRepo.FindByID(ctx, sub.IDPlano)
			if err == nil && pl.IsEnterprise() {
				return s.analysisRepo.ListBySubscription(ctx, sub.ID)
			}
		}
	}
	return s.analysisRepo.ListByUser(ctx, userID)
}

func (s *AnalysisService) Get(ctx context.Context, caller int64, isAdmin bool, id int64) (*analysis.Request, error) {
	req, err := s.analysisRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.IDUsuario != caller && !isAdmin {
		return nil, xerrors.ErrForbidden
	}
	return req, nil
}

// Queue lists open requests for operators, highest plan priority
// first.
func (s *AnalysisService) Queue(ctx context.Context) ([]analysis.QueueItem, error) {
	return s.analysisRepo.ListQueue(ctx)
}

// SetStatus moves a request between em_andamento and finalizado.
// Finishing a request this way records no result; vincular does that.
func (s *AnalysisService) SetStatus(ctx context.Context, id int64, status analysis.RequestStatus) (*analysis.Request, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status inválido", xerrors.ErrInvalidInput)
	}
	req, err := s.analysisRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status == status {
		return req, nil
	}
	if err := s.analysisRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	req.Status = status
	s.logger.Info("analysis request status changed",
		zap.Int64("request_id", id),
		zap.String("status", string(status)),
	)
	return req, nil
}

// Conclude attaches the result and notifies the requester.
func (s *AnalysisService) Conclude(ctx context.Context, id int64, in *analysis.ConcludeInput) (*analysis.Request, error) {
	req, err := s.analysisRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status == analysis.StatusFinalizado {
		return nil, fmt.Errorf("%w: solicitação já finalizada", xerrors.ErrConflict)
	}
	if err := s.analysisRepo.Conclude(ctx, id, in.Resultado); err != nil {
		return nil, err
	}

	s.logger.Info("analysis request concluded", zap.Int64("request_id", id))
	if u, err := s.userRepo.FindByID(ctx, req.IDUsuario); err == nil {
		s.notifier.Enqueue(u.Email, "Resultado da análise disponível",
			fmt.Sprintf("Sua solicitação de análise #%d foi concluída. Acesse a plataforma para ver o resultado.", id))
	}
	return s.analysisRepo.FindByID(ctx, id)
}

// --- Products ---

func (s *AnalysisService) CreateProduto(ctx context.Context, in *analysis.CreateProdutoInput) (*analysis.Produto, error) {
	p := &analysis.Produto{Nome: in.Nome, Descricao: in.Descricao}
	if err := s.analysisRepo.CreateProduto(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("product created", zap.Int64("product_id", p.ID), zap.String("nome", p.Nome))
	return p, nil
}

func (s *AnalysisService) ListProdutos(ctx context.Context) ([]analysis.Produto, error) {
	return s.analysisRepo.ListProdutos(ctx)
}
