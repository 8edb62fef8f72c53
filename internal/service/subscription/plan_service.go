// internal/service/subscription/plan_service.go
package subscription

import (
	"context"

	"compatlab-service/internal/domain/plan"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/repository/postgres"

	"go.uber.org/zap"
)

type PlanService struct {
	planRepo *postgres.PlanRepository
	logger   *zap.Logger
}

func NewPlanService(planRepo *postgres.PlanRepository, logger *zap.Logger) *PlanService {
	return &PlanService{planRepo: planRepo, logger: logger}
}

func (s *PlanService) List(ctx context.Context) ([]plan.Plan, error) {
	return s.planRepo.List(ctx)
}

func (s *PlanService) Get(ctx context.Context, id int64) (*plan.Plan, error) {
	return s.planRepo.FindByID(ctx, id)
}

func (s *PlanService) Create(ctx context.Context, in *plan.CreateInput) (*plan.Plan, error) {
	if in.PrecoMensal <= 0 || in.QuantidadeCreditoMensal <= 0 {
		return nil, xerrors.ErrInvalidInput
	}
	p := &plan.Plan{
		Nome:                    in.Nome,
		PrecoMensal:             in.PrecoMensal,
		QuantidadeCreditoMensal: in.QuantidadeCreditoMensal,
		PrioridadeDeTempo:       in.PrioridadeDeTempo,
		MaximoColaboradores:     in.MaximoColaboradores,
	}
	if err := s.planRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("plan created", zap.Int64("plan_id", p.ID), zap.String("nome", p.Nome))
	return p, nil
}
