// internal/service/sysconfig/config_service.go
package sysconfig

import (
	"context"
	"fmt"

	"compatlab-service/internal/domain/sysconfig"
	"compatlab-service/internal/pkg/cache"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/repository/postgres"

	"go.uber.org/zap"
)

// Pricing knobs the product does not expose: every request costs one
// credit and every packet lives a year.
const (
	fixedRequestPrice = 1
	fixedValidityDays = 365
)

type ConfigService struct {
	configRepo  *postgres.ConfigRepository
	configCache *cache.ConfigCache
	logger      *zap.Logger
}

func NewConfigService(configRepo *postgres.ConfigRepository, configCache *cache.ConfigCache, logger *zap.Logger) *ConfigService {
	return &ConfigService{
		configRepo:  configRepo,
		configCache: configCache,
		logger:      logger,
	}
}

func (s *ConfigService) Current(ctx context.Context) (*sysconfig.SystemConfig, error) {
	return s.configRepo.Current(ctx)
}

func (s *ConfigService) List(ctx context.Context) ([]sysconfig.SystemConfig, error) {
	return s.configRepo.List(ctx)
}

// Create installs a new current config. Only the credit price is
// taken from the caller; the request price and validity are pinned.
func (s *ConfigService) Create(ctx context.Context, in *sysconfig.CreateInput) (*sysconfig.SystemConfig, error) {
	if in.PrecoDoCredito <= 0 {
		return nil, fmt.Errorf("%w: preco_do_credito deve ser positivo", xerrors.ErrInvalidInput)
	}

	cfg := &sysconfig.SystemConfig{
		PrecoDoCredito:               in.PrecoDoCredito,
		PrecoDaSolicitacaoEmCreditos: fixedRequestPrice,
		ValidadeEmDias:               fixedValidityDays,
	}
	if err := s.configRepo.Create(ctx, cfg); err != nil {
		return nil, err
	}

	if err := s.configCache.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate config cache", zap.Error(err))
	}

	s.logger.Info("system config created",
		zap.Int64("config_id", cfg.ID),
		zap.Float64("preco_do_credito", cfg.PrecoDoCredito),
	)
	return cfg, nil
}
