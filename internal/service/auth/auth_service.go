// internal/service/auth/auth_service.go
package auth

import (
	"context"
	"fmt"

	"compatlab-service/internal/domain/credit"
	"compatlab-service/internal/domain/user"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/pkg/jwt"
	"compatlab-service/internal/repository/postgres"
	"compatlab-service/internal/service/ledger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo   *postgres.UserRepository
	jwtManager *jwt.Manager
	ledger     *ledger.LedgerService
	logger     *zap.Logger
}

func NewAuthService(
	userRepo *postgres.UserRepository,
	jwtManager *jwt.Manager,
	ledgerSvc *ledger.LedgerService,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		ledger:     ledgerSvc,
		logger:     logger,
	}
}

// Register creates a new account. An optional starting balance is
// granted as a signup packet.
func (s *AuthService) Register(ctx context.Context, in *user.RegisterInput) (*user.LoginResponse, error) {
	if in.SaldoEmCreditos < 0 {
		return nil, xerrors.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Senha), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &user.User{
		Nome:        in.Nome,
		Email:       in.Email,
		SenhaHash:   string(hash),
		TipoUsuario: user.TypeComum,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if xerrors.Is(err, xerrors.ErrConflict) {
			return nil, fmt.Errorf("%w: email já cadastrado", xerrors.ErrConflict)
		}
		return nil, err
	}

	if in.SaldoEmCreditos > 0 {
		if err := s.ledger.Grant(ctx, u.ID, in.SaldoEmCreditos, credit.OriginSignup(u.ID)); err != nil {
			s.logger.Error("failed to grant signup credits",
				zap.Int64("user_id", u.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("user registered", zap.Int64("user_id", u.ID))
	return s.loginResponse(ctx, u)
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, in *user.LoginInput) (*user.LoginResponse, error) {
	u, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrUnauthorized
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.SenhaHash), []byte(in.Senha)); err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	s.logger.Info("user logged in", zap.Int64("user_id", u.ID))
	return s.loginResponse(ctx, u)
}

func (s *AuthService) loginResponse(ctx context.Context, u *user.User) (*user.LoginResponse, error) {
	token, err := s.jwtManager.Generate(u.ID, u.Email, string(u.TipoUsuario))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	profile, err := s.Profile(ctx, u)
	if err != nil {
		return nil, err
	}
	return &user.LoginResponse{Token: token, User: profile}, nil
}

// Profile builds the public view of a user, balance included.
func (s *AuthService) Profile(ctx context.Context, u *user.User) (*user.Profile, error) {
	saldo, err := s.ledger.Balance(ctx, u.ID)
	if err != nil {
		// A fresh install has no config yet; show zero instead of
		// failing the whole login.
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, err
		}
		saldo = 0
	}
	return &user.Profile{
		ID:              u.ID,
		Nome:            u.Nome,
		Email:           u.Email,
		TipoUsuario:     u.TipoUsuario,
		JaFezCompra:     u.JaFezCompra,
		SaldoEmCreditos: saldo,
	}, nil
}

// GetUser loads a user by id, for the auth middleware.
func (s *AuthService) GetUser(ctx context.Context, id int64) (*user.User, error) {
	return s.userRepo.FindByID(ctx, id)
}
