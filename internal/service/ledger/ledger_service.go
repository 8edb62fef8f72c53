// internal/service/ledger/ledger_service.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"compatlab-service/internal/domain/billing"
	"compatlab-service/internal/domain/credit"
	"compatlab-service/internal/domain/sysconfig"
	"compatlab-service/internal/domain/user"
	"compatlab-service/internal/pkg/cache"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type LedgerService struct {
	packetRepo  PacketStore
	userRepo    UserStore
	configRepo  ConfigStore
	auditRepo   AuditStore
	configCache *cache.ConfigCache
	db          TxBeginner
	logger      *zap.Logger
}

func NewLedgerService(
	packetRepo PacketStore,
	userRepo UserStore,
	configRepo ConfigStore,
	auditRepo AuditStore,
	configCache *cache.ConfigCache,
	db TxBeginner,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		packetRepo:  packetRepo,
		userRepo:    userRepo,
		configRepo:  configRepo,
		auditRepo:   auditRepo,
		configCache: configCache,
		db:          db,
		logger:      logger,
	}
}

// SumValidPackets folds the ledger into a balance. Packets without a
// receipt date never count; expiry is measured against validityDays,
// where zero or negative means packets never expire. The sum can go
// through negative intermediate states freely, only the total is
// meaningful.
func SumValidPackets(packets []credit.Packet, validityDays int, now time.Time) int {
	total := 0
	for i := range packets {
		p := &packets[i]
		if p.Quantidade == 0 {
			continue
		}
		if p.Expired(validityDays, now) {
			continue
		}
		total += p.Quantidade
	}
	return total
}

// CurrentConfig returns the vigente system config, served from the
// Redis cache when warm.
func (s *LedgerService) CurrentConfig(ctx context.Context) (*sysconfig.SystemConfig, error) {
	if cfg, err := s.configCache.Get(ctx); err == nil && cfg != nil {
		return cfg, nil
	} else if err != nil {
		s.logger.Warn("config cache read failed", zap.Error(err))
	}

	cfg, err := s.configRepo.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.configCache.Set(ctx, cfg); err != nil {
		s.logger.Warn("config cache write failed", zap.Error(err))
	}
	return cfg, nil
}

// Balance computes the user's current credit balance.
func (s *LedgerService) Balance(ctx context.Context, userID int64) (int, error) {
	cfg, err := s.CurrentConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load config: %w", err)
	}
	packets, err := s.packetRepo.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return SumValidPackets(packets, cfg.ValidadeEmDias, time.Now()), nil
}

// BalanceOf returns the balance together with the user record, for
// responses that show both.
func (s *LedgerService) BalanceOf(ctx context.Context, userID int64) (int, *user.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	saldo, err := s.Balance(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	return saldo, u, nil
}

// Grant appends a positive packet outside any larger flow, with the
// receipt date set to now.
func (s *LedgerService) Grant(ctx context.Context, userID int64, quantity int, origem string) error {
	if quantity <= 0 {
		return xerrors.ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p := &credit.Packet{
		IDUsuario:       userID,
		Quantidade:      quantity,
		Origem:          origem,
		DataRecebimento: sql.NullTime{Time: time.Now(), Valid: true},
	}
	if err := s.packetRepo.InsertWithTx(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DebitWithTx takes the per-user advisory lock, recomputes the
// balance inside the transaction and appends a negative packet when
// it covers the amount. Returns the balance after the debit. Callers
// own the transaction.
func (s *LedgerService) DebitWithTx(ctx context.Context, tx pgx.Tx, userID int64, amount int, origem string) (int, error) {
	if amount <= 0 {
		return 0, xerrors.ErrInvalidInput
	}
	if err := postgres.AdvisoryLockUser(ctx, tx, userID); err != nil {
		return 0, fmt.Errorf("failed to lock user ledger: %w", err)
	}

	cfg, err := s.CurrentConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load config: %w", err)
	}
	packets, err := s.packetRepo.ListByUserWithTx(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	saldo := SumValidPackets(packets, cfg.ValidadeEmDias, time.Now())
	if saldo < amount {
		return 0, fmt.Errorf("%w: necessário %d, saldo %d", xerrors.ErrInsufficientCredits, amount, saldo)
	}

	p := &credit.Packet{
		IDUsuario:       userID,
		Quantidade:      -amount,
		Origem:          origem,
		DataRecebimento: sql.NullTime{Time: time.Now(), Valid: true},
	}
	if err := s.packetRepo.InsertWithTx(ctx, tx, p); err != nil {
		return 0, err
	}
	return saldo - amount, nil
}

// Adjust applies an operator balance adjustment: add appends a
// positive packet, subtract a negative one, and set appends whatever
// delta brings the computed balance to the requested value.
func (s *LedgerService) Adjust(ctx context.Context, operatorID int64, in *user.AdjustBalanceInput) (int, error) {
	target := in.TargetUserID
	if target == 0 {
		target = operatorID
	}
	if _, err := s.userRepo.FindByID(ctx, target); err != nil {
		return 0, err
	}

	cfg, err := s.CurrentConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := postgres.AdvisoryLockUser(ctx, tx, target); err != nil {
		return 0, fmt.Errorf("failed to lock user ledger: %w", err)
	}

	packets, err := s.packetRepo.ListByUserWithTx(ctx, tx, target)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	saldo := SumValidPackets(packets, cfg.ValidadeEmDias, now)

	var delta int
	switch in.Operation {
	case user.OpAdd:
		delta = in.Amount
	case user.OpSubtract:
		delta = -in.Amount
	case user.OpSet:
		delta = in.Amount - saldo
	default:
		return 0, xerrors.ErrInvalidInput
	}
	if in.Amount < 0 {
		return 0, xerrors.ErrInvalidInput
	}
	if in.Operation != user.OpSet && in.Amount == 0 {
		return 0, xerrors.ErrInvalidInput
	}
	if saldo+delta < 0 {
		return 0, xerrors.ErrInsufficientCredits
	}

	if delta != 0 {
		p := &credit.Packet{
			IDUsuario:       target,
			Quantidade:      delta,
			Origem:          credit.OriginManual(operatorID),
			DataRecebimento: sql.NullTime{Time: now, Valid: true},
		}
		if err := s.packetRepo.InsertWithTx(ctx, tx, p); err != nil {
			return 0, err
		}
	}

	log := &billing.AuditLog{
		IDUsuario: target,
		Acao:      "ajuste_saldo",
		Detalhe:   fmt.Sprintf("operacao=%s quantidade=%d operador=%d", in.Operation, in.Amount, operatorID),
	}
	if err := s.auditRepo.CreateWithTx(ctx, tx, log); err != nil {
		s.logger.Warn("failed to write adjustment audit log", zap.Error(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("balance adjusted",
		zap.Int64("user_id", target),
		zap.Int64("operator_id", operatorID),
		zap.String("operation", string(in.Operation)),
		zap.Int("delta", delta),
	)
	return saldo + delta, nil
}

// Transfer moves credits between two users of the same subscription.
// Both ledgers are locked in id order, the debit and the credit share
// one timestamp, and each side gets an audit line at that instant.
func (s *LedgerService) Transfer(ctx context.Context, fromUserID, toUserID int64, amount int) error {
	if amount <= 0 {
		return xerrors.ErrInvalidInput
	}
	if fromUserID == toUserID {
		return xerrors.ErrInvalidInput
	}

	cfg, err := s.CurrentConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock both ledgers, lowest id first, so two opposing transfers
	// cannot deadlock.
	first, second := fromUserID, toUserID
	if second < first {
		first, second = second, first
	}
	if err := postgres.AdvisoryLockUser(ctx, tx, first); err != nil {
		return fmt.Errorf("failed to lock user ledger: %w", err)
	}
	if err := postgres.AdvisoryLockUser(ctx, tx, second); err != nil {
		return fmt.Errorf("failed to lock user ledger: %w", err)
	}

	packets, err := s.packetRepo.ListByUserWithTx(ctx, tx, fromUserID)
	if err != nil {
		return err
	}
	now := time.Now()
	if SumValidPackets(packets, cfg.ValidadeEmDias, now) < amount {
		return xerrors.ErrInsufficientCredits
	}

	out := &credit.Packet{
		IDUsuario:       fromUserID,
		Quantidade:      -amount,
		Origem:          credit.OriginTransferTo(toUserID),
		DataRecebimento: sql.NullTime{Time: now, Valid: true},
	}
	if err := s.packetRepo.InsertWithTx(ctx, tx, out); err != nil {
		return err
	}
	in := &credit.Packet{
		IDUsuario:       toUserID,
		Quantidade:      amount,
		Origem:          credit.OriginTransferFrom(fromUserID),
		DataRecebimento: sql.NullTime{Time: now, Valid: true},
	}
	if err := s.packetRepo.InsertWithTx(ctx, tx, in); err != nil {
		return err
	}

	outLog := &billing.AuditLog{
		IDUsuario: fromUserID,
		Acao:      "transferencia_enviada",
		Detalhe:   fmt.Sprintf("quantidade=%d destino=%d", amount, toUserID),
	}
	if err := s.auditRepo.CreateWithTxAt(ctx, tx, outLog, now); err != nil {
		s.logger.Warn("failed to write transfer audit log", zap.Error(err))
	}
	inLog := &billing.AuditLog{
		IDUsuario: toUserID,
		Acao:      "transferencia_recebida",
		Detalhe:   fmt.Sprintf("quantidade=%d origem=%d", amount, fromUserID),
	}
	if err := s.auditRepo.CreateWithTxAt(ctx, tx, inLog, now); err != nil {
		s.logger.Warn("failed to write transfer audit log", zap.Error(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("credits transferred",
		zap.Int64("from", fromUserID),
		zap.Int64("to", toUserID),
		zap.Int("amount", amount),
	)
	return nil
}
