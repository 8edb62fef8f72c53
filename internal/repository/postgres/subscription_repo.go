// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"compatlab-service/internal/domain/subscription"
	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, id_plano, id_usuario_responsavel, status, stripe_subscription_id, fim_periodo_atual, cancelar_fim_periodo, inicio_em, cancelada_em, criado_em, atualizado_em`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(
		&s.ID, &s.IDPlano, &s.IDUsuarioResponsavel, &s.Status,
		&s.StripeSubscriptionID, &s.FimPeriodoAtual, &s.CancelarFimPeriodo,
		&s.InicioEm, &s.CanceladaEm,
		&s.CriadoEm, &s.AtualizadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &s, nil
}

func (r *SubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	query := `
		INSERT INTO assinaturas (id_plano, id_usuario_responsavel, status, stripe_subscription_id, inicio_em)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, inicio_em, criado_em, atualizado_em
	`
	err := r.db.QueryRow(ctx, query,
		s.IDPlano, s.IDUsuarioResponsavel, s.Status, s.StripeSubscriptionID,
	).Scan(&s.ID, &s.InicioEm, &s.CriadoEm, &s.AtualizadoEm)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, s *subscription.Subscription) error {
	query := `
		INSERT INTO assinaturas (id_plano, id_usuario_responsavel, status, stripe_subscription_id, inicio_em)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, inicio_em, criado_em, atualizado_em
	`
	err := tx.QueryRow(ctx, query,
		s.IDPlano, s.IDUsuarioResponsavel, s.Status, s.StripeSubscriptionID,
	).Scan(&s.ID, &s.InicioEm, &s.CriadoEm, &s.AtualizadoEm)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM assinaturas WHERE id = $1`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, id))
}

func (r *SubscriptionRepository) FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*subscription.Subscription, error) {
	query := fmt.Sprintf(`SELECT %s FROM assinaturas WHERE stripe_subscription_id = $1`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, stripeSubscriptionID))
}

// FindActiveByOwner returns the owner's current subscription, active
// or not-yet-cancelled, newest first.
func (r *SubscriptionRepository) FindActiveByOwner(ctx context.Context, ownerID int64) (*subscription.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM assinaturas
		WHERE id_usuario_responsavel = $1 AND status <> 'cancelada'
		ORDER BY criado_em DESC
		LIMIT 1
	`, subscriptionColumns)
	return scanSubscription(r.db.QueryRow(ctx, query, ownerID))
}

func (r *SubscriptionRepository) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status subscription.Status) error {
	query := `
		UPDATE assinaturas
		SET status = $1,
		    cancelada_em = CASE WHEN $1 = 'cancelada' THEN NOW() ELSE cancelada_em END,
		    atualizado_em = NOW()
		WHERE id = $2
	`
	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id int64, status subscription.Status) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.UpdateStatusWithTx(ctx, tx, id, status); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *SubscriptionRepository) SetStripeIDWithTx(ctx context.Context, tx pgx.Tx, id int64, stripeSubscriptionID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE assinaturas SET stripe_subscription_id = $1, atualizado_em = NOW() WHERE id = $2`,
		stripeSubscriptionID, id)
	if err != nil {
		return fmt.Errorf("failed to set stripe subscription id: %w", err)
	}
	return nil
}

// SetBillingPeriodWithTx records the paid-through date and the
// cancel-at-period-end flag reported by the payment processor.
func (r *SubscriptionRepository) SetBillingPeriodWithTx(ctx context.Context, tx pgx.Tx, id int64, periodEnd time.Time, cancelAtPeriodEnd bool) error {
	_, err := tx.Exec(ctx, `
		UPDATE assinaturas
		SET fim_periodo_atual = $1, cancelar_fim_periodo = $2, atualizado_em = NOW()
		WHERE id = $3
	`, periodEnd, cancelAtPeriodEnd, id)
	if err != nil {
		return fmt.Errorf("failed to set subscription billing period: %w", err)
	}
	return nil
}

// DeactivateOthersWithTx moves every other non-cancelled subscription
// of the owner to inativa, so at most one is ativa at a time.
func (r *SubscriptionRepository) DeactivateOthersWithTx(ctx context.Context, tx pgx.Tx, ownerID, keepID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE assinaturas
		SET status = 'inativa', atualizado_em = NOW()
		WHERE id_usuario_responsavel = $1 AND id <> $2 AND status = 'ativa'
	`, ownerID, keepID)
	if err != nil {
		return fmt.Errorf("failed to deactivate other subscriptions: %w", err)
	}
	return nil
}

// CountMembers counts users linked to the subscription, owner included.
func (r *SubscriptionRepository) CountMembers(ctx context.Context, subscriptionID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM usuarios WHERE vinculo_assinatura = $1`,
		subscriptionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscription members: %w", err)
	}
	return n, nil
}
