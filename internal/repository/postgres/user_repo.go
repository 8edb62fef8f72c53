// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"compatlab-service/internal/domain/user"
	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, nome, email, senha_hash, tipo_usuario, ja_fez_compra, vinculo_assinatura, stripe_customer_id, criado_em`

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Nome, &u.Email, &u.SenhaHash, &u.TipoUsuario,
		&u.JaFezCompra, &u.VinculoAssinatura, &u.StripeCustomerID, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO usuarios (nome, email, senha_hash, tipo_usuario)
		VALUES ($1, $2, $3, $4)
		RETURNING id, criado_em
	`
	err := r.db.QueryRow(ctx, query, u.Nome, u.Email, u.SenhaHash, u.TipoUsuario).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE id = $1`, userColumns)
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE lower(email) = lower($1)`, userColumns)
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE stripe_customer_id = $1`, userColumns)
	return scanUser(r.db.QueryRow(ctx, query, customerID))
}

func (r *UserRepository) FindBySubscription(ctx context.Context, subscriptionID int64) ([]user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE vinculo_assinatura = $1 ORDER BY id`, userColumns)
	rows, err := r.db.Query(ctx, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(
			&u.ID, &u.Nome, &u.Email, &u.SenhaHash, &u.TipoUsuario,
			&u.JaFezCompra, &u.VinculoAssinatura, &u.StripeCustomerID, &u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) SetStripeCustomerID(ctx context.Context, userID int64, customerID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE usuarios SET stripe_customer_id = $1 WHERE id = $2`,
		customerID, userID)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer id: %w", err)
	}
	return nil
}

// MarkMadePurchaseWithTx flips ja_fez_compra to true. It never goes
// back to false, so re-applying it is harmless.
func (r *UserRepository) MarkMadePurchaseWithTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE usuarios SET ja_fez_compra = TRUE WHERE id = $1 AND ja_fez_compra = FALSE`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to mark user purchase: %w", err)
	}
	return nil
}

// LinkSubscriptionWithTx attaches a user to a subscription. An
// unlinked user always links; a user still pointing at one of their
// own subscriptions that is no longer active is moved over, so a new
// activation replaces a stale link instead of bouncing off it. A link
// to someone else's subscription, or to a live one, is kept. Returns
// the number of rows changed so callers can tell a no-op from a link.
func (r *UserRepository) LinkSubscriptionWithTx(ctx context.Context, tx pgx.Tx, userID, subscriptionID int64) (int64, error) {
	query := `
		UPDATE usuarios u SET vinculo_assinatura = $1
		WHERE u.id = $2
		  AND (
		      u.vinculo_assinatura IS NULL
		      OR u.vinculo_assinatura = $1
		      OR EXISTS (
		          SELECT 1 FROM assinaturas a
		          WHERE a.id = u.vinculo_assinatura
		            AND a.id_usuario_responsavel = u.id
		            AND a.status <> 'ativa'
		      )
		  )
	`
	tag, err := tx.Exec(ctx, query, subscriptionID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to link user to subscription: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) UnlinkSubscription(ctx context.Context, userID, subscriptionID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE usuarios SET vinculo_assinatura = NULL WHERE id = $1 AND vinculo_assinatura = $2`,
		userID, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to unlink user from subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UnlinkAllFromSubscription(ctx context.Context, tx pgx.Tx, subscriptionID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE usuarios SET vinculo_assinatura = NULL WHERE vinculo_assinatura = $1`,
		subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to unlink subscription users: %w", err)
	}
	return nil
}
