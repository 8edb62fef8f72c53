// internal/repository/postgres/purchase_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"compatlab-service/internal/domain/billing"
	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PurchaseRepository struct {
	db *pgxpool.Pool
}

func NewPurchaseRepository(db *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, c *billing.Compra) error {
	query := `
		INSERT INTO compras (id_usuario, quantidade_creditos, valor_pago, stripe_session_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, criado_em
	`
	err := tx.QueryRow(ctx, query,
		c.IDUsuario, c.QuantidadeCreditos, c.ValorPago, c.StripeSessionID,
	).Scan(&c.ID, &c.CriadoEm)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) FindBySessionID(ctx context.Context, sessionID string) (*billing.Compra, error) {
	query := `
		SELECT id, id_usuario, quantidade_creditos, valor_pago, stripe_session_id, criado_em
		FROM compras
		WHERE stripe_session_id = $1
	`
	var c billing.Compra
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&c.ID, &c.IDUsuario, &c.QuantidadeCreditos, &c.ValorPago, &c.StripeSessionID, &c.CriadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	return &c, nil
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, userID int64) ([]billing.Compra, error) {
	query := `
		SELECT id, id_usuario, quantidade_creditos, valor_pago, stripe_session_id, criado_em
		FROM compras
		WHERE id_usuario = $1
		ORDER BY criado_em DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var compras []billing.Compra
	for rows.Next() {
		var c billing.Compra
		if err := rows.Scan(&c.ID, &c.IDUsuario, &c.QuantidadeCreditos, &c.ValorPago, &c.StripeSessionID, &c.CriadoEm); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		compras = append(compras, c)
	}
	return compras, rows.Err()
}

// RecordRevenueWithTx appends a revenue line alongside the purchase
// that produced it.
func (r *PurchaseRepository) RecordRevenueWithTx(ctx context.Context, tx pgx.Tx, rec *billing.Receita) error {
	query := `
		INSERT INTO receitas (valor, descricao)
		VALUES ($1, $2)
		RETURNING id, criado_em
	`
	err := tx.QueryRow(ctx, query, rec.Valor, rec.Descricao).Scan(&rec.ID, &rec.CriadoEm)
	if err != nil {
		return fmt.Errorf("failed to record revenue: %w", err)
	}
	return nil
}
