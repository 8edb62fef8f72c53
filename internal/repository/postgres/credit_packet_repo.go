// internal/repository/postgres/credit_packet_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"compatlab-service/internal/domain/credit"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CreditPacketRepository struct {
	db *pgxpool.Pool
}

func NewCreditPacketRepository(db *pgxpool.Pool) *CreditPacketRepository {
	return &CreditPacketRepository{db: db}
}

// InsertWithTx appends a packet to the ledger.
func (r *CreditPacketRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, p *credit.Packet) error {
	query := `
		INSERT INTO pacote_creditos (id_usuario, quantidade, origem, data_recebimento)
		VALUES ($1, $2, $3, $4)
		RETURNING id, criado_em
	`
	err := tx.QueryRow(ctx, query,
		p.IDUsuario, p.Quantidade, p.Origem, p.DataRecebimento,
	).Scan(&p.ID, &p.CriadoEm)
	if err != nil {
		return fmt.Errorf("failed to insert credit packet: %w", err)
	}
	return nil
}

// InsertIdempotentWithTx appends a packet carrying a stripe-origin
// tag. A partial unique index on (origem, id_usuario) for stripe
// origins makes duplicate deliveries of the same grant a silent
// no-op; the returned bool says whether a row was actually written.
func (r *CreditPacketRepository) InsertIdempotentWithTx(ctx context.Context, tx pgx.Tx, p *credit.Packet) (bool, error) {
	query := `
		INSERT INTO pacote_creditos (id_usuario, quantidade, origem, data_recebimento)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (origem, id_usuario) WHERE origem LIKE 'stripe:%' DO NOTHING
		RETURNING id, criado_em
	`
	err := tx.QueryRow(ctx, query,
		p.IDUsuario, p.Quantidade, p.Origem, p.DataRecebimento,
	).Scan(&p.ID, &p.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert credit packet: %w", err)
	}
	return true, nil
}

func (r *CreditPacketRepository) ListByUser(ctx context.Context, userID int64) ([]credit.Packet, error) {
	return r.listByUser(ctx, r.db, userID)
}

// ListByUserWithTx reads the ledger inside a transaction, typically
// after the advisory lock on the user is held.
func (r *CreditPacketRepository) ListByUserWithTx(ctx context.Context, tx pgx.Tx, userID int64) ([]credit.Packet, error) {
	return r.listByUser(ctx, tx, userID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *CreditPacketRepository) listByUser(ctx context.Context, q querier, userID int64) ([]credit.Packet, error) {
	query := `
		SELECT id, id_usuario, quantidade, origem, data_recebimento, criado_em
		FROM pacote_creditos
		WHERE id_usuario = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit packets: %w", err)
	}
	defer rows.Close()

	var packets []credit.Packet
	for rows.Next() {
		var p credit.Packet
		if err := rows.Scan(&p.ID, &p.IDUsuario, &p.Quantidade, &p.Origem, &p.DataRecebimento, &p.CriadoEm); err != nil {
			return nil, fmt.Errorf("failed to scan credit packet: %w", err)
		}
		packets = append(packets, p)
	}
	return packets, rows.Err()
}
