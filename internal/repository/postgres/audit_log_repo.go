// internal/repository/postgres/audit_log_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"compatlab-service/internal/domain/billing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditLogRepository struct {
	db *pgxpool.Pool
}

func NewAuditLogRepository(db *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, log *billing.AuditLog) error {
	return r.create(ctx, tx, log, time.Time{})
}

// CreateWithTxAt writes the log with an explicit timestamp. Transfers
// use it so both sides of the movement carry the same instant.
func (r *AuditLogRepository) CreateWithTxAt(ctx context.Context, tx pgx.Tx, log *billing.AuditLog, at time.Time) error {
	return r.create(ctx, tx, log, at)
}

func (r *AuditLogRepository) create(ctx context.Context, tx pgx.Tx, log *billing.AuditLog, at time.Time) error {
	var err error
	if at.IsZero() {
		err = tx.QueryRow(ctx, `
			INSERT INTO logs_usuario (id_usuario, acao, detalhe)
			VALUES ($1, $2, $3)
			RETURNING id, criado_em
		`, log.IDUsuario, log.Acao, log.Detalhe).Scan(&log.ID, &log.CriadoEm)
	} else {
		err = tx.QueryRow(ctx, `
			INSERT INTO logs_usuario (id_usuario, acao, detalhe, criado_em)
			VALUES ($1, $2, $3, $4)
			RETURNING id, criado_em
		`, log.IDUsuario, log.Acao, log.Detalhe, at).Scan(&log.ID, &log.CriadoEm)
	}
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]billing.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, id_usuario, acao, detalhe, criado_em
		FROM logs_usuario
		WHERE id_usuario = $1
		ORDER BY criado_em DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []billing.AuditLog
	for rows.Next() {
		var l billing.AuditLog
		if err := rows.Scan(&l.ID, &l.IDUsuario, &l.Acao, &l.Detalhe, &l.CriadoEm); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
