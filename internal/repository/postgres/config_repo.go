// internal/repository/postgres/config_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"compatlab-service/internal/domain/sysconfig"
	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConfigRepository struct {
	db *pgxpool.Pool
}

func NewConfigRepository(db *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Current returns the single row flagged vigente.
func (r *ConfigRepository) Current(ctx context.Context) (*sysconfig.SystemConfig, error) {
	query := `
		SELECT id, preco_do_credito, preco_da_solicitacao_em_creditos, validade_em_dias, vigente, criado_em
		FROM config_sistema
		WHERE vigente = TRUE
	`
	var cfg sysconfig.SystemConfig
	err := r.db.QueryRow(ctx, query).Scan(
		&cfg.ID, &cfg.PrecoDoCredito, &cfg.PrecoDaSolicitacaoEmCreditos,
		&cfg.ValidadeEmDias, &cfg.Vigente, &cfg.CriadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current config: %w", err)
	}
	return &cfg, nil
}

// Create inserts a new config and moves the vigente flag to it inside
// one transaction, so there is never more or less than one current row.
func (r *ConfigRepository) Create(ctx context.Context, cfg *sysconfig.SystemConfig) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE config_sistema SET vigente = FALSE WHERE vigente = TRUE`); err != nil {
		return fmt.Errorf("failed to retire current config: %w", err)
	}

	query := `
		INSERT INTO config_sistema (preco_do_credito, preco_da_solicitacao_em_creditos, validade_em_dias, vigente)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, criado_em
	`
	err = tx.QueryRow(ctx, query,
		cfg.PrecoDoCredito, cfg.PrecoDaSolicitacaoEmCreditos, cfg.ValidadeEmDias,
	).Scan(&cfg.ID, &cfg.CriadoEm)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}
	cfg.Vigente = true

	return tx.Commit(ctx)
}

func (r *ConfigRepository) List(ctx context.Context) ([]sysconfig.SystemConfig, error) {
	query := `
		SELECT id, preco_do_credito, preco_da_solicitacao_em_creditos, validade_em_dias, vigente, criado_em
		FROM config_sistema
		ORDER BY id DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	var configs []sysconfig.SystemConfig
	for rows.Next() {
		var cfg sysconfig.SystemConfig
		if err := rows.Scan(
			&cfg.ID, &cfg.PrecoDoCredito, &cfg.PrecoDaSolicitacaoEmCreditos,
			&cfg.ValidadeEmDias, &cfg.Vigente, &cfg.CriadoEm,
		); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}
