// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"compatlab-service/internal/domain/plan"
	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO planos (nome, preco_mensal, quantidade_credito_mensal, prioridade_de_tempo, maximo_colaboradores)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, criado_em
	`
	err := r.db.QueryRow(ctx, query,
		p.Nome, p.PrecoMensal, p.QuantidadeCreditoMensal, p.PrioridadeDeTempo, p.MaximoColaboradores,
	).Scan(&p.ID, &p.CriadoEm)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

func (r *PlanRepository) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	query := `
		SELECT id, nome, preco_mensal, quantidade_credito_mensal, prioridade_de_tempo, maximo_colaboradores, criado_em
		FROM planos
		WHERE id = $1
	`
	var p plan.Plan
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Nome, &p.PrecoMensal, &p.QuantidadeCreditoMensal,
		&p.PrioridadeDeTempo, &p.MaximoColaboradores, &p.CriadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}
	return &p, nil
}

func (r *PlanRepository) List(ctx context.Context) ([]plan.Plan, error) {
	query := `
		SELECT id, nome, preco_mensal, quantidade_credito_mensal, prioridade_de_tempo, maximo_colaboradores, criado_em
		FROM planos
		ORDER BY preco_mensal
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		var p plan.Plan
		if err := rows.Scan(
			&p.ID, &p.Nome, &p.PrecoMensal, &p.QuantidadeCreditoMensal,
			&p.PrioridadeDeTempo, &p.MaximoColaboradores, &p.CriadoEm,
		); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
