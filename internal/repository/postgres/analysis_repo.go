// internal/repository/postgres/analysis_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"compatlab-service/internal/domain/analysis"
	xerrors "compatlab-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AnalysisRepository struct {
	db *pgxpool.Pool
}

func NewAnalysisRepository(db *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const (
	requestColumns         = `id, id_usuario, id_produto_a, id_produto_b, status, resultado, concluida_em, criado_em`
	prefixedRequestColumns = `s.id, s.id_usuario, s.id_produto_a, s.id_produto_b, s.status, s.resultado, s.concluida_em, s.criado_em`
)

func scanRequest(row pgx.Row) (*analysis.Request, error) {
	var req analysis.Request
	err := row.Scan(
		&req.ID, &req.IDUsuario, &req.IDProdutoA, &req.IDProdutoB,
		&req.Status, &req.Resultado, &req.ConcluidaEm, &req.CriadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan analysis request: %w", err)
	}
	return &req, nil
}

func (r *AnalysisRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, req *analysis.Request) error {
	query := `
		INSERT INTO solicitacoes_analise (id_usuario, id_produto_a, id_produto_b, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, criado_em
	`
	err := tx.QueryRow(ctx, query,
		req.IDUsuario, req.IDProdutoA, req.IDProdutoB, req.Status,
	).Scan(&req.ID, &req.CriadoEm)
	if err != nil {
		return fmt.Errorf("failed to create analysis request: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) FindByID(ctx context.Context, id int64) (*analysis.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM solicitacoes_analise WHERE id = $1`, requestColumns)
	return scanRequest(r.db.QueryRow(ctx, query, id))
}

func (r *AnalysisRepository) ListByUser(ctx context.Context, userID int64) ([]analysis.Request, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM solicitacoes_analise
		WHERE id_usuario = $1
		ORDER BY criado_em DESC
	`, requestColumns)
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis requests: %w", err)
	}
	defer rows.Close()

	var reqs []analysis.Request
	for rows.Next() {
		var req analysis.Request
		if err := rows.Scan(
			&req.ID, &req.IDUsuario, &req.IDProdutoA, &req.IDProdutoB,
			&req.Status, &req.Resultado, &req.ConcluidaEm, &req.CriadoEm,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analysis request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ListBySubscription lists requests from every account linked to the
// subscription, for enterprise plans where members see each other's
// work.
func (r *AnalysisRepository) ListBySubscription(ctx context.Context, subscriptionID int64) ([]analysis.Request, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM solicitacoes_analise s
		WHERE s.id_usuario IN (SELECT id FROM usuarios WHERE vinculo_assinatura = $1)
		ORDER BY s.criado_em DESC
	`, prefixedRequestColumns)
	rows, err := r.db.Query(ctx, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription requests: %w", err)
	}
	defer rows.Close()

	var reqs []analysis.Request
	for rows.Next() {
		var req analysis.Request
		if err := rows.Scan(
			&req.ID, &req.IDUsuario, &req.IDProdutoA, &req.IDProdutoB,
			&req.Status, &req.Resultado, &req.ConcluidaEm, &req.CriadoEm,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analysis request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ListQueue returns pending and in-progress requests joined with the
// plan priority of the requester's subscription. Users without an
// active plan sort last, then oldest first.
func (r *AnalysisRepository) ListQueue(ctx context.Context) ([]analysis.QueueItem, error) {
	query := `
		SELECT s.id, s.id_usuario, s.id_produto_a, s.id_produto_b, s.status, s.resultado, s.concluida_em, s.criado_em,
		       u.nome, u.email, COALESCE(p.prioridade_de_tempo, 0)
		FROM solicitacoes_analise s
		JOIN usuarios u ON u.id = s.id_usuario
		LEFT JOIN assinaturas a ON a.id = u.vinculo_assinatura AND a.status = 'ativa'
		LEFT JOIN planos p ON p.id = a.id_plano
		WHERE s.status = 'em_andamento'
		ORDER BY COALESCE(p.prioridade_de_tempo, 0) DESC, s.criado_em
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis queue: %w", err)
	}
	defer rows.Close()

	var items []analysis.QueueItem
	for rows.Next() {
		var it analysis.QueueItem
		if err := rows.Scan(
			&it.Request.ID, &it.Request.IDUsuario, &it.Request.IDProdutoA, &it.Request.IDProdutoB,
			&it.Request.Status, &it.Request.Resultado, &it.Request.ConcluidaEm, &it.Request.CriadoEm,
			&it.NomeUsuario, &it.EmailUsuario, &it.PrioridadeDeTempo,
		); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *AnalysisRepository) UpdateStatus(ctx context.Context, id int64, status analysis.RequestStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE solicitacoes_analise SET status = $1 WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *AnalysisRepository) Conclude(ctx context.Context, id int64, resultado string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE solicitacoes_analise
		SET status = 'finalizado', resultado = $1, concluida_em = NOW()
		WHERE id = $2
	`, resultado, id)
	if err != nil {
		return fmt.Errorf("failed to conclude request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// --- Products ---

func (r *AnalysisRepository) CreateProduto(ctx context.Context, p *analysis.Produto) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO produtos (nome, descricao)
		VALUES ($1, $2)
		RETURNING id, criado_em
	`, p.Nome, p.Descricao).Scan(&p.ID, &p.CriadoEm)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) FindProduto(ctx context.Context, id int64) (*analysis.Produto, error) {
	var p analysis.Produto
	err := r.db.QueryRow(ctx,
		`SELECT id, nome, descricao, criado_em FROM produtos WHERE id = $1`,
		id).Scan(&p.ID, &p.Nome, &p.Descricao, &p.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &p, nil
}

func (r *AnalysisRepository) ListProdutos(ctx context.Context) ([]analysis.Produto, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, nome, descricao, criado_em FROM produtos ORDER BY nome`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var produtos []analysis.Produto
	for rows.Next() {
		var p analysis.Produto
		if err := rows.Scan(&p.ID, &p.Nome, &p.Descricao, &p.CriadoEm); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		produtos = append(produtos, p)
	}
	return produtos, rows.Err()
}
