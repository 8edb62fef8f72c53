// internal/repository/postgres/dashboard_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"compatlab-service/internal/domain/dashboard"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardRepository runs the aggregate queries behind the dashboard
// endpoints. Everything here is read-only.
type DashboardRepository struct {
	db *pgxpool.Pool
}

func NewDashboardRepository(db *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountRequests returns the total number of analysis requests and how
// many are still open. userID zero counts across all users.
func (r *DashboardRepository) CountRequests(ctx context.Context, userID int64) (total, open int, err error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'em_andamento')
		FROM solicitacoes_analise
		WHERE ($1 = 0 OR id_usuario = $1)
	`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&total, &open); err != nil {
		return 0, 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return total, open, nil
}

// CountRequestsSince counts requests created at or after the cutoff.
func (r *DashboardRepository) CountRequestsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM solicitacoes_analise
		WHERE criado_em >= $2 AND ($1 = 0 OR id_usuario = $1)
	`
	var n int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recent requests: %w", err)
	}
	return n, nil
}

// RequestsPerMonth buckets request counts by calendar month since the
// cutoff, oldest first. Months with no requests are absent; the
// service fills the gaps.
func (r *DashboardRepository) RequestsPerMonth(ctx context.Context, userID int64, since time.Time) ([]dashboard.MonthPoint, error) {
	query := `
		SELECT to_char(date_trunc('month', criado_em), 'MM/YYYY'), COUNT(*)
		FROM solicitacoes_analise
		WHERE criado_em >= $2 AND ($1 = 0 OR id_usuario = $1)
		GROUP BY date_trunc('month', criado_em)
		ORDER BY date_trunc('month', criado_em)
	`
	return r.scanMonthPoints(ctx, query, userID, since)
}

// RevenuePerMonth buckets recorded revenue by calendar month since the
// cutoff, oldest first.
func (r *DashboardRepository) RevenuePerMonth(ctx context.Context, since time.Time) ([]dashboard.MonthPoint, error) {
	query := `
		SELECT to_char(date_trunc('month', criado_em), 'MM/YYYY'), COALESCE(SUM(valor), 0)
		FROM receitas
		WHERE criado_em >= $1
		GROUP BY date_trunc('month', criado_em)
		ORDER BY date_trunc('month', criado_em)
	`
	return r.scanMonthPoints(ctx, query, since)
}

// NewUsersPerMonth buckets signups by calendar month since the cutoff,
// oldest first.
func (r *DashboardRepository) NewUsersPerMonth(ctx context.Context, since time.Time) ([]dashboard.MonthPoint, error) {
	query := `
		SELECT to_char(date_trunc('month', criado_em), 'MM/YYYY'), COUNT(*)
		FROM usuarios
		WHERE criado_em >= $1
		GROUP BY date_trunc('month', criado_em)
		ORDER BY date_trunc('month', criado_em)
	`
	return r.scanMonthPoints(ctx, query, since)
}

func (r *DashboardRepository) scanMonthPoints(ctx context.Context, query string, args ...any) ([]dashboard.MonthPoint, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly series: %w", err)
	}
	defer rows.Close()

	var points []dashboard.MonthPoint
	for rows.Next() {
		var p dashboard.MonthPoint
		if err := rows.Scan(&p.Mes, &p.Valor); err != nil {
			return nil, fmt.Errorf("failed to scan monthly point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// RevenueSince sums recorded revenue from the cutoff on.
func (r *DashboardRepository) RevenueSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(valor), 0) FROM receitas WHERE criado_em >= $1`,
		since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total, nil
}

// NewUsersSince counts signups from the cutoff on.
func (r *DashboardRepository) NewUsersSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM usuarios WHERE criado_em >= $1`,
		since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count new users: %w", err)
	}
	return n, nil
}

// TopProductPairs ranks the most requested product pairs, unordered
// within the pair so (A,B) and (B,A) count together. A zero since
// ranks over all time.
func (r *DashboardRepository) TopProductPairs(ctx context.Context, since time.Time, limit int) ([]dashboard.PairCount, error) {
	query := `
		SELECT pa.nome, pb.nome, COUNT(*) AS total
		FROM solicitacoes_analise s
		JOIN produtos pa ON pa.id = LEAST(s.id_produto_a, s.id_produto_b)
		JOIN produtos pb ON pb.id = GREATEST(s.id_produto_a, s.id_produto_b)
		WHERE ($1::timestamptz IS NULL OR s.criado_em >= $1)
		GROUP BY pa.nome, pb.nome
		ORDER BY total DESC, pa.nome, pb.nome
		LIMIT $2
	`
	var cutoff any
	if !since.IsZero() {
		cutoff = since
	}
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank product pairs: %w", err)
	}
	defer rows.Close()

	var pairs []dashboard.PairCount
	for rows.Next() {
		var p dashboard.PairCount
		if err := rows.Scan(&p.ProdutoA, &p.ProdutoB, &p.Total); err != nil {
			return nil, fmt.Errorf("failed to scan product pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// LastRequest returns the most recent analysis with its product names,
// or nil when there is none. userID zero looks across all users.
func (r *DashboardRepository) LastRequest(ctx context.Context, userID int64) (*dashboard.LastRequest, error) {
	query := `
		SELECT s.id, pa.nome, pb.nome, s.status, s.criado_em
		FROM solicitacoes_analise s
		JOIN produtos pa ON pa.id = s.id_produto_a
		JOIN produtos pb ON pb.id = s.id_produto_b
		WHERE ($1 = 0 OR s.id_usuario = $1)
		ORDER BY s.criado_em DESC
		LIMIT 1
	`
	var lr dashboard.LastRequest
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&lr.ID, &lr.ProdutoA, &lr.ProdutoB, &lr.Status, &lr.CriadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last request: %w", err)
	}
	return &lr, nil
}

// SumValidCredits folds every user's ledger into one platform-wide
// count of live credits, honoring the validity window the same way the
// balance computation does.
func (r *DashboardRepository) SumValidCredits(ctx context.Context, validityDays int) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantidade), 0)
		FROM pacote_creditos
		WHERE data_recebimento IS NOT NULL
		  AND ($1 <= 0 OR data_recebimento >= NOW() - ($1 * INTERVAL '1 day'))
	`
	var total int
	if err := r.db.QueryRow(ctx, query, validityDays).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum valid credits: %w", err)
	}
	return total, nil
}

// SpentThisMonth sums a user's negative packets for the current
// calendar month, as a positive number.
func (r *DashboardRepository) SpentThisMonth(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT COALESCE(-SUM(quantidade), 0)
		FROM pacote_creditos
		WHERE id_usuario = $1
		  AND quantidade < 0
		  AND criado_em >= date_trunc('month', NOW())
	`
	var spent int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&spent); err != nil {
		return 0, fmt.Errorf("failed to sum month spend: %w", err)
	}
	return spent, nil
}
