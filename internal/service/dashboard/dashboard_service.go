// internal/service/dashboard/dashboard_service.go
package dashboard

import (
	"context"
	"fmt"
	"time"

	"compatlab-service/internal/domain/dashboard"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/repository/postgres"
	"compatlab-service/internal/service/ledger"

	"go.uber.org/zap"
)

const (
	seriesMonths = 6
	topPairs     = 10
)

// DashboardService assembles the read-only aggregate views. It never
// writes anything.
type DashboardService struct {
	dashRepo *postgres.DashboardRepository
	userRepo *postgres.UserRepository
	subRepo  *postgres.SubscriptionRepository
	planRepo *postgres.PlanRepository
	ledger   *ledger.LedgerService
	logger   *zap.Logger
}

func NewDashboardService(
	dashRepo *postgres.DashboardRepository,
	userRepo *postgres.UserRepository,
	subRepo *postgres.SubscriptionRepository,
	planRepo *postgres.PlanRepository,
	ledgerSvc *ledger.LedgerService,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		dashRepo: dashRepo,
		userRepo: userRepo,
		subRepo:  subRepo,
		planRepo: planRepo,
		ledger:   ledgerSvc,
		logger:   logger,
	}
}

// Me builds the personal dashboard: live credits, request counts, the
// latest analysis, plan usage for the month and a short activity
// chart.
func (s *DashboardService) Me(ctx context.Context, userID int64) (*dashboard.MyView, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	saldo, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, open, err := s.dashRepo.CountRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	last, err := s.dashRepo.LastRequest(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	chart, err := s.dashRepo.RequestsPerMonth(ctx, userID, monthsAgo(now, 4))
	if err != nil {
		return nil, err
	}

	usage := dashboard.MonthlyUsage{}
	if u.VinculoAssinatura.Valid {
		if sub, err := s.subRepo.FindByID(ctx, u.VinculoAssinatura.Int64); err == nil {
			if pl, err := s.planRepo.FindByID(ctx, sub.IDPlano); err == nil {
				usage.PlanoCreditosMensal = pl.QuantidadeCreditoMensal
			}
		}
	}
	spent, err := s.dashRepo.SpentThisMonth(ctx, userID)
	if err != nil {
		return nil, err
	}
	usage.UsadosNoMes = spent
	if rest := usage.PlanoCreditosMensal - spent; rest > 0 {
		usage.SaldoARealizar = rest
	}

	return &dashboard.MyView{
		Creditos:      saldo,
		TotalAnalises: total,
		EmAndamento:   open,
		UltimaAnalise: last,
		Mensal:        usage,
		Grafico:       fillMonths(chart, now, 4),
	}, nil
}

// Admin builds the administrative dashboard over the last six months.
func (s *DashboardService) Admin(ctx context.Context) (*dashboard.AdminView, error) {
	now := time.Now()
	weekAgo := now.AddDate(0, 0, -7)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	semesterStart := monthsAgo(now, seriesMonths)

	total, open, err := s.dashRepo.CountRequests(ctx, 0)
	if err != nil {
		return nil, err
	}
	lastWeek, err := s.dashRepo.CountRequestsSince(ctx, 0, weekAgo)
	if err != nil {
		return nil, err
	}
	monthRevenue, err := s.dashRepo.RevenueSince(ctx, monthStart)
	if err != nil {
		return nil, err
	}
	semesterRevenue, err := s.dashRepo.RevenueSince(ctx, semesterStart)
	if err != nil {
		return nil, err
	}
	newClients, err := s.dashRepo.NewUsersSince(ctx, monthStart)
	if err != nil {
		return nil, err
	}

	requests, err := s.dashRepo.RequestsPerMonth(ctx, 0, semesterStart)
	if err != nil {
		return nil, err
	}
	revenue, err := s.dashRepo.RevenuePerMonth(ctx, semesterStart)
	if err != nil {
		return nil, err
	}
	clients, err := s.dashRepo.NewUsersPerMonth(ctx, semesterStart)
	if err != nil {
		return nil, err
	}

	top, err := s.dashRepo.TopProductPairs(ctx, time.Time{}, topPairs)
	if err != nil {
		return nil, err
	}
	topMonth, err := s.dashRepo.TopProductPairs(ctx, monthStart, topPairs)
	if err != nil {
		return nil, err
	}
	last, err := s.dashRepo.LastRequest(ctx, 0)
	if err != nil {
		return nil, err
	}

	cfg, err := s.ledger.CurrentConfig(ctx)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}
	creditosValidos := 0
	if cfg != nil {
		creditosValidos, err = s.dashRepo.SumValidCredits(ctx, cfg.ValidadeEmDias)
		if err != nil {
			return nil, err
		}
	}

	view := &dashboard.AdminView{
		Indicadores: dashboard.Indicators{
			AnalisesUltimaSemana: lastWeek,
			ReceitaNoMes:         monthRevenue,
			NovosClientesNoMes:   newClients,
		},
		Totais: dashboard.Totals{
			TotalAnalises:   total,
			EmAndamento:     open,
			ReceitaSemestre: semesterRevenue,
			CreditosValidos: creditosValidos,
		},
		AnalisesPorMes:      fillMonths(requests, now, seriesMonths),
		ReceitaPorMes:       fillMonths(revenue, now, seriesMonths),
		NovosClientesPorMes: fillMonths(clients, now, seriesMonths),
		TopAnalises:         top,
		TopAnalisesMes:      topMonth,
		UltimaAnalise:       last,
		Config:              cfg,
	}
	if len(topMonth) > 0 {
		view.Indicadores.AnaliseMaisPedida = fmt.Sprintf("%s + %s", topMonth[0].ProdutoA, topMonth[0].ProdutoB)
	} else if len(top) > 0 {
		view.Indicadores.AnaliseMaisPedida = fmt.Sprintf("%s + %s", top[0].ProdutoA, top[0].ProdutoB)
	}
	return view, nil
}

// monthsAgo returns the first instant of the month n-1 months before
// now's month, so a series of n months includes the current one.
func monthsAgo(now time.Time, n int) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -(n - 1), 0)
}

// fillMonths pads a sparse monthly series to exactly n labeled months,
// oldest first, inserting zeros where the query had no bucket.
func fillMonths(points []dashboard.MonthPoint, now time.Time, n int) []dashboard.MonthPoint {
	byLabel := make(map[string]float64, len(points))
	for _, p := range points {
		byLabel[p.Mes] = p.Valor
	}
	out := make([]dashboard.MonthPoint, 0, n)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := n - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		label := fmt.Sprintf("%02d/%04d", int(m.Month()), m.Year())
		out = append(out, dashboard.MonthPoint{Mes: label, Valor: byLabel[label]})
	}
	return out
}
