// internal/domain/dashboard/entity.go
package dashboard

import (
	"time"

	"compatlab-service/internal/domain/sysconfig"
)

// MonthPoint is one month of a time series, oldest first.
type MonthPoint struct {
	Mes   string  `json:"mes"`
	Valor float64 `json:"valor"`
}

// PairCount ranks a product pair by how often it was requested.
type PairCount struct {
	ProdutoA string `json:"produto_a"`
	ProdutoB string `json:"produto_b"`
	Total    int    `json:"total"`
}

// LastRequest is the most recent analysis with its product names.
type LastRequest struct {
	ID       int64     `json:"id"`
	ProdutoA string    `json:"produto_a"`
	ProdutoB string    `json:"produto_b"`
	Status   string    `json:"status"`
	CriadoEm time.Time `json:"criado_em"`
}

type Indicators struct {
	AnalisesUltimaSemana int     `json:"analises_ultima_semana"`
	ReceitaNoMes         float64 `json:"receita_no_mes"`
	NovosClientesNoMes   int     `json:"novos_clientes_no_mes"`
	AnaliseMaisPedida    string  `json:"analise_mais_pedida"`
}

type Totals struct {
	TotalAnalises   int     `json:"total_analises"`
	EmAndamento     int     `json:"em_andamento"`
	ReceitaSemestre float64 `json:"receita_semestre"`
	CreditosValidos int     `json:"creditos_validos"`
}

// AdminView is the administrative dashboard: six-month series, pair
// rankings, headline indicators and the current pricing config.
type AdminView struct {
	Indicadores         Indicators              `json:"indicadores"`
	Totais              Totals                  `json:"totais"`
	AnalisesPorMes      []MonthPoint            `json:"analises_por_mes"`
	ReceitaPorMes       []MonthPoint            `json:"receita_por_mes"`
	NovosClientesPorMes []MonthPoint            `json:"novos_clientes_por_mes"`
	TopAnalises         []PairCount             `json:"top_analises"`
	TopAnalisesMes      []PairCount             `json:"top_analises_mes"`
	UltimaAnalise       *LastRequest            `json:"ultima_analise,omitempty"`
	Config              *sysconfig.SystemConfig `json:"config,omitempty"`
}

// MonthlyUsage compares the month's spend against the plan allowance.
type MonthlyUsage struct {
	PlanoCreditosMensal int `json:"plano_creditos_mensal"`
	UsadosNoMes         int `json:"usados_no_mes"`
	SaldoARealizar      int `json:"saldo_a_realizar"`
}

// MyView is what a regular account sees about its own activity.
type MyView struct {
	Creditos      int          `json:"creditos"`
	TotalAnalises int          `json:"total_analises"`
	EmAndamento   int          `json:"em_andamento"`
	UltimaAnalise *LastRequest `json:"ultima_analise,omitempty"`
	Mensal        MonthlyUsage `json:"mensal"`
	Grafico       []MonthPoint `json:"grafico"`
}
