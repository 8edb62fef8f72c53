// internal/domain/plan/entity.go
package plan

import (
	"strings"
	"time"
)

type Plan struct {
	ID                      int64     `json:"id"`
	Nome                    string    `json:"nome"`
	PrecoMensal             float64   `json:"preco_mensal"`
	QuantidadeCreditoMensal int       `json:"quantidade_credito_mensal"`
	PrioridadeDeTempo       int       `json:"prioridade_de_tempo"`
	MaximoColaboradores     int       `json:"maximo_colaboradores"`
	CriadoEm                time.Time `json:"criado_em"`
}

// IsEnterprise reports whether the plan grants shared-account features.
// Matches by name, as the product has always done.
func (p *Plan) IsEnterprise() bool {
	return IsEnterpriseName(p.Nome)
}

func IsEnterpriseName(name string) bool {
	return strings.Contains(strings.ToLower(name), "enterprise")
}
