// internal/domain/plan/dto.go
package plan

type CreateInput struct {
	Nome                    string  `json:"nome" binding:"required"`
	PrecoMensal             float64 `json:"preco_mensal" binding:"required"`
	QuantidadeCreditoMensal int     `json:"quantidade_credito_mensal" binding:"required"`
	PrioridadeDeTempo       int     `json:"prioridade_de_tempo"`
	MaximoColaboradores     int     `json:"maximo_colaboradores"`
}
